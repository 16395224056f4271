package gcode

import (
	"io"
	"testing"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	b, err := Parse("G10 L2 P1 X-0.5 Y0.25 Z0\nG69 ; cancel rotation\n")
	assert.NoError(t, err)
	assert.Len(t, b, 2)
	assert.Equal(t, Block{
		{W: 'G', Arg: 10}, {W: 'L', Arg: 2}, {W: 'P', Arg: 1},
		{W: 'X', Arg: -0.5}, {W: 'Y', Arg: 0.25}, {W: 'Z', Arg: 0},
	}, b[0])
	assert.Equal(t, Block{{W: 'G', Arg: 69}}, b[1])

	_, err = Parse("not gcode\n")
	assert.Error(t, err)
}

func TestBlock_String(t *testing.T) {
	assert.Equal(t, "G10L2P3X-0.5Y0.25Z0", SetFixtureOffset(3, coord.Point{X: -0.5, Y: 0.25}).String())
	assert.Equal(t, "G68X10Y20R45", RotationOn(coord.Frame{X: 10, Y: 20, Angle: 45, Valid: true}).String())
	assert.Equal(t, "G69", RotationOff().String())
	assert.Equal(t, "M61Q90", SelectTool(90).String())
	assert.Equal(t, "G43.1Z-12.7", LengthComp(-12.7).String())
}

func TestBlock_Validate(t *testing.T) {
	assert.NoError(t, SetFixtureOffset(1, coord.Point{}).Validate())
	assert.NoError(t, RotationOn(coord.Frame{}).Validate())

	// two words from the rotation group
	assert.Error(t, Block{{W: 'G', Arg: 68}, {W: 'G', Arg: 69}}.Validate())
}

func TestBlocksReader(t *testing.T) {
	blocks := []Block{
		{{W: 'G', Arg: 69}},
		{{W: 'M', Arg: 5}},
	}

	gr := &BlocksReader{Blocks: blocks}

	b, err := gr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Block{{W: 'G', Arg: 69}}, b)

	b, err = gr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Block{{W: 'M', Arg: 5}}, b)

	b, err = gr.Read()
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, b)
}

func TestBuffer(t *testing.T) {
	buf := NewBuffer(&BlocksReader{Blocks: []Block{
		RotationOff(),
		SpindleStop(),
	}})

	data, err := io.ReadAll(buf)
	assert.NoError(t, err)
	assert.Equal(t, "G69\nM5\n", string(data))
}

func TestWord_ModalGroup(t *testing.T) {
	assert.Equal(t, ModalGroup(ModalGroupRotation), Word{W: 'G', Arg: 68}.ModalGroup())
	assert.Equal(t, ModalGroup(ModalGroupRotation), Word{W: 'G', Arg: 69}.ModalGroup())
	assert.Equal(t, ModalGroup(ModalGroupNonModal), Word{W: 'G', Arg: 10}.ModalGroup())
	assert.Equal(t, ModalGroup(ModalGroupToolChange), Word{W: 'M', Arg: 61}.ModalGroup())
	assert.Equal(t, ModalGroup(ModalGroupToolLength), Word{W: 'G', Arg: 43.1}.ModalGroup())
	assert.Equal(t, ModalGroup(ModalGroupNone), Word{W: 'X', Arg: 1}.ModalGroup())
}
