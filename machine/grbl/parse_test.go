package grbl

import (
	"testing"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/machine"
	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	stat, err := parseStatus(machine.State{}, "<Idle|MPos:1,2,3|FS:0,0|WCO:10,20,30>\n")
	assert.NoError(t, err)
	assert.Equal(t, "Idle", stat.Status)
	assert.True(t, stat.Enabled)
	assert.False(t, stat.InCycle)
	assert.False(t, stat.SpindleOn)
	assert.Equal(t, machine.HoldNone, stat.Hold)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, stat.MPos)
	assert.Equal(t, coord.Point{X: 10, Y: 20, Z: 30}, stat.WCO)

	stat, err = parseStatus(*stat, "<Run|MPos:1,2,3|FS:500,12000>")
	assert.NoError(t, err)
	assert.True(t, stat.InCycle)
	assert.True(t, stat.SpindleOn)
	assert.True(t, stat.Moving())

	stat, err = parseStatus(*stat, "<Hold:0|MPos:1,2,3|FS:0,0>")
	assert.NoError(t, err)
	assert.Equal(t, machine.HoldFeed, stat.Hold)
	assert.True(t, stat.InCycle)

	stat, err = parseStatus(*stat, "<Door:1|MPos:1,2,3>")
	assert.NoError(t, err)
	assert.Equal(t, machine.HoldDoor, stat.Hold)

	stat, err = parseStatus(*stat, "<Alarm|MPos:1,2,3>")
	assert.NoError(t, err)
	assert.False(t, stat.Enabled)
	assert.Equal(t, machine.HoldAlarm, stat.Hold)

	stat, err = parseStatus(*stat, "<Idle|MPos:1,2,3|F:0|A:S>")
	assert.NoError(t, err)
	assert.True(t, stat.SpindleOn)
}

func TestParseOffset(t *testing.T) {
	slot, p, ok, err := parseOffset("[G54:10.5,-2.25,0.000]")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, coord.Point{X: 10.5, Y: -2.25}, p)

	slot, _, ok, err = parseOffset("[G59:1,2,3]")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, slot)

	_, _, ok, err = parseOffset("[TLO:0.000]")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = parseOffset("[PRB:1,2,3:1]")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestShadow(t *testing.T) {
	var s shadow

	s.Write([]byte("G68X10Y20R45\n"))
	tool, rot := s.snapshot()
	assert.Equal(t, 0, tool)
	assert.Equal(t, coord.Frame{X: 10, Y: 20, Angle: 45, Valid: true}, rot)

	// split across writes
	s.Write([]byte("M61"))
	s.Write([]byte("Q90\n"))
	tool, _ = s.snapshot()
	assert.Equal(t, 90, tool)

	s.Write([]byte("G69\nM61Q0\n"))
	tool, rot = s.snapshot()
	assert.Equal(t, 0, tool)
	assert.False(t, rot.Valid)

	// non g-code lines are ignored
	s.Write([]byte("$#\n?\n"))
	tool, _ = s.snapshot()
	assert.Equal(t, 0, tool)
}
