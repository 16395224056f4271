package gcode

import (
	"github.com/mastercactapus/cncauto/coord"
)

// Builders for the small command vocabulary the automation layer emits.
// Each returns a single block ready to run through a machine adapter.

// SetFixtureOffset generates G10 L2 to store a work coordinate system
// origin in machine coordinates. Slot is 1-based (1 = G54 .. 6 = G59).
func SetFixtureOffset(slot int, origin coord.Point) Block {
	return Block{
		{W: 'G', Arg: 10},
		{W: 'L', Arg: 2},
		{W: 'P', Arg: float64(slot)},
		{W: 'X', Arg: origin.X},
		{W: 'Y', Arg: origin.Y},
		{W: 'Z', Arg: origin.Z},
	}
}

// RotationOn generates G68 enabling a coordinate rotation about the
// frame pivot.
func RotationOn(f coord.Frame) Block {
	return Block{
		{W: 'G', Arg: 68},
		{W: 'X', Arg: f.X},
		{W: 'Y', Arg: f.Y},
		{W: 'R', Arg: f.Angle},
	}
}

// RotationOff generates G69, cancelling any active rotation.
func RotationOff() Block {
	return Block{{W: 'G', Arg: 69}}
}

// SelectTool generates M61 to set the active tool number without a
// physical change. Zero clears the active tool.
func SelectTool(id int) Block {
	return Block{
		{W: 'M', Arg: 61},
		{W: 'Q', Arg: float64(id)},
	}
}

// LengthComp generates G43.1 applying a dynamic tool length offset.
func LengthComp(z float64) Block {
	return Block{
		{W: 'G', Arg: 43.1},
		{W: 'Z', Arg: z},
	}
}

// ClearLengthComp generates G49.
func ClearLengthComp() Block {
	return Block{{W: 'G', Arg: 49}}
}

// SpindleStop generates M5.
func SpindleStop() Block {
	return Block{{W: 'M', Arg: 5}}
}
