package machine

import (
	"github.com/mastercactapus/cncauto/coord"
)

// HoldCode classifies why motion is suspended.
type HoldCode int

const (
	HoldNone HoldCode = iota
	HoldFeed
	HoldDoor
	HoldAlarm
)

func (h HoldCode) String() string {
	switch h {
	case HoldNone:
		return "none"
	case HoldFeed:
		return "feed-hold"
	case HoldDoor:
		return "door"
	case HoldAlarm:
		return "alarm"
	}
	return "unknown"
}

// State is a snapshot of the controller, read once per tick. It is
// ephemeral and never persisted.
type State struct {
	Status string

	Enabled    bool
	SpindleOn  bool
	InCycle    bool
	ToolChange bool

	Hold HoldCode

	// VirtualTool is the active virtual tool id, 0 when none.
	VirtualTool int

	// Rotation is the active coordinate rotation, Valid=false when off.
	Rotation coord.Frame

	MPos coord.Point
	WCO  coord.Point

	// Velocity holds the current per-axis velocity.
	Velocity coord.Point
}

// Moving reports whether any enabled axis has non-negligible velocity.
func (s State) Moving() bool {
	return s.Velocity.MaxAbs() > 0.001
}
