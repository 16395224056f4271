package machine

import (
	"io"

	"github.com/mastercactapus/cncauto/coord"
)

// An Adapter represents the minimal controller interface.
//
// Write and ReadFrom block until every line sent has been acknowledged
// as executed, which gives the "run command and wait" primitive the
// session manager depends on.
type Adapter interface {
	State() chan State
	CurrentState() State

	// FixtureOffsets reports the stored origins of the six work
	// coordinate systems (G54..G59) in machine coordinates.
	FixtureOffsets() ([6]coord.Point, error)

	// SafeOutputsOff forces safety-critical auxiliary outputs (laser
	// emitter) off, bypassing normal mode checks.
	SafeOutputsOff() error

	WriteByte(byte) error
	Write([]byte) (int, error)
	ReadFrom(io.Reader) (int64, error)
}
