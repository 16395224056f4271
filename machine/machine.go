package machine

import (
	"github.com/mastercactapus/cncauto/gcode"
)

// Machine wraps an Adapter with block-level execution.
type Machine struct {
	Adapter
}

func NewMachine(a Adapter) *Machine {
	return &Machine{Adapter: a}
}

// Run executes the blocks and waits for the controller to acknowledge
// completion of all of them.
func (m *Machine) Run(b []gcode.Block) error {
	for _, blk := range b {
		if err := blk.Validate(); err != nil {
			return err
		}
	}
	_, err := m.Adapter.ReadFrom(gcode.NewBuffer(&gcode.BlocksReader{Blocks: b}))
	return err
}
