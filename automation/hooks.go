package automation

import (
	"errors"

	"github.com/mastercactapus/cncauto/register"
)

// ErrBootLocked is returned when toggling the boot while a tool change
// or virtual tool keeps it forced up.
var ErrBootLocked = errors.New("automation: boot is held up during tool change or virtual tool")

// ManualToggle flips a device's target register and marks the device
// overridden until the next spindle start. The override flag and the
// new target land together under the engine lock, so a concurrent tick
// never observes one without the other.
func (e *Engine) ManualToggle(d Device) error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if d == Boot {
		st := e.cfg.Controller.CurrentState()
		if st.ToolChange || st.VirtualTool != 0 {
			return ErrBootLocked
		}
	}

	regs := e.cfg.Registers
	switch d {
	case Collector:
		regs.Set(register.CollectorOverride, 1)
	case Boot:
		regs.Set(register.BootOverride, 1)
	}

	reg := targetReg(d)
	cur := regs.Get(reg)
	if cur == register.Sentinel {
		cur = 0
	}
	register.SetBool(regs, reg, cur == 0)
	return nil
}

// ProgramEnd is invoked at definitive program termination (M2/M30). It
// returns automated devices to their safe idle targets, clears the
// program latch, and additionally shuts off the vacuums where their
// automation is enabled.
func (e *Engine) ProgramEnd() {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.idleTargets()
	for _, d := range []Device{VacuumA, VacuumB} {
		if register.GetBool(e.cfg.Registers, autoReg(d)) {
			e.cfg.Registers.Set(targetReg(d), 0)
		}
	}
}

// OperatorStop is invoked on an operator stop. Same as ProgramEnd but
// it must not touch the vacuums: the workpiece stays held.
func (e *Engine) OperatorStop() {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.idleTargets()
}

func (e *Engine) idleTargets() {
	regs := e.cfg.Registers
	if register.GetBool(regs, register.CollectorAuto) {
		regs.Set(register.CollectorTarget, 0)
	}
	if register.GetBool(regs, register.BootAuto) {
		regs.Set(register.BootTarget, 0)
	}
	e.latch = Unlatched
	e.preChange = register.Sentinel
}
