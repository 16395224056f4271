// Package automation implements the periodic device automation engine:
// a tick function that owns the dust collector, dust boot actuator and
// vacuum outputs, applying hysteretic, edge-triggered control across
// auto/manual modes, tool-change holds and emergency conditions.
package automation

import (
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/register"
	"github.com/mastercactapus/cncauto/signal"
)

// DefaultFreezeWindow suppresses boot actuator re-triggering right after
// a tool-change or virtual-tool episode ends.
const DefaultFreezeWindow = 500 * time.Millisecond

// Controller is the slice of the machine the engine reads each tick.
type Controller interface {
	CurrentState() machine.State
	SafeOutputsOff() error
}

type Config struct {
	Gateway    signal.Gateway
	Controller Controller
	Registers  register.Store

	// Outputs overrides the default output signal name per device.
	Outputs map[Device]string

	// FreezeWindow defaults to DefaultFreezeWindow.
	FreezeWindow time.Duration

	// Now is the engine clock; tests override it.
	Now func() time.Time
}

// Engine computes and applies device targets once per control period.
// Only the engine ever writes the owned physical outputs.
type Engine struct {
	cfg Config

	mx sync.Mutex

	outputs  [numDevices]string
	handles  [numDevices]signal.Handle
	resolved [numDevices]bool
	applied  [numDevices]int8 // -1 unknown, else 0/1

	prevSpindle bool
	prevEpisode bool
	latch       LatchState
	preChange   float64
	freezeUntil time.Time
}

func NewEngine(cfg Config) *Engine {
	if cfg.FreezeWindow == 0 {
		cfg.FreezeWindow = DefaultFreezeWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		cfg:       cfg,
		preChange: register.Sentinel,
	}
	for i := range e.applied {
		e.applied[i] = -1
	}
	for d := Device(0); d < numDevices; d++ {
		e.outputs[d] = defaultOutputs[d]
		if name, ok := cfg.Outputs[d]; ok {
			e.outputs[d] = name
		}
	}
	return e
}

// Latch reports the collector latch state. For status reporting only.
func (e *Engine) Latch() LatchState {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.latch
}

// Tick runs one control period. It never blocks on I/O and never
// returns an error: missing handles are retried next tick.
func (e *Engine) Tick() {
	e.mx.Lock()
	defer e.mx.Unlock()

	st := e.cfg.Controller.CurrentState()
	now := e.cfg.Now()
	e.resolveHandles()

	episode := st.ToolChange || st.VirtualTool != 0

	// Manual overrides are transient: they expire when the spindle next
	// starts. Only the 0->1 edge clears them.
	if st.SpindleOn && !e.prevSpindle {
		e.cfg.Registers.Set(register.CollectorOverride, 0)
		e.cfg.Registers.Set(register.BootOverride, 0)
	}
	if e.prevEpisode && !episode {
		e.freezeUntil = now.Add(e.cfg.FreezeWindow)
	}
	e.prevSpindle = st.SpindleOn
	e.prevEpisode = episode

	if !st.Enabled || st.Hold != machine.HoldNone {
		// Safety path, unconditional: boot up and emitter off. The
		// collector is left as the operator set it.
		e.cfg.Registers.Set(register.BootTarget, 0)
		if err := e.cfg.Controller.SafeOutputsOff(); err != nil {
			log.Println("ERROR: safe outputs off:", err)
		}
		e.applyAll()
		return
	}

	e.tickCollector(st)
	e.tickBoot(st, now, episode)
	e.applyAll()
}

func (e *Engine) tickCollector(st machine.State) {
	regs := e.cfg.Registers
	if !register.GetBool(regs, register.CollectorAuto) ||
		register.GetBool(regs, register.CollectorOverride) ||
		register.GetBool(regs, register.LaserActive) {
		// manual owns the target register
		return
	}

	switch {
	case e.latch == ProgramActive:
		regs.Set(register.CollectorTarget, 1)
	case e.latch == Latched:
		e.latch = ProgramActive
		regs.Set(register.CollectorTarget, 1)
	case st.InCycle && st.SpindleOn:
		e.latch = Latched
		regs.Set(register.CollectorTarget, 1)
	case st.ToolChange:
		// freeze behavior across the tool-change hold
		if e.preChange == register.Sentinel {
			e.preChange = regs.Get(register.CollectorTarget)
			if e.preChange == register.Sentinel {
				e.preChange = 0
			}
		}
		regs.Set(register.CollectorTarget, e.preChange)
	default:
		register.SetBool(regs, register.CollectorTarget, st.SpindleOn)
		e.latch = Unlatched
		e.preChange = register.Sentinel
	}
}

func (e *Engine) tickBoot(st machine.State, now time.Time, episode bool) {
	regs := e.cfg.Registers
	if episode {
		// The actuator must be clear of tooling motion; this overrides
		// manual mode and override flags.
		regs.Set(register.BootTarget, 0)
		return
	}
	if !register.GetBool(regs, register.BootAuto) ||
		register.GetBool(regs, register.BootOverride) {
		return
	}
	if register.GetBool(regs, register.LaserActive) {
		regs.Set(register.BootTarget, 0)
		return
	}
	if now.Before(e.freezeUntil) {
		// hold the last applied target
		return
	}
	register.SetBool(regs, register.BootTarget, st.SpindleOn)
}

func (e *Engine) resolveHandles() {
	for d := Device(0); d < numDevices; d++ {
		if e.resolved[d] {
			continue
		}
		h, ok := e.cfg.Gateway.Resolve(e.outputs[d])
		if !ok {
			continue
		}
		e.handles[d] = h
		e.resolved[d] = true
	}
}

// applyAll writes each physical output only when its target register
// differs from the last applied value.
func (e *Engine) applyAll() {
	for d := Device(0); d < numDevices; d++ {
		if !e.resolved[d] {
			continue
		}
		t := e.cfg.Registers.Get(targetReg(d))
		if t == register.Sentinel {
			continue
		}
		var v int8
		if t != 0 {
			v = 1
		}
		if e.applied[d] == v {
			continue
		}
		e.cfg.Gateway.Write(e.handles[d], v == 1)
		e.applied[d] = v
	}
}
