package automation

import (
	"testing"
	"time"

	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/register"
	"github.com/mastercactapus/cncauto/signal"
	"github.com/stretchr/testify/assert"
)

type pinWrite struct {
	Name string
	On   bool
}

// fakeGateway records every physical write so tests can assert the
// single-writer invariant and edge-triggered behavior.
type fakeGateway struct {
	missing map[string]bool
	names   []string
	pins    map[string]bool
	writes  []pinWrite
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		missing: make(map[string]bool),
		pins:    make(map[string]bool),
	}
}

func (g *fakeGateway) Resolve(name string) (signal.Handle, bool) {
	if g.missing[name] {
		return 0, false
	}
	for i, n := range g.names {
		if n == name {
			return signal.Handle(i), true
		}
	}
	g.names = append(g.names, name)
	return signal.Handle(len(g.names) - 1), true
}

func (g *fakeGateway) Read(h signal.Handle) bool { return g.pins[g.names[h]] }

func (g *fakeGateway) Write(h signal.Handle, on bool) {
	g.pins[g.names[h]] = on
	g.writes = append(g.writes, pinWrite{Name: g.names[h], On: on})
}

func (g *fakeGateway) writesTo(name string) []pinWrite {
	var res []pinWrite
	for _, w := range g.writes {
		if w.Name == name {
			res = append(res, w)
		}
	}
	return res
}

type fakeController struct {
	st        machine.State
	safeCalls int
}

func (f *fakeController) CurrentState() machine.State { return f.st }
func (f *fakeController) SafeOutputsOff() error {
	f.safeCalls++
	return nil
}

type fixture struct {
	gw   *fakeGateway
	ctrl *fakeController
	regs *register.MemStore
	now  time.Time
	eng  *Engine
}

func newFixture() *fixture {
	f := &fixture{
		gw:   newFakeGateway(),
		ctrl: &fakeController{st: machine.State{Enabled: true}},
		regs: register.NewMemStore(),
		now:  time.Unix(1000, 0),
	}
	f.eng = NewEngine(Config{
		Gateway:    f.gw,
		Controller: f.ctrl,
		Registers:  f.regs,
		Now:        func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestEngine_CollectorScenario(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.CollectorAuto, true)

	// spindle off, no program
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorTarget))

	// spindle on outside a program: follow spindle
	f.ctrl.st.SpindleOn = true
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))
	assert.Equal(t, Unlatched, f.eng.Latch())

	// cycle starts with spindle on: latch engages
	f.ctrl.st.InCycle = true
	f.eng.Tick()
	assert.Equal(t, Latched, f.eng.Latch())
	f.eng.Tick()
	assert.Equal(t, ProgramActive, f.eng.Latch())

	// spindle drops mid-program: latch holds the target at 1
	f.ctrl.st.SpindleOn = false
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))

	// program ends: latch clears, target returns to 0
	f.ctrl.st.InCycle = false
	f.eng.ProgramEnd()
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorTarget))
	assert.Equal(t, Unlatched, f.eng.Latch())
}

func TestEngine_OverrideClearsOnSpindleEdge(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.CollectorAuto, true)
	f.regs.Set(register.CollectorOverride, 1)
	f.regs.Set(register.BootOverride, 1)

	// spindle stays on across ticks: 1->1 never clears
	f.ctrl.st.SpindleOn = true
	f.eng.Tick() // 0->1 edge clears
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorOverride))
	assert.Equal(t, 0.0, f.regs.Get(register.BootOverride))

	f.regs.Set(register.CollectorOverride, 1)
	f.eng.Tick() // 1->1, no edge
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorOverride))

	// spindle off then on again: cleared
	f.ctrl.st.SpindleOn = false
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorOverride))
	f.ctrl.st.SpindleOn = true
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorOverride))
}

func TestEngine_ManualToggle(t *testing.T) {
	f := newFixture()

	// toggle mutates registers only; the physical write happens on the
	// next tick (single-writer)
	assert.NoError(t, f.eng.ManualToggle(Collector))
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorOverride))
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))
	assert.Empty(t, f.gw.writes)

	f.eng.Tick()
	assert.Equal(t, []pinWrite{{Name: "dust_collector", On: true}}, f.gw.writesTo("dust_collector"))

	assert.NoError(t, f.eng.ManualToggle(Collector))
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorTarget))

	// boot toggle is rejected while a tool change or virtual tool is
	// active
	f.ctrl.st.ToolChange = true
	assert.Equal(t, ErrBootLocked, f.eng.ManualToggle(Boot))
	f.ctrl.st.ToolChange = false
	f.ctrl.st.VirtualTool = 91
	assert.Equal(t, ErrBootLocked, f.eng.ManualToggle(Boot))
	f.ctrl.st.VirtualTool = 0
	assert.NoError(t, f.eng.ManualToggle(Boot))
}

func TestEngine_SafetyPath(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.BootAuto, true)
	register.SetBool(f.regs, register.CollectorAuto, true)

	// establish boot down
	f.ctrl.st.SpindleOn = true
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.BootTarget))

	// override flags don't matter on the safety path
	f.regs.Set(register.BootOverride, 1)
	f.regs.Set(register.CollectorTarget, 1)
	f.ctrl.st.Hold = machine.HoldDoor
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))
	assert.False(t, f.gw.pins["dust_boot"])
	assert.Equal(t, 1, f.ctrl.safeCalls)

	// collector register left as the operator set it
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))

	// disabled behaves the same
	f.ctrl.st.Hold = machine.HoldNone
	f.ctrl.st.Enabled = false
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))
	assert.Equal(t, 2, f.ctrl.safeCalls)
}

func TestEngine_BootEpisodeAndFreeze(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.BootAuto, true)

	f.ctrl.st.SpindleOn = true
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.BootTarget))
	assert.True(t, f.gw.pins["dust_boot"])

	// a virtual tool forces the boot up, overriding manual/override
	f.regs.Set(register.BootOverride, 1)
	f.ctrl.st.VirtualTool = 90
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))
	assert.False(t, f.gw.pins["dust_boot"])

	// episode ends: freeze window holds the boot up despite spindle on
	f.regs.Set(register.BootOverride, 0)
	f.ctrl.st.VirtualTool = 0
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))

	f.advance(100 * time.Millisecond)
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))

	// window expires: automatic control resumes
	f.advance(600 * time.Millisecond)
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.BootTarget))
	assert.True(t, f.gw.pins["dust_boot"])
}

func TestEngine_EdgeTriggeredWrites(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.CollectorAuto, true)
	f.ctrl.st.SpindleOn = true

	for i := 0; i < 5; i++ {
		f.eng.Tick()
	}
	// one physical write despite five ticks
	assert.Len(t, f.gw.writesTo("dust_collector"), 1)

	f.ctrl.st.SpindleOn = false
	for i := 0; i < 5; i++ {
		f.eng.Tick()
	}
	assert.Len(t, f.gw.writesTo("dust_collector"), 2)
}

func TestEngine_LazyHandleResolution(t *testing.T) {
	f := newFixture()
	f.gw.missing["dust_collector"] = true
	register.SetBool(f.regs, register.CollectorAuto, true)
	f.ctrl.st.SpindleOn = true

	// handle missing: tick is not fatal, no write
	f.eng.Tick()
	assert.Empty(t, f.gw.writesTo("dust_collector"))

	// handle appears: resolved and applied next tick
	f.gw.missing["dust_collector"] = false
	f.eng.Tick()
	assert.Equal(t, []pinWrite{{Name: "dust_collector", On: true}}, f.gw.writesTo("dust_collector"))
}

func TestEngine_ToolChangeHold(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.CollectorAuto, true)

	// collector running outside a program
	f.ctrl.st.SpindleOn = true
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))

	// tool change starts, spindle stops: pre-change value is held
	f.ctrl.st.SpindleOn = false
	f.ctrl.st.ToolChange = true
	f.eng.Tick()
	f.eng.Tick()
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))

	// tool change over: follows spindle again
	f.ctrl.st.ToolChange = false
	f.eng.Tick()
	assert.Equal(t, 0.0, f.regs.Get(register.CollectorTarget))
}

func TestEngine_VacuumHooks(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.VacuumAAuto, true)
	// vacuum-b automation not enabled
	f.regs.Set(register.VacuumATarget, 1)
	f.regs.Set(register.VacuumBTarget, 1)

	// engine applies but never computes vacuum targets
	f.eng.Tick()
	assert.True(t, f.gw.pins["vacuum_a"])
	assert.True(t, f.gw.pins["vacuum_b"])

	// operator stop must not touch the vacuums
	f.eng.OperatorStop()
	f.eng.Tick()
	assert.True(t, f.gw.pins["vacuum_a"])
	assert.True(t, f.gw.pins["vacuum_b"])

	// program end forces off only where automation is enabled
	f.eng.ProgramEnd()
	f.eng.Tick()
	assert.False(t, f.gw.pins["vacuum_a"])
	assert.True(t, f.gw.pins["vacuum_b"])
}

func TestEngine_LaserInterlock(t *testing.T) {
	f := newFixture()
	register.SetBool(f.regs, register.CollectorAuto, true)
	register.SetBool(f.regs, register.BootAuto, true)
	f.regs.Set(register.LaserActive, 1)
	f.regs.Set(register.CollectorTarget, 1)

	f.ctrl.st.SpindleOn = true
	f.eng.Tick()

	// collector target untouched by automation; boot forced up
	assert.Equal(t, 1.0, f.regs.Get(register.CollectorTarget))
	assert.Equal(t, 0.0, f.regs.Get(register.BootTarget))
}
