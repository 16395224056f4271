// Package sim provides an in-process simulated controller. It interprets
// the small g-code vocabulary the automation layer emits (fixture offsets,
// rotation, tool identity, length comp, spindle) and tracks the resulting
// state, letting the rest of the system run without hardware.
package sim

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/gcode"
	"github.com/mastercactapus/cncauto/machine"
)

// DefaultVirtualBase is the first tool id reported as a virtual tool.
const DefaultVirtualBase = 90

type Controller struct {
	mx sync.Mutex

	pos      coord.Point
	fixtures [6]coord.Point
	wcs      int
	rot      coord.Frame
	tool     int
	comp     float64
	spindle  bool
	relative bool

	enabled    bool
	inCycle    bool
	toolChange bool
	hold       machine.HoldCode
	velocity   coord.Point

	virtualBase int
	safetyPins  []string

	pins  map[string]bool
	names []string

	stream chan machine.State
}

var _ machine.Adapter = &Controller{}

func New() *Controller {
	return &Controller{
		enabled:     true,
		virtualBase: DefaultVirtualBase,
		safetyPins:  []string{"laser_enable"},
		pins:        make(map[string]bool),
		stream:      make(chan machine.State, 16),
	}
}

// SetFixtureOffset seeds a stored work coordinate origin. Slot is 1-based.
func (c *Controller) SetFixtureOffset(slot int, p coord.Point) {
	c.mx.Lock()
	c.fixtures[slot-1] = p
	c.mx.Unlock()
}

// SetRotation seeds an active coordinate rotation.
func (c *Controller) SetRotation(f coord.Frame) {
	c.mx.Lock()
	c.rot = f
	c.mx.Unlock()
}

func (c *Controller) SetEnabled(v bool) {
	c.mx.Lock()
	c.enabled = v
	c.mx.Unlock()
	c.push()
}

func (c *Controller) SetInCycle(v bool) {
	c.mx.Lock()
	c.inCycle = v
	c.mx.Unlock()
	c.push()
}

func (c *Controller) SetToolChange(v bool) {
	c.mx.Lock()
	c.toolChange = v
	c.mx.Unlock()
	c.push()
}

func (c *Controller) SetHold(h machine.HoldCode) {
	c.mx.Lock()
	c.hold = h
	c.mx.Unlock()
	c.push()
}

func (c *Controller) SetSpindle(on bool) {
	c.mx.Lock()
	c.spindle = on
	c.mx.Unlock()
	c.push()
}

func (c *Controller) SetVelocity(p coord.Point) {
	c.mx.Lock()
	c.velocity = p
	c.mx.Unlock()
}

func (c *Controller) Tool() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.tool
}

func (c *Controller) LengthComp() float64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.comp
}

func (c *Controller) Rotation() coord.Frame {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.rot
}

func (c *Controller) CurrentState() machine.State {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.snapshot()
}

// snapshot must be called with the lock held.
func (c *Controller) snapshot() machine.State {
	st := machine.State{
		Enabled:    c.enabled,
		SpindleOn:  c.spindle,
		InCycle:    c.inCycle,
		ToolChange: c.toolChange,
		Hold:       c.hold,
		Rotation:   c.rot,
		MPos:       c.pos,
		WCO:        c.fixtures[c.wcs],
		Velocity:   c.velocity,
	}
	if c.tool >= c.virtualBase {
		st.VirtualTool = c.tool
	}
	switch {
	case !c.enabled:
		st.Status = "Alarm"
	case c.hold != machine.HoldNone:
		st.Status = "Hold"
	case c.inCycle:
		st.Status = "Run"
	default:
		st.Status = "Idle"
	}
	return st
}

func (c *Controller) State() chan machine.State { return c.stream }

func (c *Controller) push() {
	c.mx.Lock()
	st := c.snapshot()
	c.mx.Unlock()
	select {
	case c.stream <- st:
	default:
	}
}

func (c *Controller) FixtureOffsets() ([6]coord.Point, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.fixtures, nil
}

func (c *Controller) SafeOutputsOff() error {
	c.mx.Lock()
	for _, name := range c.safetyPins {
		c.pins[name] = false
	}
	c.mx.Unlock()
	return nil
}

// WriteByte accepts realtime commands; the simulator has nothing to do
// for them.
func (c *Controller) WriteByte(byte) error { return nil }

func (c *Controller) Write(p []byte) (int, error) {
	blocks, err := gcode.Parse(string(p))
	if err != nil {
		return 0, err
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	for _, b := range blocks {
		if err = c.run(b); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (c *Controller) ReadFrom(r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if err != nil {
		return n, err
	}
	_, err = c.Write(buf.Bytes())
	return n, err
}

// run must be called with the lock held.
func (c *Controller) run(b gcode.Block) error {
	if err := b.Validate(); err != nil {
		return err
	}

	var g10, g53, motion bool
	for _, w := range b {
		if w.W != 'G' && w.W != 'M' {
			continue
		}
		if w.W == 'M' {
			switch w.Arg {
			case 3:
				c.spindle = true
			case 5:
				c.spindle = false
			case 61:
				if ok, q := b.Arg('Q'); ok {
					c.tool = int(q)
				}
			}
			continue
		}
		switch w.Arg {
		case 10:
			g10 = true
		case 53:
			g53 = true
		case 0, 1:
			motion = true
		case 68:
			_, x := b.Arg('X')
			_, y := b.Arg('Y')
			_, r := b.Arg('R')
			c.rot = coord.Frame{X: x, Y: y, Angle: r, Valid: true}
		case 69:
			c.rot = coord.Frame{}
		case 43.1:
			if ok, z := b.Arg('Z'); ok {
				c.comp = z
			}
		case 49:
			c.comp = 0
		case 90:
			c.relative = false
		case 91:
			c.relative = true
		case 54, 55, 56, 57, 58, 59:
			c.wcs = int(w.Arg) - 54
		}
	}

	if g10 {
		return c.storeOffset(b)
	}
	if motion {
		c.move(b, g53)
	}
	return nil
}

func (c *Controller) storeOffset(b gcode.Block) error {
	okL, l := b.Arg('L')
	okP, p := b.Arg('P')
	if !okL || l != 2 || !okP || p < 1 || p > 6 {
		return errors.New("sim: unsupported G10 form: " + b.String())
	}
	o := c.fixtures[int(p)-1]
	if ok, x := b.Arg('X'); ok {
		o.X = x
	}
	if ok, y := b.Arg('Y'); ok {
		o.Y = y
	}
	if ok, z := b.Arg('Z'); ok {
		o.Z = z
	}
	c.fixtures[int(p)-1] = o
	return nil
}

func (c *Controller) move(b gcode.Block, machineCoords bool) {
	target := c.pos
	if !machineCoords {
		target = c.pos.Sub(c.fixtures[c.wcs])
	}
	if c.relative {
		target = coord.Point{}
	}
	if ok, x := b.Arg('X'); ok {
		target.X = x
	}
	if ok, y := b.Arg('Y'); ok {
		target.Y = y
	}
	if ok, z := b.Arg('Z'); ok {
		target.Z = z
	}
	switch {
	case c.relative:
		c.pos = c.pos.Add(target)
	case machineCoords:
		c.pos = target
	default:
		c.pos = target.Add(c.fixtures[c.wcs])
	}
}
