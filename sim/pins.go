package sim

import (
	"github.com/mastercactapus/cncauto/signal"
)

// Pins returns a signal.Gateway view over the controller's discrete I/O.
// Unknown names resolve on first use.
func (c *Controller) Pins() signal.Gateway { return pinBank{c} }

// Pin reports the current state of a named output.
func (c *Controller) Pin(name string) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.pins[name]
}

// SetPin forces a named output, as an external actor would.
func (c *Controller) SetPin(name string, on bool) {
	c.mx.Lock()
	c.pins[name] = on
	c.mx.Unlock()
}

type pinBank struct{ c *Controller }

var _ signal.Gateway = pinBank{}

func (p pinBank) Resolve(name string) (signal.Handle, bool) {
	p.c.mx.Lock()
	defer p.c.mx.Unlock()
	for i, n := range p.c.names {
		if n == name {
			return signal.Handle(i), true
		}
	}
	p.c.names = append(p.c.names, name)
	return signal.Handle(len(p.c.names) - 1), true
}

func (p pinBank) Read(h signal.Handle) bool {
	p.c.mx.Lock()
	defer p.c.mx.Unlock()
	if int(h) >= len(p.c.names) {
		return false
	}
	return p.c.pins[p.c.names[h]]
}

func (p pinBank) Write(h signal.Handle, on bool) {
	p.c.mx.Lock()
	if int(h) < len(p.c.names) {
		p.c.pins[p.c.names[h]] = on
	}
	p.c.mx.Unlock()
}
