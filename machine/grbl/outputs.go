package grbl

import (
	"log"
	"strconv"
	"sync"

	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/signal"
)

// OutputBank exposes grblHAL digital output ports as a signal gateway,
// driving them with M64/M65. The controller gives no feedback for
// these, so Read reports the last value written.
type OutputBank struct {
	adapter machine.Adapter
	ports   map[string]int

	mx   sync.Mutex
	last map[signal.Handle]bool
}

var _ signal.Gateway = &OutputBank{}

func NewOutputBank(adapter machine.Adapter, ports map[string]int) *OutputBank {
	return &OutputBank{
		adapter: adapter,
		ports:   ports,
		last:    make(map[signal.Handle]bool, len(ports)),
	}
}

func (b *OutputBank) Resolve(name string) (signal.Handle, bool) {
	p, ok := b.ports[name]
	return signal.Handle(p), ok
}

func (b *OutputBank) Read(h signal.Handle) bool {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.last[h]
}

func (b *OutputBank) Write(h signal.Handle, on bool) {
	cmd := "M65P"
	if on {
		cmd = "M64P"
	}
	_, err := b.adapter.Write([]byte(cmd + strconv.Itoa(int(h)) + "\n"))
	if err != nil {
		log.Println("ERROR: write output:", err)
		return
	}
	b.mx.Lock()
	b.last[h] = on
	b.mx.Unlock()
}
