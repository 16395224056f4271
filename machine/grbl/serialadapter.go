package grbl

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/machine"
)

// spindleStopOverride is the grbl realtime command that forces the
// spindle (laser, in laser mode) off immediately, regardless of hold
// state or buffered lines.
const spindleStopOverride = 0x9e

// SerialAdapter drives a grbl controller over a direct serial
// connection, polling status fast enough for a 10-20Hz automation tick.
type SerialAdapter struct {
	conn *Conn

	// VirtualToolBase is the first tool number reported as a virtual
	// tool. Defaults to 90.
	VirtualToolBase int

	mx      sync.Mutex
	last    machine.State
	offsets [6]coord.Point
	state   chan machine.State

	shadow shadow
}

var _ machine.Adapter = &SerialAdapter{}

func NewSerialAdapter(rw io.ReadWriter) *SerialAdapter {
	conn := NewConn(rw)
	adapter := &SerialAdapter{
		conn:            conn,
		VirtualToolBase: 90,
		state:           make(chan machine.State),
	}
	go func() {
		for range time.NewTicker(100 * time.Millisecond).C {
			if conn.WriteByte('?') == io.ErrClosedPipe {
				return
			}
		}
	}()
	go adapter.readLoop()

	return adapter
}

func (adapter *SerialAdapter) Close() error { return adapter.conn.Close() }

func (adapter *SerialAdapter) State() chan machine.State { return adapter.state }

func (adapter *SerialAdapter) CurrentState() machine.State {
	adapter.mx.Lock()
	state := adapter.last
	adapter.mx.Unlock()
	return state
}

// FixtureOffsets queries `$#` and reports the stored G54..G59 origins.
// The PUSH lines are processed by readLoop before the trailing ok
// unblocks the write, so the snapshot afterwards is current.
func (adapter *SerialAdapter) FixtureOffsets() ([6]coord.Point, error) {
	_, err := adapter.conn.Write([]byte("$#\n"))
	if err != nil {
		return [6]coord.Point{}, err
	}
	adapter.mx.Lock()
	offs := adapter.offsets
	adapter.mx.Unlock()
	return offs, nil
}

func (adapter *SerialAdapter) SafeOutputsOff() error {
	return adapter.conn.WriteByte(spindleStopOverride)
}

func (adapter *SerialAdapter) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := adapter.conn.Read(buf)
		if err == io.ErrClosedPipe {
			return
		}
		if err != nil {
			log.Println("ERROR: read from port:", err)
			continue
		}
		if n == 0 {
			continue
		}
		data := string(buf[:n])
		switch data[0] {
		case '<':
			adapter.applyStatus(data)
		case '[':
			slot, p, ok, err := parseOffset(data)
			if err != nil {
				log.Println("ERROR: parse offsets:", err)
				continue
			}
			if ok {
				adapter.mx.Lock()
				adapter.offsets[slot-1] = p
				adapter.mx.Unlock()
			}
		}
	}
}

func (adapter *SerialAdapter) applyStatus(data string) {
	adapter.mx.Lock()
	stat, err := parseStatus(adapter.last, data)
	if err != nil {
		adapter.mx.Unlock()
		log.Println("ERROR: parse status:", err)
		return
	}
	tool, rot := adapter.shadow.snapshot()
	stat.Rotation = rot
	if tool >= adapter.VirtualToolBase {
		stat.VirtualTool = tool
	} else {
		stat.VirtualTool = 0
	}
	adapter.last = *stat
	adapter.mx.Unlock()
	select {
	case adapter.state <- *stat:
	default:
	}
}

func (adapter *SerialAdapter) ReadFrom(r io.Reader) (int64, error) {
	return adapter.conn.ReadFrom(io.TeeReader(r, &adapter.shadow))
}

func (adapter *SerialAdapter) Write(p []byte) (int, error) {
	n, err := adapter.conn.Write(p)
	if err == nil {
		adapter.shadow.Write(p)
	}
	return n, err
}

// WriteByte passes realtime commands straight through; they never
// affect modal state.
func (adapter *SerialAdapter) WriteByte(b byte) error {
	return adapter.conn.WriteByte(b)
}
