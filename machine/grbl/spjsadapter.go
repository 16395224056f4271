package grbl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/spjs"
)

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "cmd_" + strconv.FormatInt(id, 36)
}

// SPJSAdapter drives a grbl controller through a Serial-Port-JSON-Server
// bridge, keeping the port open across bridge reconnects.
type SPJSAdapter struct {
	sp   *spjs.SPJS
	port string

	// VirtualToolBase is the first tool number reported as a virtual
	// tool. Defaults to 90.
	VirtualToolBase int

	cmds    chan adapterMessage
	waiting map[string]chan error

	mx      sync.Mutex
	last    machine.State
	offsets [6]coord.Point
	state   chan machine.State

	shadow shadow
}

var _ machine.Adapter = &SPJSAdapter{}

type adapterMessage struct {
	spjs.JSON
	wait chan error
}

func NewSPJSAdapter(sp *spjs.SPJS, port string) *SPJSAdapter {
	adapter := &SPJSAdapter{
		sp:              sp,
		port:            port,
		VirtualToolBase: 90,
		waiting:         make(map[string]chan error, 100),
		cmds:            make(chan adapterMessage, 1000),
		state:           make(chan machine.State),
	}
	go adapter.loop()

	return adapter
}

func (adapter *SPJSAdapter) State() chan machine.State { return adapter.state }

func (adapter *SPJSAdapter) CurrentState() machine.State {
	adapter.mx.Lock()
	defer adapter.mx.Unlock()
	return adapter.last
}

func (adapter *SPJSAdapter) FixtureOffsets() ([6]coord.Point, error) {
	_, err := adapter.Write([]byte("$#\n"))
	if err != nil {
		return [6]coord.Point{}, err
	}
	adapter.mx.Lock()
	offs := adapter.offsets
	adapter.mx.Unlock()
	return offs, nil
}

// SafeOutputsOff sends the spindle-stop realtime override as raw data,
// bypassing the line queue so it takes effect mid-hold.
func (adapter *SPJSAdapter) SafeOutputsOff() error {
	adapter.cmds <- adapterMessage{JSON: spjs.JSON{
		Port: adapter.port,
		Data: []spjs.Data{{Data: string(rune(spindleStopOverride)), ID: nextID()}},
	}}
	return nil
}

func (adapter *SPJSAdapter) applyStatus(data string) {
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

func (adapter *SPJSAdapter) handleData(data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line[0] {
		case '<':
			adapter.applyStatus(line)
		case '[':
			slot, p, ok, err := parseOffset(line)
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

func (adapter *SPJSAdapter) loop() {
	for {
		select {
		case resp := <-adapter.sp.Messages():
			switch msg := resp.(type) {
			case *spjs.DataFrame:
				if msg.Port == adapter.port {
					adapter.handleData(msg.Data)
				}
			case *spjs.CmdStatus:
				switch msg.Cmd {
				case "WipedQueue":
					for key, ch := range adapter.waiting {
						ch <- errors.New("wiped queue")
						delete(adapter.waiting, key)
					}
				case "Complete":
					if adapter.waiting[msg.ID] != nil {
						adapter.waiting[msg.ID] <- nil
						delete(adapter.waiting, msg.ID)
					}
				}
			case *spjs.ErrorMessage:
				log.Println("ERROR: spjs:", msg.Error)
			case *spjs.PortList:
				for _, port := range msg.SerialPorts {
					if port.Name != adapter.port {
						continue
					}
					if !port.IsOpen {
						adapter.sp.WriteString("open " + adapter.port + " grbl 115200")
					}
				}
			}
		case msg := <-adapter.cmds:
			adapter.sp.SendJSON(msg.JSON)
			if msg.wait != nil {
				adapter.waiting[msg.Data[len(msg.Data)-1].ID] = msg.wait
			}
		}
	}
}

// ReadFrom queues lines in batches and blocks until the last one
// completes on the controller.
func (adapter *SPJSAdapter) ReadFrom(r io.Reader) (n int64, err error) {
	scan := bufio.NewScanner(io.TeeReader(r, &adapter.shadow))
	var wait chan error
	for {
		var j spjs.JSON
		j.Port = adapter.port
		for scan.Scan() {
			n += int64(len(scan.Bytes()))
			j.Data = append(j.Data, spjs.Data{
				Data: strings.TrimSpace(scan.Text()) + "\n",
				ID:   nextID(),
			})
			if len(j.Data) == 100 {
				break
			}
		}
		if len(j.Data) == 0 {
			break
		}
		wait = make(chan error, 1)
		adapter.cmds <- adapterMessage{JSON: j, wait: wait}
	}

	if wait == nil {
		return 0, nil
	}

	// wait for the last batch to complete
	return n, <-wait
}

func (adapter *SPJSAdapter) WriteByte(b byte) error {
	_, err := adapter.Write([]byte(string(rune(b)) + "\n"))
	return err
}

func (adapter *SPJSAdapter) Write(p []byte) (int, error) {
	n, err := adapter.ReadFrom(bytes.NewBuffer(p))
	return int(n), err
}
