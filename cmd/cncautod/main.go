package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mastercactapus/cncauto/automation"
	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/machine/grbl"
	"github.com/mastercactapus/cncauto/register"
	"github.com/mastercactapus/cncauto/signal"
	"github.com/mastercactapus/cncauto/sim"
	"github.com/mastercactapus/cncauto/spjs"
	"github.com/mastercactapus/cncauto/vtool"
	"github.com/tarm/serial"
)

// defaultPorts maps signal names to grblHAL digital output ports.
var defaultPorts = map[string]int{
	"dust_collector": 0,
	"dust_boot":      1,
	"vacuum_a":       2,
	"vacuum_b":       3,
	"laser_enable":   4,
}

func main() {
	log.SetFlags(log.Lshortfile)

	port := flag.String("port", "/dev/ttyUSB0", "Port path (or name if using SPJS).")
	baud := flag.Int("baud", 115200, "Baud rate for direct serial connections.")
	spjsURL := flag.String("spjs", "", "Websocket URL of an SPJS bridge; empty for direct serial.")
	controller := flag.String("controller", "grbl", "Controller to use (grbl or sim).")
	addr := flag.String("addr", ":9092", "Address to bind the HTTP server to.")
	tick := flag.Duration("tick", 66*time.Millisecond, "Automation tick period.")
	toolFile := flag.String("tools", "", "Path to the virtual tool table (JSON).")
	flag.Parse()

	tools, err := loadTools(*toolFile)
	if err != nil {
		log.Fatal(err)
	}

	var adapter machine.Adapter
	var gw signal.Gateway
	switch *controller {
	case "sim":
		c := sim.New()
		adapter = c
		gw = c.Pins()
	case "grbl":
		if *spjsURL != "" {
			adapter = grbl.NewSPJSAdapter(spjs.New(*spjsURL), *port)
		} else {
			s, err := serial.OpenPort(&serial.Config{Name: *port, Baud: *baud})
			if err != nil {
				log.Fatal(err)
			}
			adapter = grbl.NewSerialAdapter(s)
		}
		gw = grbl.NewOutputBank(adapter, defaultPorts)
	default:
		log.Fatal("unknown controller: ", *controller)
	}

	m := machine.NewMachine(adapter)
	regs := register.NewMemStore()
	register.SetBool(regs, register.CollectorAuto, true)
	register.SetBool(regs, register.BootAuto, true)

	eng := automation.NewEngine(automation.Config{
		Gateway:    gw,
		Controller: m,
		Registers:  regs,
	})
	mgr := vtool.NewManager(vtool.Config{
		Machine:   m,
		Gateway:   gw,
		Registers: regs,
		Tools:     tools,
	})

	go func() {
		for range time.NewTicker(*tick).C {
			eng.Tick()
		}
	}()

	states := make(chan machine.State)
	go monitor(m, mgr, regs, tools, states)

	api := newAPI(m, eng, mgr, regs, states)

	err = http.ListenAndServe(*addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		api.ServeHTTP(w, req)
	}))
	if err != nil {
		log.Fatal(err)
	}
}

// monitor watches controller state transitions: emergency stop when the
// machine disables, session recovery when it re-enables, and the laser
// interlock register while a powered virtual tool is deployed. States
// are forwarded for the event stream.
func monitor(m *machine.Machine, mgr *vtool.Manager, regs register.Store, tools map[int]vtool.Tool, out chan<- machine.State) {
	prevEnabled := true
	for st := range m.State() {
		if !st.Enabled && prevEnabled {
			log.Println("WARN: machine disabled, forcing session outputs off")
			mgr.EmergencyStop()
		}
		if st.Enabled && !prevEnabled {
			if err := mgr.Recover(); err != nil {
				log.Println("ERROR: recover:", err)
			}
		}
		prevEnabled = st.Enabled

		powered := false
		if t, ok := tools[st.VirtualTool]; ok && st.VirtualTool != 0 {
			powered = t.Output != ""
		}
		register.SetBool(regs, register.LaserActive, powered)

		select {
		case out <- st:
		default:
		}
	}
}

type toolEntry struct {
	X, Y, Z float64
	Output  string
}

// loadTools reads the virtual tool table, keyed by tool number:
//
//	{"90": {"X": 0.5, "Y": -0.25, "Z": -12.7, "Output": "laser_enable"}}
func loadTools(path string) (map[int]vtool.Tool, error) {
	tools := make(map[int]vtool.Tool)
	if path == "" {
		return tools, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]toolEntry
	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		tools[id] = vtool.Tool{
			Offset: coord.Point{X: v.X, Y: v.Y, Z: v.Z},
			Output: v.Output,
		}
	}
	return tools, nil
}
