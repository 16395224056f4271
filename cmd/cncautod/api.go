package main

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"

	"github.com/mastercactapus/cncauto/automation"
	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/register"
	"github.com/mastercactapus/cncauto/vtool"
)

type api struct {
	http.Handler
	m    *machine.Machine
	eng  *automation.Engine
	mgr  *vtool.Manager
	regs *register.MemStore
	sse  *sse.Server
}

func newAPI(m *machine.Machine, eng *automation.Engine, mgr *vtool.Manager, regs *register.MemStore, states <-chan machine.State) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		m:       m,
		eng:     eng,
		mgr:     mgr,
		regs:    regs,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/vtool/{id:[0-9]+}/deploy", a.deploy).Methods("POST")
	r.HandleFunc("/api/vtool/retract", a.retract).Methods("POST")
	r.HandleFunc("/api/recover", a.recover).Methods("POST")
	r.HandleFunc("/api/estop", a.estop).Methods("POST")
	r.HandleFunc("/api/device/{device}/toggle", a.toggle).Methods("POST")
	r.HandleFunc("/api/program/end", a.programEnd).Methods("POST")
	r.HandleFunc("/api/program/stop", a.operatorStop).Methods("POST")
	r.HandleFunc("/api/state", a.state).Methods("GET")
	r.PathPrefix("/events/").Handler(a.sse)

	go func() {
		for state := range states {
			data, err := json.Marshal(state)
			if err != nil {
				log.Printf("ERROR: marshal json: %+v", err)
				continue
			}
			a.sse.SendMessage("/events/state", sse.SimpleMessage(string(data)))
		}
	}()

	return a
}

// sessionError maps session manager errors onto HTTP status codes.
func sessionError(w http.ResponseWriter, err error) {
	switch err {
	case nil:
	case vtool.ErrInvalidToolID, vtool.ErrNotConfigured, vtool.ErrOffsetOutOfRange:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case vtool.ErrUnsafeState, vtool.ErrSessionBusy:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("ERROR: session: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) deploy(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionError(w, a.mgr.Deploy(id))
}

func (a *api) retract(w http.ResponseWriter, req *http.Request) {
	sessionError(w, a.mgr.Retract())
}

func (a *api) recover(w http.ResponseWriter, req *http.Request) {
	sessionError(w, a.mgr.Recover())
}

func (a *api) estop(w http.ResponseWriter, req *http.Request) {
	a.mgr.EmergencyStop()
}

func (a *api) toggle(w http.ResponseWriter, req *http.Request) {
	d, err := automation.ParseDevice(mux.Vars(req)["device"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = a.eng.ManualToggle(d)
	if err == automation.ErrBootLocked {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("ERROR: toggle: %+v", err)
		http.Error(w, err.Error(), 500)
	}
}

func (a *api) programEnd(w http.ResponseWriter, req *http.Request) {
	a.eng.ProgramEnd()
}

func (a *api) operatorStop(w http.ResponseWriter, req *http.Request) {
	a.eng.OperatorStop()
}

func (a *api) state(w http.ResponseWriter, req *http.Request) {
	res := struct {
		Machine   machine.State
		Latch     string
		Active    int
		Registers map[register.ID]float64
	}{
		Machine:   a.m.CurrentState(),
		Latch:     a.eng.Latch().String(),
		Active:    a.mgr.Active(),
		Registers: a.regs.Snapshot(),
	}
	err := json.NewEncoder(w).Encode(res)
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}
