// Package vtool manages virtual tool sessions: temporarily re-mapping
// the work coordinate systems so an offset secondary head (probe,
// laser) operates as if it were on the spindle centerline, including
// correct interaction with an active coordinate rotation.
package vtool

import (
	"errors"
	"time"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/gcode"
	"github.com/mastercactapus/cncauto/machine"
	"github.com/mastercactapus/cncauto/register"
	"github.com/mastercactapus/cncauto/signal"
)

var (
	ErrInvalidToolID    = errors.New("vtool: tool id outside the virtual range")
	ErrNotConfigured    = errors.New("vtool: tool has no offset configuration")
	ErrUnsafeState      = errors.New("vtool: machine is in cycle, moving, or held")
	ErrOffsetOutOfRange = errors.New("vtool: configured offset exceeds the allowed bound")
	ErrCorruptedSession = errors.New("vtool: stored session deltas are invalid")
	ErrSessionBusy      = errors.New("vtool: another session operation is in progress")
)

// Tool configures one virtual tool.
type Tool struct {
	// Offset is the head position relative to the spindle. X/Y shift
	// the work origins; Z is applied as dynamic length compensation.
	Offset coord.Point

	// Output optionally names the signal driving the head.
	Output string
}

// Machine is the slice of the machine facade the manager uses.
type Machine interface {
	CurrentState() machine.State
	FixtureOffsets() ([6]coord.Point, error)
	Run([]gcode.Block) error
	SafeOutputsOff() error
}

type Config struct {
	Machine   Machine
	Gateway   signal.Gateway
	Registers register.Store

	// Tools maps virtual tool ids to their configuration.
	Tools map[int]Tool

	// FirstID/LastID bound the reserved virtual tool range.
	// Defaults 90..99.
	FirstID, LastID int

	// MaxOffset bounds a tool's X/Y offset magnitude. Default 50.
	MaxOffset float64

	// MaxOrigin is the largest stored origin considered sane; origins
	// beyond it are skipped rather than mutated. Default 10000.
	MaxOrigin float64

	// LockWait bounds how long an operation waits for an in-flight one
	// before giving up with ErrSessionBusy. Default 500ms.
	LockWait time.Duration
}

// Manager owns the single system-wide coordinate session. Operations
// are serialized; at most one deploy/retract/recover runs at a time.
type Manager struct {
	cfg Config
	sem chan struct{}
}

func NewManager(cfg Config) *Manager {
	if cfg.FirstID == 0 {
		cfg.FirstID = 90
	}
	if cfg.LastID == 0 {
		cfg.LastID = 99
	}
	if cfg.MaxOffset == 0 {
		cfg.MaxOffset = 50
	}
	if cfg.MaxOrigin == 0 {
		cfg.MaxOrigin = 10000
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = 500 * time.Millisecond
	}
	return &Manager{cfg: cfg, sem: make(chan struct{}, 1)}
}

// Active returns the deployed virtual tool id, 0 when none.
func (m *Manager) Active() int {
	v := m.cfg.Registers.Get(register.SessionTool)
	if v == register.Sentinel || v <= 0 {
		return 0
	}
	return int(v)
}

// acquire serializes session operations with a bounded wait. The
// register lock flag is mirrored for UI visibility only; exclusion
// comes from the semaphore.
func (m *Manager) acquire() (release func(), err error) {
	t := time.NewTimer(m.cfg.LockWait)
	defer t.Stop()
	select {
	case m.sem <- struct{}{}:
	case <-t.C:
		return nil, ErrSessionBusy
	}
	m.cfg.Registers.Set(register.SessionLock, 1)
	return func() {
		m.cfg.Registers.Set(register.SessionLock, 0)
		<-m.sem
	}, nil
}

func (m *Manager) lookup(id int) (Tool, error) {
	if id < m.cfg.FirstID || id > m.cfg.LastID {
		return Tool{}, ErrInvalidToolID
	}
	t, ok := m.cfg.Tools[id]
	if !ok {
		return Tool{}, ErrNotConfigured
	}
	return t, nil
}

func (m *Manager) checkSafe() error {
	st := m.cfg.Machine.CurrentState()
	if st.InCycle || st.Hold != machine.HoldNone || st.Moving() {
		return ErrUnsafeState
	}
	return nil
}
