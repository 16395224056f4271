package vtool

import (
	"log"
	"math"

	"github.com/mastercactapus/cncauto/gcode"
	"github.com/mastercactapus/cncauto/register"
)

// Recover reconciles state after an abnormal stop, typically on machine
// re-enable. Session outputs are forced off before anything else; then
// the session is unwound like a retract, except stored deltas are
// treated defensively: sentinel or out-of-range values are discarded
// with a warning instead of being applied.
func (m *Manager) Recover() error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	m.allOutputsOff()
	if err = m.cfg.Machine.SafeOutputsOff(); err != nil {
		log.Println("ERROR: vtool: safe outputs off:", err)
	}

	if m.Active() == 0 {
		return nil
	}

	regs := m.cfg.Registers
	dx := regs.Get(register.SessionDX)
	dy := regs.Get(register.SessionDY)
	if dx == register.Sentinel || dy == register.Sentinel ||
		math.Abs(dx) > m.cfg.MaxOffset || math.Abs(dy) > m.cfg.MaxOffset {
		// never guess at corrupted offsets: restoring them would
		// compound the damage
		log.Printf("WARN: vtool: discarding corrupted session (dx=%v dy=%v)", dx, dy)
		m.clearSession()
		return m.cfg.Machine.Run([]gcode.Block{
			gcode.SelectTool(0),
			gcode.ClearLengthComp(),
		})
	}

	if err = m.checkSafe(); err != nil {
		return err
	}
	return m.retract()
}

// EmergencyStop drives the fastest possible safe state: session outputs
// off, nothing else. Coordinate reconciliation is left to Recover on
// the next enable.
func (m *Manager) EmergencyStop() {
	m.allOutputsOff()
	if err := m.cfg.Machine.SafeOutputsOff(); err != nil {
		log.Println("ERROR: vtool: safe outputs off:", err)
	}
}
