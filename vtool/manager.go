package vtool

import (
	"log"
	"math"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/gcode"
	"github.com/mastercactapus/cncauto/register"
)

// Deploy activates a virtual tool: every work coordinate origin is
// shifted by the tool's (x,y) offset so the head operates on-center,
// an active rotation is re-pivoted by the same delta, and the tool
// identity and length compensation are switched.
//
// All validation happens before any mutation; a rejected deploy leaves
// origins and registers untouched.
func (m *Manager) Deploy(id int) error {
	tool, err := m.lookup(id)
	if err != nil {
		return err
	}
	if math.Abs(tool.Offset.X) > m.cfg.MaxOffset || math.Abs(tool.Offset.Y) > m.cfg.MaxOffset {
		return ErrOffsetOutOfRange
	}

	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err = m.checkSafe(); err != nil {
		return err
	}

	if cur := m.Active(); cur == id {
		return nil
	} else if cur != 0 {
		if err = m.retract(); err != nil {
			return err
		}
	}

	rot := m.cfg.Machine.CurrentState().Rotation
	dx, dy := tool.Offset.X, tool.Offset.Y

	if rot.Valid {
		// cancel the rotation while origins move underneath it
		if err = m.cfg.Machine.Run([]gcode.Block{gcode.RotationOff()}); err != nil {
			return err
		}
	}

	if err = m.shiftOrigins(coord.Point{X: -dx, Y: -dy}); err != nil {
		return err
	}

	if rot.Valid {
		// re-pivot by the same delta: the rotation stays fixed
		// relative to the physical workpiece
		if err = m.cfg.Machine.Run([]gcode.Block{gcode.RotationOn(rot.Shift(-dx, -dy))}); err != nil {
			return err
		}
	}

	regs := m.cfg.Registers
	regs.Set(register.SessionTool, float64(id))
	regs.Set(register.SessionDX, dx)
	regs.Set(register.SessionDY, dy)
	if rot.Valid {
		// the original, unshifted pivot; retract restores from this
		regs.Set(register.SessionRotValid, 1)
		regs.Set(register.SessionRotX, rot.X)
		regs.Set(register.SessionRotY, rot.Y)
		regs.Set(register.SessionRotAngle, rot.Angle)
	} else {
		regs.Set(register.SessionRotValid, 0)
	}

	err = m.cfg.Machine.Run([]gcode.Block{
		gcode.SelectTool(id),
		gcode.LengthComp(tool.Offset.Z),
	})
	if err != nil {
		return err
	}

	m.setOutput(tool.Output, true)
	return nil
}

// Retract reverses an active session. Success and a no-op when no
// session is active.
func (m *Manager) Retract() error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	if m.Active() == 0 {
		return nil
	}
	if err = m.checkSafe(); err != nil {
		return err
	}
	return m.retract()
}

// retract must be called with the session lock held and a session
// active.
func (m *Manager) retract() error {
	regs := m.cfg.Registers
	id := m.Active()

	dx := regs.Get(register.SessionDX)
	dy := regs.Get(register.SessionDY)
	if dx == register.Sentinel || dy == register.Sentinel ||
		math.Abs(dx) > m.cfg.MaxOffset || math.Abs(dy) > m.cfg.MaxOffset {
		return ErrCorruptedSession
	}

	if tool, ok := m.cfg.Tools[id]; ok {
		m.setOutput(tool.Output, false)
	}

	if err := m.shiftOrigins(coord.Point{X: dx, Y: dy}); err != nil {
		return err
	}

	if regs.Get(register.SessionRotValid) == 1 {
		// restore using the stored original center, not the shifted
		// one used during the session
		orig := coord.Frame{
			X:     regs.Get(register.SessionRotX),
			Y:     regs.Get(register.SessionRotY),
			Angle: regs.Get(register.SessionRotAngle),
			Valid: true,
		}
		err := m.cfg.Machine.Run([]gcode.Block{
			gcode.RotationOff(),
			gcode.RotationOn(orig),
		})
		if err != nil {
			return err
		}
	}

	m.clearSession()
	return m.cfg.Machine.Run([]gcode.Block{
		gcode.SelectTool(0),
		gcode.ClearLengthComp(),
	})
}

// shiftOrigins adds delta to every stored work coordinate origin,
// skipping (with a warning) any origin that looks physically
// implausible rather than corrupting it further.
func (m *Manager) shiftOrigins(delta coord.Point) error {
	offs, err := m.cfg.Machine.FixtureOffsets()
	if err != nil {
		return err
	}
	blocks := make([]gcode.Block, 0, len(offs))
	for i, p := range offs {
		if p.MaxAbs() > m.cfg.MaxOrigin {
			log.Printf("WARN: vtool: G%d origin out of range, left untouched: %+v", 54+i, p)
			continue
		}
		blocks = append(blocks, gcode.SetFixtureOffset(i+1, p.Add(delta)))
	}
	return m.cfg.Machine.Run(blocks)
}

func (m *Manager) clearSession() {
	regs := m.cfg.Registers
	regs.Set(register.SessionTool, 0)
	regs.Set(register.SessionDX, register.Sentinel)
	regs.Set(register.SessionDY, register.Sentinel)
	regs.Set(register.SessionRotValid, 0)
	regs.Set(register.SessionRotX, register.Sentinel)
	regs.Set(register.SessionRotY, register.Sentinel)
	regs.Set(register.SessionRotAngle, register.Sentinel)
}

func (m *Manager) setOutput(name string, on bool) {
	if name == "" {
		return
	}
	h, ok := m.cfg.Gateway.Resolve(name)
	if !ok {
		log.Println("WARN: vtool: output unavailable:", name)
		return
	}
	m.cfg.Gateway.Write(h, on)
}

func (m *Manager) allOutputsOff() {
	for _, tool := range m.cfg.Tools {
		m.setOutput(tool.Output, false)
	}
}
