// Package register models the controller's shared numeric register table:
// a flat id -> float store through which UI buttons, macros and the tick
// loop communicate. Reads of an unset id return Sentinel.
package register

// Sentinel is the reserved out-of-range value meaning "unset".
const Sentinel = -999999

type ID int

// Register layout. Values are booleans (0/1) unless noted.
const (
	// Device automation-enable flags. Zero or unset means manual mode.
	CollectorAuto ID = 1100
	BootAuto      ID = 1101
	VacuumAAuto   ID = 1102
	VacuumBAuto   ID = 1103

	// Device target mirrors. The engine applies these to the physical
	// outputs; all other code writes targets, never outputs.
	CollectorTarget ID = 1110
	BootTarget      ID = 1111
	VacuumATarget   ID = 1112
	VacuumBTarget   ID = 1113

	// Transient manual-override flags, cleared on the next spindle start.
	CollectorOverride ID = 1120
	BootOverride      ID = 1121

	// Secondary-head interlock: nonzero while the laser head is active.
	LaserActive ID = 1130

	// Virtual-tool session: active id (0 = none) and the applied deltas.
	SessionTool ID = 1140
	SessionDX   ID = 1141 // float, machine units
	SessionDY   ID = 1142 // float, machine units

	// Rotation snapshot captured at deploy time. Valid is 0/1; the center
	// is the original (unshifted) pivot.
	SessionRotValid ID = 1150
	SessionRotX     ID = 1151 // float
	SessionRotY     ID = 1152 // float
	SessionRotAngle ID = 1153 // float, degrees

	// Advisory session lock, mirrored for UI visibility only.
	SessionLock ID = 1160
)

// Store is the flat register table shared with the controller.
type Store interface {
	Get(id ID) float64
	Set(id ID, val float64)
}

// GetBool reads id treating unset as false.
func GetBool(s Store, id ID) bool {
	v := s.Get(id)
	return v != 0 && v != Sentinel
}

// SetBool writes 1 or 0 to id.
func SetBool(s Store, id ID, val bool) {
	if val {
		s.Set(id, 1)
		return
	}
	s.Set(id, 0)
}
