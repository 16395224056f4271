package automation

import (
	"errors"

	"github.com/mastercactapus/cncauto/register"
)

// Device is one of the outputs the engine owns exclusively. No other
// code may write these outputs; everything else requests a change
// through the device's target register.
type Device int

const (
	Collector Device = iota
	Boot
	VacuumA
	VacuumB

	numDevices
)

var deviceNames = [numDevices]string{"collector", "boot", "vacuum-a", "vacuum-b"}

// Default output signal names, overridable via Config.Outputs.
var defaultOutputs = [numDevices]string{"dust_collector", "dust_boot", "vacuum_a", "vacuum_b"}

func (d Device) String() string {
	if d < 0 || d >= numDevices {
		return "unknown"
	}
	return deviceNames[d]
}

// ParseDevice resolves a device by name.
func ParseDevice(name string) (Device, error) {
	for i, n := range deviceNames {
		if n == name {
			return Device(i), nil
		}
	}
	return 0, errors.New("automation: unknown device: " + name)
}

func targetReg(d Device) register.ID {
	switch d {
	case Collector:
		return register.CollectorTarget
	case Boot:
		return register.BootTarget
	case VacuumA:
		return register.VacuumATarget
	}
	return register.VacuumBTarget
}

func autoReg(d Device) register.ID {
	switch d {
	case Collector:
		return register.CollectorAuto
	case Boot:
		return register.BootAuto
	case VacuumA:
		return register.VacuumAAuto
	}
	return register.VacuumBAuto
}

// LatchState tracks the collector's per-program latch.
type LatchState int

const (
	Unlatched LatchState = iota
	Latched
	ProgramActive
)

func (l LatchState) String() string {
	switch l {
	case Latched:
		return "latched"
	case ProgramActive:
		return "program-active"
	}
	return "unlatched"
}
