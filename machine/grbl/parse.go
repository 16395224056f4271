package grbl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/machine"
)

func parseCoords(data string) (p coord.Point, err error) {
	parts := strings.Split(data, ",")
	if len(parts) != 3 {
		return p, errors.New("invalid number of elements")
	}
	p.X, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return p, err
	}
	p.Y, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return p, err
	}
	p.Z, err = strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

// parseOffset handles `$#` PUSH messages of the form `[G54:x,y,z]`,
// returning the 1-based coordinate system slot. Other PUSH messages
// (TLO, PRB, G28/G30) return ok=false.
func parseOffset(data string) (slot int, p coord.Point, ok bool, err error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "[")
	data = strings.TrimSuffix(data, "]")
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return 0, p, false, nil
	}
	switch parts[0] {
	case "G54", "G55", "G56", "G57", "G58", "G59":
		slot = int(parts[0][2]-'4') + 1
	default:
		return 0, p, false, nil
	}
	p, err = parseCoords(parts[1])
	if err != nil {
		return 0, p, false, err
	}
	return slot, p, true, nil
}

func parseStatus(stat machine.State, data string) (*machine.State, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "<")
	data = strings.TrimSuffix(data, ">")
	parts := strings.Split(data, "|")
	stat.Status = parts[0]

	status := strings.SplitN(parts[0], ":", 2)[0]
	stat.Enabled = status != "Alarm" && status != "Sleep"
	stat.InCycle = status == "Run" || status == "Hold"
	stat.ToolChange = status == "Tool"
	switch status {
	case "Hold":
		stat.Hold = machine.HoldFeed
	case "Door":
		stat.Hold = machine.HoldDoor
	case "Alarm":
		stat.Hold = machine.HoldAlarm
	default:
		stat.Hold = machine.HoldNone
	}

	var err error
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			continue
		}
		switch sParts[0] {
		case "MPos":
			stat.MPos, err = parseCoords(sParts[1])
		case "WCO":
			stat.WCO, err = parseCoords(sParts[1])
		case "F":
			// scalar rate; carried on X so State.Moving works
			stat.Velocity.X, err = strconv.ParseFloat(sParts[1], 64)
		case "FS":
			fs := strings.Split(sParts[1], ",")
			if len(fs) != 2 {
				return nil, errors.New("invalid FS field: " + s)
			}
			stat.Velocity.X, err = strconv.ParseFloat(fs[0], 64)
			if err != nil {
				return nil, err
			}
			var speed float64
			speed, err = strconv.ParseFloat(fs[1], 64)
			stat.SpindleOn = speed > 0
		case "A":
			// accessory report only appears while something is on
			stat.SpindleOn = strings.ContainsAny(sParts[1], "SC")
		}
		if err != nil {
			return nil, err
		}
	}
	return &stat, nil
}
