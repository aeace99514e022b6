package aqualogic

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/urmzd/aquabridge/pkg/panel"
)

// lcdDegree is the controller's character code for the degree sign.
const lcdDegree = 0xdf

// decodeLEDs returns the steady and flashing LED masks of an LED frame.
// Flashing LEDs are reported as on.
func decodeLEDs(data []byte) (states, flashing panel.State, ok bool) {
	if len(data) < 8 {
		return 0, 0, false
	}
	states = panel.State(binary.LittleEndian.Uint32(data[0:4]))
	flashing = panel.State(binary.LittleEndian.Uint32(data[4:8]))
	return states | flashing, flashing, true
}

// decodeText converts display frame bytes to a string, mapping the LCD
// degree character and dropping trailing NULs.
func decodeText(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		switch {
		case c == lcdDegree:
			b.WriteRune('°')
		case c == 0x00:
		default:
			b.WriteRune(rune(c))
		}
	}
	return b.String()
}

// decodePumpStatus returns speed in percent and power in watts. Power is
// sent as four BCD digits.
func decodePumpStatus(data []byte) (speed, power int, ok bool) {
	if len(data) < 5 {
		return 0, 0, false
	}
	speed = int(data[2])
	power = int(data[3]>>4)*1000 +
		int(data[3]&0x0f)*100 +
		int(data[4]>>4)*10 +
		int(data[4]&0x0f)
	return speed, power, true
}

// displayReading is what a single display line tells us about the system.
type displayReading struct {
	attr   panel.Attribute
	value  any
	metric *bool

	checkSystem *string
	heaterAuto  *bool
}

// parseDisplay interprets one display line. ok is false for text that
// carries no reading.
func parseDisplay(text string) (displayReading, bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return displayReading{}, false
	}

	switch {
	case parts[0] == "Pool" && parts[1] == "Temp":
		return parseTemp(panel.AttrPoolTemp, parts)
	case parts[0] == "Spa" && parts[1] == "Temp":
		return parseTemp(panel.AttrSpaTemp, parts)
	case parts[0] == "Air" && parts[1] == "Temp":
		return parseTemp(panel.AttrAirTemp, parts)
	case parts[0] == "Pool" && parts[1] == "Chlorinator":
		return parsePercent(panel.AttrPoolChlorinator, parts)
	case parts[0] == "Spa" && parts[1] == "Chlorinator":
		return parsePercent(panel.AttrSpaChlorinator, parts)
	case parts[0] == "Salt" && parts[1] == "Level":
		if len(parts) < 4 {
			return displayReading{}, false
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return displayReading{}, false
		}
		metric := parts[3] == "g/L"
		return displayReading{attr: panel.AttrSaltLevel, value: v, metric: &metric}, true
	case parts[0] == "Check" && parts[1] == "System":
		msg := strings.Join(parts[2:], " ")
		return displayReading{checkSystem: &msg}, true
	case parts[0] == "Heater1":
		auto := parts[1] == "Auto"
		return displayReading{heaterAuto: &auto}, true
	}
	return displayReading{}, false
}

// parseTemp handles "<Name> Temp 78°F".
func parseTemp(attr panel.Attribute, parts []string) (displayReading, bool) {
	if len(parts) < 3 {
		return displayReading{}, false
	}
	raw := parts[2]
	metric := strings.HasSuffix(raw, "°C")
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "F"), "C")
	raw = strings.TrimSuffix(raw, "°")
	v, err := strconv.Atoi(raw)
	if err != nil {
		return displayReading{}, false
	}
	return displayReading{attr: attr, value: v, metric: &metric}, true
}

// parsePercent handles "<Name> Chlorinator 50%".
func parsePercent(attr panel.Attribute, parts []string) (displayReading, bool) {
	if len(parts) < 3 {
		return displayReading{}, false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(parts[2], "%"))
	if err != nil {
		return displayReading{}, false
	}
	return displayReading{attr: attr, value: v}, true
}
