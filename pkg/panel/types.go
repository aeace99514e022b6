package panel

import (
	"fmt"
	"strings"
	"time"
)

// State is a bitmask of panel LED states as reported by the controller.
type State uint32

const (
	StateHeater1 State = 1 << iota
	StateValve3
	StateCheckSystem
	StatePool
	StateSpa
	StateFilter
	StateLights
	StateAux1
	StateAux2
	StateService
	StateAux3
	StateAux4
	StateAux5
	StateAux6
	StateValve4
	StateSpillover
	StateSystemOff
	StateAux7
	StateAux8
	StateAux9
	StateAux10
	StateAux11
	StateAux12
	StateAux13
	StateAux14
	StateSuperChlorinate
)

// Pseudo-states derived from display text rather than LEDs.
const (
	StateHeaterAutoMode State = 1 << 30
	StateFilterLowSpeed State = 1 << 31
)

var stateNames = map[State]string{
	StateHeater1:         "HEATER_1",
	StateValve3:          "VALVE_3",
	StateCheckSystem:     "CHECK_SYSTEM",
	StatePool:            "POOL",
	StateSpa:             "SPA",
	StateFilter:          "FILTER",
	StateLights:          "LIGHTS",
	StateAux1:            "AUX_1",
	StateAux2:            "AUX_2",
	StateService:         "SERVICE",
	StateAux3:            "AUX_3",
	StateAux4:            "AUX_4",
	StateAux5:            "AUX_5",
	StateAux6:            "AUX_6",
	StateValve4:          "VALVE_4",
	StateSpillover:       "SPILLOVER",
	StateSystemOff:       "SYSTEM_OFF",
	StateAux7:            "AUX_7",
	StateAux8:            "AUX_8",
	StateAux9:            "AUX_9",
	StateAux10:           "AUX_10",
	StateAux11:           "AUX_11",
	StateAux12:           "AUX_12",
	StateAux13:           "AUX_13",
	StateAux14:           "AUX_14",
	StateSuperChlorinate: "SUPER_CHLORINATE",
	StateHeaterAutoMode:  "HEATER_AUTO_MODE",
	StateFilterLowSpeed:  "FILTER_LOW_SPEED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("STATE(%#x)", uint32(s))
}

// LEDName returns the lower-case name used for LED flags in the display mirror.
func (s State) LEDName() string {
	return strings.ToLower(s.String())
}

// Attribute identifies a read-only numeric value decoded from the panel.
type Attribute string

// Attributes decoded from display text and pump status frames.
const (
	AttrAirTemp         Attribute = "air_temp"
	AttrPoolTemp        Attribute = "pool_temp"
	AttrSpaTemp         Attribute = "spa_temp"
	AttrPoolChlorinator Attribute = "pool_chlorinator"
	AttrSpaChlorinator  Attribute = "spa_chlorinator"
	AttrSaltLevel       Attribute = "salt_level"
	AttrPumpSpeed       Attribute = "pump_speed"
	AttrPumpPower       Attribute = "pump_power"
)

// Snapshot is a point-in-time copy of everything decoded from the panel.
type Snapshot struct {
	States             State             `json:"states"`
	Flashing           State             `json:"flashing"`
	Attributes         map[Attribute]any `json:"attributes"`
	CheckSystemMessage string            `json:"check_system_message,omitempty"`
	Metric             bool              `json:"metric"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Get reports whether the given state bit is set.
func (s Snapshot) Get(st State) bool {
	return s.States&st != 0
}

// Attribute returns a decoded attribute value, or nil if it was never seen.
func (s Snapshot) Attribute(a Attribute) any {
	if s.Attributes == nil {
		return nil
	}
	return s.Attributes[a]
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Attributes = make(map[Attribute]any, len(s.Attributes))
	for k, v := range s.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// LEDs renders the state bitmask as named flags for the display mirror.
func (s Snapshot) LEDs() map[string]bool {
	leds := make(map[string]bool, len(stateNames))
	for st := range stateNames {
		if st == StateHeaterAutoMode || st == StateFilterLowSpeed {
			continue
		}
		leds[st.LEDName()] = s.Get(st)
	}
	return leds
}
