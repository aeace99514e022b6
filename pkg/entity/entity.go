// Package entity defines the Home Assistant entities the bridge exposes and
// the short keys they use in the state payload.
package entity

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/urmzd/aquabridge/pkg/panel"
)

// Kind is the Home Assistant platform of an entity.
type Kind string

const (
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
	KindSwitch       Kind = "switch"
	KindLight        Kind = "light"
	KindButton       Kind = "button"
)

// Keys that are always present in the state payload.
const (
	KeyCheckSystem    = "cs"
	KeySystemMessages = "sysm"
)

// DefaultDeviceClass is used for system-message sensors without one.
const DefaultDeviceClass = "problem"

// Descriptor describes one exposed entity. Descriptors are built at
// startup and never mutated.
type Descriptor struct {
	Key         string
	UniqueID    string
	Name        string
	Kind        Kind
	DeviceClass string
	Unit        string

	State     panel.State     // switches and lights
	Attribute panel.Attribute // sensors
	KeyCode   panel.Key       // buttons
	Message   string          // system-message sensors
}

// Catalog maps short payload keys to descriptors.
type Catalog map[string]Descriptor

// Keys returns the catalog keys in sorted order.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SensorDef is a user-defined system-message sensor.
type SensorDef struct {
	Text        string `json:"text" yaml:"text" toml:"text"`
	Key         string `json:"key,omitempty" yaml:"key,omitempty" toml:"key,omitempty"`
	DeviceClass string `json:"device_class,omitempty" yaml:"device_class,omitempty" toml:"device_class,omitempty"`
}

// ParseSensorDef parses "TEXT[,KEY[,DEV_CLASS]]".
func ParseSensorDef(s string) (SensorDef, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return SensorDef{}, &ConfigError{Key: s, Reason: "expected TEXT[,KEY[,DEV_CLASS]]"}
	}
	def := SensorDef{Text: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		def.Key = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		def.DeviceClass = strings.TrimSpace(parts[2])
	}
	return def, nil
}

type control struct {
	key   string
	id    string
	name  string
	state panel.State
}

var controls = []control{
	{"l", "light_lights", "Lights", panel.StateLights},
	{"f", "switch_filter", "Filter", panel.StateFilter},
	{"aux1", "switch_aux_1", "Aux 1", panel.StateAux1},
	{"aux2", "switch_aux_2", "Aux 2", panel.StateAux2},
	{"aux3", "switch_aux_3", "Aux 3", panel.StateAux3},
	{"aux4", "switch_aux_4", "Aux 4", panel.StateAux4},
	{"aux5", "switch_aux_5", "Aux 5", panel.StateAux5},
	{"aux6", "switch_aux_6", "Aux 6", panel.StateAux6},
	{"aux7", "switch_aux_7", "Aux 7", panel.StateAux7},
	{"aux8", "switch_aux_8", "Aux 8", panel.StateAux8},
	{"aux9", "switch_aux_9", "Aux 9", panel.StateAux9},
	{"aux10", "switch_aux_10", "Aux 10", panel.StateAux10},
	{"aux11", "switch_aux_11", "Aux 11", panel.StateAux11},
	{"aux12", "switch_aux_12", "Aux 12", panel.StateAux12},
	{"aux13", "switch_aux_13", "Aux 13", panel.StateAux13},
	{"aux14", "switch_aux_14", "Aux 14", panel.StateAux14},
	{"spill", "switch_spillover", "Spillover", panel.StateSpillover},
	{"v3", "switch_valve_3", "Valve 3", panel.StateValve3},
	{"v4", "switch_valve_4", "Valve 4", panel.StateValve4},
	{"h1", "switch_heater_1", "Heater 1", panel.StateHeater1},
	{"hauto", "switch_heater_auto", "Heater Auto Mode", panel.StateHeaterAutoMode},
	{"sc", "switch_super_chlorinate", "Super Chlorinate", panel.StateSuperChlorinate},
	{"pool", "switch_pool", "Pool", panel.StatePool},
	{"spa", "switch_spa", "Spa", panel.StateSpa},
}

type sensor struct {
	key         string
	id          string
	name        string
	attr        panel.Attribute
	deviceClass string
	unit        string
}

var sensors = []sensor{
	{"t_a", "sensor_air_temperature", "Air Temperature", panel.AttrAirTemp, "temperature", "°F"},
	{"t_p", "sensor_pool_temperature", "Pool Temperature", panel.AttrPoolTemp, "temperature", "°F"},
	{"t_s", "sensor_spa_temperature", "Spa Temperature", panel.AttrSpaTemp, "temperature", "°F"},
	{"cl_p", "sensor_pool_chlorinator", "Pool Chlorinator", panel.AttrPoolChlorinator, "", "%"},
	{"cl_s", "sensor_spa_chlorinator", "Spa Chlorinator", panel.AttrSpaChlorinator, "", "%"},
	{"salt", "sensor_salt_level", "Salt Level", panel.AttrSaltLevel, "", "ppm"},
	{"s_p", "sensor_pump_speed", "Pump Speed", panel.AttrPumpSpeed, "", ""},
	{"p_p", "sensor_pump_power", "Pump Power", panel.AttrPumpPower, "power", "W"},
}

type button struct {
	key  string
	name string
	code panel.Key
}

var buttons = []button{
	{"pool_spa_toggle", "Pool/Spa Toggle", panel.KeyPoolSpa},
	{"menu", "Menu", panel.KeyMenu},
	{"left", "Left", panel.KeyLeft},
	{"right", "Right", panel.KeyRight},
	{"plus", "Plus", panel.KeyPlus},
	{"minus", "Minus", panel.KeyMinus},
	{"service", "Service", panel.KeyService},
}

// DefaultButtons are exposed whether or not they are in the enable list.
var DefaultButtons = []string{"pool_spa_toggle"}

// ControlCatalog returns every switch and light.
func ControlCatalog(identifier string) Catalog {
	c := make(Catalog, len(controls))
	for _, ctl := range controls {
		kind := KindSwitch
		if ctl.key == "l" {
			kind = KindLight
		}
		c[ctl.key] = Descriptor{
			Key:      ctl.key,
			UniqueID: identifier + "_" + ctl.id,
			Name:     ctl.name,
			Kind:     kind,
			State:    ctl.state,
		}
	}
	return c
}

// SensorCatalog returns every numeric sensor.
func SensorCatalog(identifier string) Catalog {
	c := make(Catalog, len(sensors))
	for _, s := range sensors {
		c[s.key] = Descriptor{
			Key:         s.key,
			UniqueID:    identifier + "_" + s.id,
			Name:        s.name,
			Kind:        KindSensor,
			DeviceClass: s.deviceClass,
			Unit:        s.unit,
			Attribute:   s.attr,
		}
	}
	return c
}

// ButtonCatalog returns every keypad button.
func ButtonCatalog(identifier string) Catalog {
	c := make(Catalog, len(buttons))
	for _, b := range buttons {
		c[b.key] = Descriptor{
			Key:      b.key,
			UniqueID: identifier + "_button_" + b.key,
			Name:     b.name,
			Kind:     KindButton,
			KeyCode:  b.code,
		}
	}
	return c
}

// ValidEntityMeta maps every enable-list key to a display name.
func ValidEntityMeta() map[string]string {
	meta := make(map[string]string, len(controls)+len(sensors)+len(buttons))
	for _, s := range sensors {
		meta[s.key] = s.name
	}
	for _, c := range controls {
		meta[c.key] = c.name
	}
	for _, b := range buttons {
		meta[b.key] = b.name
	}
	return meta
}

// ReservedKeys returns the keys user-defined sensors may not use.
func ReservedKeys() map[string]bool {
	reserved := map[string]bool{KeyCheckSystem: true, KeySystemMessages: true}
	for k := range ValidEntityMeta() {
		reserved[k] = true
	}
	return reserved
}

// FilterByEnableList returns the entries of c whose keys are enabled.
// Unknown enable-list entries are ignored.
func FilterByEnableList(c Catalog, enabled []string) Catalog {
	out := make(Catalog)
	for _, k := range enabled {
		if d, ok := c[k]; ok {
			out[k] = d
		}
	}
	return out
}

// ValidateEnableList rejects empty, malformed or unknown keys.
func ValidateEnableList(enabled []string) error {
	meta := ValidEntityMeta()
	for _, k := range enabled {
		if k == "" || IDForString(k) != k {
			return &ConfigError{Key: k, Reason: "malformed entity key"}
		}
		if _, ok := meta[k]; !ok {
			return &ConfigError{Key: k, Reason: "unknown entity"}
		}
	}
	return nil
}

// SystemMessageSensorCatalog builds binary sensors that are ON while their
// text is an active system message.
func SystemMessageSensorCatalog(identifier string, defs []SensorDef) (Catalog, error) {
	reserved := ReservedKeys()
	c := make(Catalog, len(defs))
	ids := make(map[string]bool, len(defs))

	for _, def := range defs {
		def.Text = NormalizeMessage(def.Text)
		if def.Text == "" {
			return nil, &ConfigError{Key: def.Key, Reason: "system message text is empty"}
		}
		source := def.Key
		if source == "" {
			source = def.Text
		}
		key := IDForString(source)
		if key == "" {
			return nil, &ConfigError{Key: source, Reason: "no usable characters in key"}
		}
		if reserved[key] {
			return nil, &ConfigError{Key: key, Reason: "reserved for an existing sensor or switch, specify an unused key"}
		}
		if _, dup := c[key]; dup {
			return nil, &ConfigError{Key: key, Reason: "already used by another system message sensor"}
		}

		id := identifier + "_" + IDForString(def.Text)
		if ids[id] {
			return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("unique id %q already in use", id)}
		}
		ids[id] = true

		class := def.DeviceClass
		if class == "" {
			class = DefaultDeviceClass
		}

		c[key] = Descriptor{
			Key:         key,
			UniqueID:    id,
			Name:        def.Text,
			Kind:        KindBinarySensor,
			DeviceClass: class,
			Message:     def.Text,
		}
	}
	return c, nil
}

// NormalizeMessage trims spaces and NULs from display text so configured
// and observed system messages compare equal.
func NormalizeMessage(text string) string {
	return strings.Trim(text, " \x00")
}

// IDForString turns arbitrary text into an identifier: characters other
// than letters, digits and underscores become spaces, runs of whitespace
// become a single underscore and leading digits are removed.
func IDForString(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimLeft(strings.Join(strings.Fields(mapped), "_"), "0123456789")
}
