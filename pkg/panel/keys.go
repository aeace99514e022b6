package panel

import (
	"fmt"
	"sort"
	"strings"
)

// Key is a keypad key code as sent in key event frames.
type Key uint32

const (
	KeyRight   Key = 0x0001
	KeyMenu    Key = 0x0002
	KeyLeft    Key = 0x0004
	KeyService Key = 0x0008
	KeyMinus   Key = 0x0010
	KeyPlus    Key = 0x0020
	KeyPoolSpa Key = 0x0040
	KeyFilter  Key = 0x0080
	KeyLights  Key = 0x0100
	KeyAux1    Key = 0x0200
	KeyAux2    Key = 0x0400
	KeyAux3    Key = 0x0800
	KeyAux4    Key = 0x1000
	KeyAux5    Key = 0x2000
	KeyAux6    Key = 0x4000
	KeyAux7    Key = 0x8000
	KeyValve3  Key = 0x10000
	KeyValve4  Key = 0x20000
	KeyHeater1 Key = 0x40000
	KeyAux8    Key = 0x80000
	KeyAux9    Key = 0x100000
	KeyAux10   Key = 0x200000
	KeyAux11   Key = 0x400000
	KeyAux12   Key = 0x800000
	KeyAux13   Key = 0x1000000
	KeyAux14   Key = 0x2000000
)

// keyNames is the single table of symbolic key names accepted from the
// web UI, the MCP tools and MQTT button commands.
var keyNames = map[string]Key{
	"right":    KeyRight,
	"menu":     KeyMenu,
	"left":     KeyLeft,
	"service":  KeyService,
	"minus":    KeyMinus,
	"plus":     KeyPlus,
	"pool_spa": KeyPoolSpa,
	"filter":   KeyFilter,
	"lights":   KeyLights,
	"aux_1":    KeyAux1,
	"aux_2":    KeyAux2,
	"aux_3":    KeyAux3,
	"aux_4":    KeyAux4,
	"aux_5":    KeyAux5,
	"aux_6":    KeyAux6,
	"aux_7":    KeyAux7,
	"valve_3":  KeyValve3,
	"valve_4":  KeyValve4,
	"heater_1": KeyHeater1,
	"aux_8":    KeyAux8,
	"aux_9":    KeyAux9,
	"aux_10":   KeyAux10,
	"aux_11":   KeyAux11,
	"aux_12":   KeyAux12,
	"aux_13":   KeyAux13,
	"aux_14":   KeyAux14,
}

// KeyByName resolves a case-insensitive symbolic key name.
func KeyByName(name string) (Key, bool) {
	k, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// KeyNames returns every accepted symbolic key name, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(keyNames))
	for n := range keyNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (k Key) String() string {
	for n, v := range keyNames {
		if v == k {
			return n
		}
	}
	return fmt.Sprintf("key(%#x)", uint32(k))
}

// stateKeys maps toggleable states to the key that flips them.
var stateKeys = map[State]Key{
	StateLights:  KeyLights,
	StateFilter:  KeyFilter,
	StateAux1:    KeyAux1,
	StateAux2:    KeyAux2,
	StateAux3:    KeyAux3,
	StateAux4:    KeyAux4,
	StateAux5:    KeyAux5,
	StateAux6:    KeyAux6,
	StateAux7:    KeyAux7,
	StateAux8:    KeyAux8,
	StateAux9:    KeyAux9,
	StateAux10:   KeyAux10,
	StateAux11:   KeyAux11,
	StateAux12:   KeyAux12,
	StateAux13:   KeyAux13,
	StateAux14:   KeyAux14,
	StateValve3:  KeyValve3,
	StateValve4:  KeyValve4,
	StateHeater1: KeyHeater1,
	StatePool:    KeyPoolSpa,
	StateSpa:     KeyPoolSpa,
}

// KeyForState returns the key that toggles st, if the keypad has one.
func KeyForState(st State) (Key, bool) {
	k, ok := stateKeys[st]
	return k, ok
}
