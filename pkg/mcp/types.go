package mcp

import (
	"encoding/json"

	"github.com/urmzd/aquabridge/pkg/entity"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status         string   `json:"status" jsonschema:"description=Overall health status (healthy or unhealthy)"`
	Panel          string   `json:"panel" jsonschema:"description=Panel connection status"`
	MQTT           string   `json:"mqtt" jsonschema:"description=MQTT broker connection status"`
	LastUpdateAge  float64  `json:"last_update_age_seconds" jsonschema:"description=Seconds since the panel last sent an update"`
	SystemMessages []string `json:"system_messages" jsonschema:"description=Active Check System messages"`
	Timestamp      string   `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- State Tool ---

// GetStateOutput is the output for the get_state tool
type GetStateOutput struct {
	State json.RawMessage `json:"state" jsonschema:"description=State payload keyed by entity key"`
}

// --- Entity Tools ---

// EntityInfo represents an entity in tool outputs
type EntityInfo struct {
	Key         string `json:"key" jsonschema:"description=Short key used in the state payload"`
	Name        string `json:"name" jsonschema:"description=Display name"`
	Kind        string `json:"kind" jsonschema:"description=sensor, binary_sensor, switch, light or button"`
	DeviceClass string `json:"device_class,omitempty" jsonschema:"description=Home Assistant device class"`
	Unit        string `json:"unit,omitempty" jsonschema:"description=Unit of measurement"`
}

// ListEntitiesOutput is the output for the list_entities tool
type ListEntitiesOutput struct {
	Entities []EntityInfo `json:"entities" jsonschema:"description=Exposed entities"`
	Count    int          `json:"count" jsonschema:"description=Total number of entities"`
}

// SetEntityOutput is the output for the set_entity tool
type SetEntityOutput struct {
	Key     string `json:"key" jsonschema:"description=Entity key"`
	State   string `json:"state" jsonschema:"description=Requested state"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// --- Keypad Tool ---

// PressKeyOutput is the output for the press_key tool
type PressKeyOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the key was queued"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// --- Helper conversions ---

// EntityToInfo converts an entity.Descriptor to EntityInfo
func EntityToInfo(d entity.Descriptor) EntityInfo {
	return EntityInfo{
		Key:         d.Key,
		Name:        d.Name,
		Kind:        string(d.Kind),
		DeviceClass: d.DeviceClass,
		Unit:        d.Unit,
	}
}
