// Package messages builds the MQTT topics and JSON payloads exchanged with
// Home Assistant.
package messages

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/panel"
)

// Version is reported as the origin software version in discovery.
var Version = "0.1.0"

const onlinePayload = "online"

// MessageSource provides the currently active system messages.
type MessageSource interface {
	ActiveMessages() []string
}

// Outbound is a message to publish.
type Outbound struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Formatter knows the topic layout and payload shapes for one controller.
// It performs no I/O.
type Formatter struct {
	identifier string
	prefix     string
	root       string

	controls   entity.Catalog
	sensors    entity.Catalog
	buttons    entity.Catalog
	smsSensors entity.Catalog

	discoveryOnce sync.Once
	discovery     []byte
	discoveryErr  error
}

// New builds a formatter for the enabled entities and user-defined
// system-message sensors.
func New(identifier, discoverPrefix string, enabled []string, sensors []entity.SensorDef) (*Formatter, error) {
	sms, err := entity.SystemMessageSensorCatalog(identifier, sensors)
	if err != nil {
		return nil, err
	}

	buttonKeys := append(append([]string{}, entity.DefaultButtons...), enabled...)

	return &Formatter{
		identifier: identifier,
		prefix:     discoverPrefix,
		root:       fmt.Sprintf("%s/device/%s", discoverPrefix, identifier),
		controls:   entity.FilterByEnableList(entity.ControlCatalog(identifier), enabled),
		sensors:    entity.FilterByEnableList(entity.SensorCatalog(identifier), enabled),
		buttons:    entity.FilterByEnableList(entity.ButtonCatalog(identifier), buttonKeys),
		smsSensors: sms,
	}, nil
}

// Root returns the per-device topic root.
func (f *Formatter) Root() string { return f.root }

func (f *Formatter) StateTopic() string     { return f.root + "/state" }
func (f *Formatter) DiscoveryTopic() string { return f.root + "/config" }

// StatusTopic is where Home Assistant announces its own availability.
func (f *Formatter) StatusTopic() string { return f.prefix + "/status" }

// CommandTopic returns the topic commands for d arrive on.
func (f *Formatter) CommandTopic(d entity.Descriptor) string {
	return f.root + "/" + d.UniqueID + "/set"
}

// SubscriptionTopics returns every topic the bridge listens on.
func (f *Formatter) SubscriptionTopics() []string {
	return []string{f.root + "/+/set", f.StatusTopic()}
}

// IsOnlineAnnouncement reports whether topic/payload is Home Assistant
// coming online.
func (f *Formatter) IsOnlineAnnouncement(topic, payload string) bool {
	return topic == f.StatusTopic() && payload == onlinePayload
}

func (f *Formatter) Controls() entity.Catalog             { return f.controls }
func (f *Formatter) Sensors() entity.Catalog              { return f.sensors }
func (f *Formatter) Buttons() entity.Catalog              { return f.buttons }
func (f *Formatter) SystemMessageSensors() entity.Catalog { return f.smsSensors }

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// StateValues returns the state document as a map.
func (f *Formatter) StateValues(snap panel.Snapshot, msgs MessageSource) map[string]any {
	active := msgs.ActiveMessages()

	state := make(map[string]any, 2+len(f.sensors)+len(f.controls)+len(f.smsSensors))
	state[entity.KeyCheckSystem] = onOff(snap.Get(panel.StateCheckSystem))
	state[entity.KeySystemMessages] = strings.Join(active, ", ")

	for k, d := range f.sensors {
		state[k] = snap.Attribute(d.Attribute)
	}
	for k, d := range f.controls {
		state[k] = onOff(snap.Get(d.State))
	}

	present := make(map[string]bool, len(active))
	for _, m := range active {
		present[m] = true
	}
	for k, d := range f.smsSensors {
		state[k] = onOff(present[d.Message])
	}
	return state
}

// StatePayload renders the JSON state document. Keys are sorted.
func (f *Formatter) StatePayload(snap panel.Snapshot, msgs MessageSource) ([]byte, error) {
	b, err := json.Marshal(f.StateValues(snap, msgs))
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return b, nil
}

// DiscoveryPayload renders the device discovery document. The result is
// built once and identical on every call.
func (f *Formatter) DiscoveryPayload() ([]byte, error) {
	f.discoveryOnce.Do(func() {
		f.discovery, f.discoveryErr = json.Marshal(f.discoveryDocument())
		if f.discoveryErr != nil {
			f.discoveryErr = fmt.Errorf("marshal discovery: %w", f.discoveryErr)
		}
	})
	return f.discovery, f.discoveryErr
}

// Discovery returns the discovery message, retained so late subscribers
// see it.
func (f *Formatter) Discovery() (Outbound, error) {
	payload, err := f.DiscoveryPayload()
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Topic: f.DiscoveryTopic(), Payload: payload, Retain: true}, nil
}

type component map[string]any

func valueTemplate(key string) string {
	return "{{ value_json." + key + " }}"
}

func (f *Formatter) discoveryDocument() map[string]any {
	id := f.identifier
	cmps := map[string]component{
		id + "_binary_sensor_check_system": {
			"p":       "binary_sensor",
			"dev_cla": "problem",
			"val_tpl": valueTemplate(entity.KeyCheckSystem),
			"obj_id":  id + "_binary_sensor_check_system",
			"uniq_id": id + "_binary_sensor_check_system",
			"name":    "Check System",
		},
		id + "_sensor_system_messages": {
			"p":       "sensor",
			"val_tpl": valueTemplate(entity.KeySystemMessages),
			"obj_id":  id + "_sensor_system_messages",
			"uniq_id": id + "_sensor_system_messages",
			"name":    "System Messages",
		},
	}

	for k, d := range f.sensors {
		c := component{
			"p":       string(entity.KindSensor),
			"val_tpl": valueTemplate(k),
			"obj_id":  d.UniqueID,
			"uniq_id": d.UniqueID,
			"name":    d.Name,
		}
		if d.DeviceClass != "" {
			c["dev_cla"] = d.DeviceClass
		}
		if d.Unit != "" {
			c["unit_of_meas"] = d.Unit
		}
		cmps[d.UniqueID] = c
	}

	for k, d := range f.controls {
		c := component{
			"p":       string(d.Kind),
			"uniq_id": d.UniqueID,
			"obj_id":  d.UniqueID,
			"name":    d.Name,
			"cmd_t":   f.CommandTopic(d),
		}
		if d.Kind == entity.KindLight {
			c["stat_val_tpl"] = valueTemplate(k)
		} else {
			c["dev_cla"] = "switch"
			c["val_tpl"] = valueTemplate(k)
		}
		cmps[d.UniqueID] = c
	}

	for _, d := range f.buttons {
		cmps[d.UniqueID] = component{
			"p":       string(entity.KindButton),
			"uniq_id": d.UniqueID,
			"obj_id":  d.UniqueID,
			"name":    d.Name,
			"cmd_t":   f.CommandTopic(d),
		}
	}

	for k, d := range f.smsSensors {
		cmps[d.UniqueID] = component{
			"p":       string(entity.KindBinarySensor),
			"dev_cla": d.DeviceClass,
			"val_tpl": valueTemplate(k),
			"obj_id":  d.UniqueID,
			"uniq_id": d.UniqueID,
			"name":    d.Name,
		}
	}

	return map[string]any{
		"dev": map[string]any{
			"ids":  id,
			"name": id,
			"mf":   "Hayward",
			"mdl":  "AquaLogic",
			"sw":   "0.0",
			"sn":   id,
			"hw":   "0.0",
		},
		"o": map[string]any{
			"name": "aquabridge",
			"sw":   Version,
			"url":  "https://github.com/urmzd/aquabridge",
		},
		"cmps":   cmps,
		"stat_t": f.StateTopic(),
		"qos":    2,
	}
}
