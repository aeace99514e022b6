package aqualogic

import (
	"testing"

	"github.com/urmzd/aquabridge/pkg/panel"
)

func TestDecodeText_DegreeSign(t *testing.T) {
	got := decodeText([]byte("Pool Temp 78\xdfF\x00\x00"))
	if got != "Pool Temp 78°F" {
		t.Errorf("decodeText = %q", got)
	}
}

func TestDecodeLEDs(t *testing.T) {
	data := []byte{0x48, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00}
	states, flashing, ok := decodeLEDs(data)
	if !ok {
		t.Fatal("expected ok")
	}
	if states != panel.StatePool|panel.StateLights {
		t.Errorf("states = %v", states)
	}
	if flashing != panel.StateLights {
		t.Errorf("flashing = %v", flashing)
	}

	if _, _, ok := decodeLEDs(data[:7]); ok {
		t.Error("expected short frame to be rejected")
	}
}

func TestDecodePumpStatus(t *testing.T) {
	speed, power, ok := decodePumpStatus([]byte{0x00, 0x00, 0x32, 0x12, 0x34})
	if !ok {
		t.Fatal("expected ok")
	}
	if speed != 50 || power != 1234 {
		t.Errorf("speed=%d power=%d, want 50 1234", speed, power)
	}
}

func TestParseDisplay(t *testing.T) {
	tests := []struct {
		text   string
		attr   panel.Attribute
		value  any
		metric *bool
	}{
		{"Pool Temp 78°F", panel.AttrPoolTemp, 78, ptr(false)},
		{"  Spa Temp 101°F ", panel.AttrSpaTemp, 101, ptr(false)},
		{"Air Temp 25°C", panel.AttrAirTemp, 25, ptr(true)},
		{"Pool Chlorinator 50%", panel.AttrPoolChlorinator, 50, nil},
		{"Spa Chlorinator 5%", panel.AttrSpaChlorinator, 5, nil},
		{"Salt Level 3200 PPM", panel.AttrSaltLevel, 3200.0, ptr(false)},
		{"Salt Level 3.2 g/L", panel.AttrSaltLevel, 3.2, ptr(true)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r, ok := parseDisplay(tt.text)
			if !ok {
				t.Fatal("expected a reading")
			}
			if r.attr != tt.attr || r.value != tt.value {
				t.Errorf("got %s=%v, want %s=%v", r.attr, r.value, tt.attr, tt.value)
			}
			if (r.metric == nil) != (tt.metric == nil) || (r.metric != nil && *r.metric != *tt.metric) {
				t.Errorf("metric = %v, want %v", r.metric, tt.metric)
			}
		})
	}
}

func TestParseDisplay_CheckSystemAndHeater(t *testing.T) {
	r, ok := parseDisplay("Check System Low Salt")
	if !ok || r.checkSystem == nil || *r.checkSystem != "Low Salt" {
		t.Errorf("check system reading = %+v", r)
	}

	r, ok = parseDisplay("Heater1 Auto Control")
	if !ok || r.heaterAuto == nil || !*r.heaterAuto {
		t.Errorf("heater auto reading = %+v", r)
	}

	r, ok = parseDisplay("Heater1 Manual Off")
	if !ok || r.heaterAuto == nil || *r.heaterAuto {
		t.Errorf("heater manual reading = %+v", r)
	}
}

func TestParseDisplay_Ignored(t *testing.T) {
	for _, text := range []string{"", "Filter", "Filter Speed 50%", "Pool Temp --°F", "Salt Level"} {
		if _, ok := parseDisplay(text); ok {
			t.Errorf("parseDisplay(%q) unexpectedly returned a reading", text)
		}
	}
}

func ptr[T any](v T) *T { return &v }
