package sysex

import (
	"fmt"
	"strings"
)

const ccStatus byte = 0xB0

// CC is a MIDI Control Change message.
type CC struct {
	Channel    uint8 `json:"channel"`
	Controller uint8 `json:"controller"`
	Value      uint8 `json:"value"`
}

// NewCC validates the channel (0–15), controller and value (0–127).
func NewCC(channel, controller, value int) (CC, error) {
	if channel < 0 || channel > 15 {
		return CC{}, fmt.Errorf("MIDI channel must be in range 0–15, got %d", channel)
	}
	if controller < 0 || controller > 127 {
		return CC{}, fmt.Errorf("controller must be in range 0–127, got %d", controller)
	}
	if value < 0 || value > 127 {
		return CC{}, fmt.Errorf("CC value must be in range 0–127, got %d", value)
	}
	return CC{Channel: uint8(channel), Controller: uint8(controller), Value: uint8(value)}, nil
}

// Bytes renders the 3-byte wire form.
func (c CC) Bytes() []byte {
	return []byte{ccStatus | c.Channel&0x0F, c.Controller & 0x7F, c.Value & 0x7F}
}

// ParseCC decodes a 3-byte Control Change message.
func ParseCC(b []byte) (CC, error) {
	if len(b) != 3 {
		return CC{}, fmt.Errorf("control change must be 3 bytes, got %d", len(b))
	}
	if b[0]&0xF0 != ccStatus {
		return CC{}, fmt.Errorf("status 0x%02X is not a control change", b[0])
	}
	if b[1] > 127 || b[2] > 127 {
		return CC{}, fmt.Errorf("control change data bytes must be 7-bit, got 0x%02X 0x%02X", b[1], b[2])
	}
	return CC{Channel: b[0] & 0x0F, Controller: b[1], Value: b[2]}, nil
}

func (c CC) String() string {
	name := ControllerName(c.Controller)
	return fmt.Sprintf("ch %d cc %d (%s) = %d", c.Channel+1, c.Controller, name, c.Value)
}

var controllerNames = map[uint8]string{
	1:  "Mod Wheel",
	7:  "Volume",
	10: "Pan",
	11: "Expression",
	16: "Compressor Threshold",
	17: "Drive Gain",
	18: "Modulation Rate",
	19: "Modulation Depth",
	20: "Delay Time",
	21: "Delay Feedback",
	22: "Reverb Time",
	64: "Tap Tempo",
	65: "Drive On/Off",
	66: "Compressor On/Off",
	67: "Noise Gate On/Off",
	68: "EQ On/Off",
	69: "Boost On/Off",
	70: "Modulation On/Off",
	71: "Pitch On/Off",
	72: "Delay On/Off",
	73: "Reverb On/Off",
	91: "Effect Depth",
	93: "Chorus Depth",
	94: "Reverb Depth",
}

// ControllerName returns a readable label for well-known controllers.
func ControllerName(controller uint8) string {
	if name, ok := controllerNames[controller]; ok {
		return name
	}
	return fmt.Sprintf("CC %d", controller)
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

// LookupController finds a well-known controller by label, ignoring case and
// punctuation. Switch controllers also match without their "On/Off" suffix.
func LookupController(name string) (uint8, bool) {
	want := normalizeName(name)
	if want == "" {
		return 0, false
	}
	for cc, label := range controllerNames {
		if normalizeName(label) == want || normalizeName(strings.TrimSuffix(label, " On/Off")) == want {
			return cc, true
		}
	}
	return 0, false
}
