package nova

import (
	"encoding/json"
	"fmt"
	"strings"

	"novamcp/internal/sysex"
)

const (
	systemDataStart = 8
	systemSlotCount = 129

	slotPedalMin       = 3
	slotPedalMid       = 4
	slotPedalMax       = 5
	slotPedalParameter = 6
	slotMIDIChannel    = 19
	slotProgramIn      = 20
	slotProgramOut     = 21
	slotMIDIClock      = 22
	slotSysExID        = 23

	programMapInStart  = 64
	programMapInSlots  = 43
	programMapOutStart = 107
	programMapOutSlots = 20

	minSlotValue = -16384
	maxSlotValue = 16383
)

// CCMapping assigns a MIDI CC number to a function. CC is nil when off.
type CCMapping struct {
	Name string `json:"name"`
	CC   *int   `json:"cc"`
}

// ProgramMapInEntry maps an incoming program change to a preset, nil when off.
type ProgramMapInEntry struct {
	IncomingProgram int  `json:"incoming_program"`
	Preset          *int `json:"preset"`
}

// ProgramMapOutEntry maps a user preset to the program change sent on recall.
type ProgramMapOutEntry struct {
	PresetNumber    int `json:"preset_number"`
	OutgoingProgram int `json:"outgoing_program"`
}

type ccAssignment struct {
	name string
	slot int
}

var ccAssignments = []ccAssignment{
	{"Tap Tempo", 8},
	{"Drive", 10},
	{"Compressor", 9},
	{"Noise Gate", 14},
	{"EQ", 16},
	{"Boost", 17},
	{"Modulation", 11},
	{"Pitch", 15},
	{"Delay", 12},
	{"Reverb", 13},
	{"Expression", 18},
}

// ExpressionAssignment is the index of the expression pedal CC assignment.
const ExpressionAssignment = 10

// SystemDump holds the unit's global settings. Like Preset it keeps the raw
// dump and edits it in place.
type SystemDump struct {
	raw         []byte
	modified    bool
	checksumErr error
}

// ParseSystemDump validates the envelope of a system dump.
func ParseSystemDump(b []byte) (*SystemDump, error) {
	b = sysex.TrimLegacy(b)
	if _, err := sysex.Parse(sysex.KindSystem, b); err != nil {
		return nil, err
	}
	raw := append([]byte(nil), b...)
	return &SystemDump{
		raw:         raw,
		checksumErr: sysex.VerifyChecksum(sysex.KindSystem, raw),
	}, nil
}

// ChecksumErr returns the *sysex.ChecksumError found on decode, if any.
func (d *SystemDump) ChecksumErr() error { return d.checksumErr }

// Modified reports whether any setting changed since decoding.
func (d *SystemDump) Modified() bool { return d.modified }

// Bytes returns the dump. The checksum is recomputed only after an edit.
func (d *SystemDump) Bytes() []byte {
	out := append([]byte(nil), d.raw...)
	if d.modified {
		sysex.UpdateChecksum(sysex.KindSystem, out)
	}
	return out
}

// Clone returns a deep copy.
func (d *SystemDump) Clone() *SystemDump {
	c := *d
	c.raw = append([]byte(nil), d.raw...)
	return &c
}

func slotOffset(slot int) int {
	return systemDataStart + slot*sysex.ValueWidth
}

// Slot reads a signed slot value.
func (d *SystemDump) Slot(slot int) (int, error) {
	if slot < 0 || slot >= systemSlotCount {
		return 0, fmt.Errorf("slot index out of range: %d (valid range: 0-%d)", slot, systemSlotCount-1)
	}
	return sysex.DecodeValue(d.raw, slotOffset(slot), sysex.LargeOffset, 0), nil
}

func (d *SystemDump) slot(slot int) int {
	v, _ := d.Slot(slot)
	return v
}

// SetSlot writes a signed slot value.
func (d *SystemDump) SetSlot(slot, value int) error {
	if slot < 0 || slot >= systemSlotCount {
		return fmt.Errorf("slot index out of range: %d (valid range: 0-%d)", slot, systemSlotCount-1)
	}
	if value < minSlotValue || value > maxSlotValue {
		return &RangeError{Param: Param(fmt.Sprintf("slot_%d", slot)), Offset: slotOffset(slot), Value: value, Min: minSlotValue, Max: maxSlotValue}
	}
	sysex.EncodeValue(d.raw, slotOffset(slot), sysex.LargeOffset, 0, value)
	d.modified = true
	return nil
}

func (d *SystemDump) setRanged(name Param, slot, value, min, max int) error {
	if value < min || value > max {
		return &RangeError{Param: name, Offset: slotOffset(slot), Value: value, Min: min, Max: max}
	}
	return d.SetSlot(slot, value)
}

func (d *SystemDump) flag(slot int) bool { return d.slot(slot) == 1 }

func (d *SystemDump) setFlag(slot int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return d.SetSlot(slot, v)
}

// MIDIChannel is 0–17; the values above the 16 channels select omni and off.
func (d *SystemDump) MIDIChannel() int { return d.slot(slotMIDIChannel) }

func (d *SystemDump) SetMIDIChannel(ch int) error {
	return d.setRanged("midi_channel", slotMIDIChannel, ch, 0, 17)
}

// SysExID is the device id the unit answers to.
func (d *SystemDump) SysExID() int { return d.slot(slotSysExID) }

func (d *SystemDump) SetSysExID(id int) error {
	return d.setRanged("sysex_id", slotSysExID, id, 0, 127)
}

func (d *SystemDump) ProgramChangeIn() bool  { return d.flag(slotProgramIn) }
func (d *SystemDump) ProgramChangeOut() bool { return d.flag(slotProgramOut) }
func (d *SystemDump) MIDIClock() bool        { return d.flag(slotMIDIClock) }

func (d *SystemDump) SetProgramChangeIn(on bool) error  { return d.setFlag(slotProgramIn, on) }
func (d *SystemDump) SetProgramChangeOut(on bool) error { return d.setFlag(slotProgramOut, on) }
func (d *SystemDump) SetMIDIClock(on bool) error        { return d.setFlag(slotMIDIClock, on) }

// PedalMapping is the expression pedal response curve.
type PedalMapping struct {
	Parameter int `json:"parameter"`
	Min       int `json:"min"`
	Mid       int `json:"mid"`
	Max       int `json:"max"`
}

func (d *SystemDump) Pedal() PedalMapping {
	return PedalMapping{
		Parameter: d.slot(slotPedalParameter),
		Min:       d.slot(slotPedalMin),
		Mid:       d.slot(slotPedalMid),
		Max:       d.slot(slotPedalMax),
	}
}

// SetPedal validates all four values before writing any of them.
func (d *SystemDump) SetPedal(m PedalMapping) error {
	checks := []struct {
		name     Param
		slot     int
		v        int
		min, max int
	}{
		{"pedal_parameter", slotPedalParameter, m.Parameter, 0, 127},
		{"pedal_min", slotPedalMin, m.Min, 0, 100},
		{"pedal_mid", slotPedalMid, m.Mid, 0, 100},
		{"pedal_max", slotPedalMax, m.Max, 0, 100},
	}
	var errs ValidationErrors
	for _, c := range checks {
		if c.v < c.min || c.v > c.max {
			errs = append(errs, &RangeError{Param: c.name, Offset: slotOffset(c.slot), Value: c.v, Min: c.min, Max: c.max})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	for _, c := range checks {
		if err := d.SetSlot(c.slot, c.v); err != nil {
			return err
		}
	}
	return nil
}

func decodeCC(v int) *int {
	if v <= 0 || v > 128 {
		return nil
	}
	cc := v - 1
	return &cc
}

// CCMapping returns assignment i (0–10).
func (d *SystemDump) CCMapping(i int) (CCMapping, error) {
	if i < 0 || i >= len(ccAssignments) {
		return CCMapping{}, fmt.Errorf("CC assignment index out of range: %d (valid range: 0-%d)", i, len(ccAssignments)-1)
	}
	a := ccAssignments[i]
	return CCMapping{Name: a.name, CC: decodeCC(d.slot(a.slot))}, nil
}

// CCMappings returns all assignments in display order.
func (d *SystemDump) CCMappings() []CCMapping {
	out := make([]CCMapping, len(ccAssignments))
	for i := range ccAssignments {
		out[i], _ = d.CCMapping(i)
	}
	return out
}

// SetCCMapping assigns cc (0–127) to assignment i, or turns it off when nil.
func (d *SystemDump) SetCCMapping(i int, cc *int) error {
	if i < 0 || i >= len(ccAssignments) {
		return fmt.Errorf("CC assignment index out of range: %d (valid range: 0-%d)", i, len(ccAssignments)-1)
	}
	v := 0
	if cc != nil {
		if *cc < 0 || *cc > 127 {
			return &RangeError{Param: "cc", Value: *cc, Min: 0, Max: 127}
		}
		v = *cc + 1
	}
	return d.SetSlot(ccAssignments[i].slot, v)
}

// CCAssignmentIndex finds an assignment by its display name, ignoring case.
func CCAssignmentIndex(name string) (int, bool) {
	for i, a := range ccAssignments {
		if strings.EqualFold(a.name, name) {
			return i, true
		}
	}
	return 0, false
}

// CCAssignmentNames lists the assignment names in index order.
func CCAssignmentNames() []string {
	out := make([]string, len(ccAssignments))
	for i, a := range ccAssignments {
		out[i] = a.name
	}
	return out
}

// Program maps pack three 8-bit entries into one slot's four 7-bit bytes.
func (d *SystemDump) mapValues(slot int) (v1, v2, v3 int) {
	b := d.raw[slotOffset(slot) : slotOffset(slot)+4]
	b0, b1, b2, b3 := int(b[0]&0x7F), int(b[1]&0x7F), int(b[2]&0x7F), int(b[3]&0x7F)
	v1 = b2>>2 | (b3&0x07)<<5
	v2 = b1>>1 | (b2&0x03)<<6
	v3 = b0 | (b1&0x01)<<7
	return v1, v2, v3
}

func (d *SystemDump) setMapValues(slot, v1, v2, v3 int) {
	off := slotOffset(slot)
	d.raw[off] = byte(v3 & 0x7F)
	d.raw[off+1] = byte((v2&0x3F)<<1 | (v3>>7)&0x01)
	d.raw[off+2] = byte((v1&0x1F)<<2 | (v2>>6)&0x03)
	d.raw[off+3] = byte((v1 >> 5) & 0x07)
	d.modified = true
}

func mapEntry(pos, v1, v2, v3 int) int {
	switch pos {
	case 0:
		return v1
	case 1:
		return v2
	}
	return v3
}

// ProgramMapIn returns the incoming program change map for PC 1–127.
func (d *SystemDump) ProgramMapIn() []ProgramMapInEntry {
	out := make([]ProgramMapInEntry, 0, 127)
	for pc := 1; pc <= 127; pc++ {
		out = append(out, ProgramMapInEntry{IncomingProgram: pc, Preset: d.programIn(pc)})
	}
	return out
}

func (d *SystemDump) programIn(pc int) *int {
	slot := programMapInStart + (pc-1)/3
	v1, v2, v3 := d.mapValues(slot)
	v := mapEntry((pc-1)%3, v1, v2, v3)
	if v <= 0 || v > MaxPresetNumber {
		return nil
	}
	return &v
}

// SetProgramMapIn maps incoming program pc (1–127) to a preset (1–90) or off.
func (d *SystemDump) SetProgramMapIn(pc int, preset *int) error {
	if pc < 1 || pc > 127 {
		return &RangeError{Param: "incoming_program", Value: pc, Min: 1, Max: 127}
	}
	v := 0
	if preset != nil {
		if *preset < 1 || *preset > MaxPresetNumber {
			return &RangeError{Param: "preset", Value: *preset, Min: 1, Max: MaxPresetNumber}
		}
		v = *preset
	}
	slot := programMapInStart + (pc-1)/3
	d.setMapEntry(slot, (pc-1)%3, v)
	return nil
}

// ProgramMapOut returns the outgoing program for each user preset.
func (d *SystemDump) ProgramMapOut() []ProgramMapOutEntry {
	out := make([]ProgramMapOutEntry, 0, LastUserPreset-FirstUserPreset+1)
	for n := FirstUserPreset; n <= LastUserPreset; n++ {
		slot := programMapOutStart + (n-FirstUserPreset)/3
		v1, v2, v3 := d.mapValues(slot)
		out = append(out, ProgramMapOutEntry{PresetNumber: n, OutgoingProgram: mapEntry((n-FirstUserPreset)%3, v1, v2, v3)})
	}
	return out
}

// SetProgramMapOut sets the program change (0–127) sent when preset n is recalled.
func (d *SystemDump) SetProgramMapOut(n, program int) error {
	if n < FirstUserPreset || n > LastUserPreset {
		return &RangeError{Param: "preset_number", Value: n, Min: FirstUserPreset, Max: LastUserPreset}
	}
	if program < 0 || program > 127 {
		return &RangeError{Param: "outgoing_program", Value: program, Min: 0, Max: 127}
	}
	slot := programMapOutStart + (n-FirstUserPreset)/3
	d.setMapEntry(slot, (n-FirstUserPreset)%3, program)
	return nil
}

func (d *SystemDump) setMapEntry(slot, pos, v int) {
	v1, v2, v3 := d.mapValues(slot)
	switch pos {
	case 0:
		v1 = v
	case 1:
		v2 = v
	default:
		v3 = v
	}
	d.setMapValues(slot, v1, v2, v3)
}

type systemJSON struct {
	MIDIChannel      int                  `json:"midi_channel"`
	SysExID          int                  `json:"sysex_id"`
	ProgramChangeIn  bool                 `json:"program_change_in"`
	ProgramChangeOut bool                 `json:"program_change_out"`
	MIDIClock        bool                 `json:"midi_clock"`
	Pedal            PedalMapping         `json:"pedal"`
	CCMappings       []CCMapping          `json:"cc_mappings"`
	ProgramMapIn     []ProgramMapInEntry  `json:"program_map_in"`
	ProgramMapOut    []ProgramMapOutEntry `json:"program_map_out"`
	ChecksumOK       bool                 `json:"checksum_ok"`
}

func (d *SystemDump) MarshalJSON() ([]byte, error) {
	return json.Marshal(systemJSON{
		MIDIChannel:      d.MIDIChannel(),
		SysExID:          d.SysExID(),
		ProgramChangeIn:  d.ProgramChangeIn(),
		ProgramChangeOut: d.ProgramChangeOut(),
		MIDIClock:        d.MIDIClock(),
		Pedal:            d.Pedal(),
		CCMappings:       d.CCMappings(),
		ProgramMapIn:     d.ProgramMapIn(),
		ProgramMapOut:    d.ProgramMapOut(),
		ChecksumOK:       d.checksumErr == nil,
	})
}
