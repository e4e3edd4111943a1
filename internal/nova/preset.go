// Package nova models the Nova System presets, global settings and user bank
// on top of the sysex wire codec.
package nova

import (
	"encoding/json"
	"fmt"
	"strings"

	"novamcp/internal/sysex"
)

const (
	NameLength = 24

	FirstUserPreset = 31
	LastUserPreset  = 90
	MaxPresetNumber = 90

	numberOffset = 8
	nameOffset   = 10
)

// Preset is a decoded preset dump. The wire bytes it was decoded from are
// kept and only mutated fields are re-encoded, so an untouched preset
// serializes to exactly the bytes it came from.
type Preset struct {
	raw    []byte
	number int
	name   string

	values map[Param]int
	dirty  map[Param]bool

	renamed    bool
	renumbered bool

	checksumErr error
}

// PresetNumber reads the preset number of a preset dump without decoding
// its parameters.
func PresetNumber(b []byte) (int, bool) {
	if sysex.Identify(b) != sysex.KindPreset {
		return 0, false
	}
	return int(b[numberOffset]), true
}

// ParsePreset decodes a preset dump. Framing errors abort immediately; range
// errors are collected for every parameter and returned as ValidationErrors.
// A checksum mismatch does not fail the decode, see ChecksumErr.
func ParsePreset(b []byte) (*Preset, error) {
	b = sysex.TrimLegacy(b)
	if _, err := sysex.Parse(sysex.KindPreset, b); err != nil {
		return nil, err
	}

	raw := make([]byte, len(b))
	copy(raw, b)

	p := &Preset{
		raw:    raw,
		number: int(raw[numberOffset]),
		name:   decodeName(raw[nameOffset : nameOffset+NameLength]),
		values: make(map[Param]int, len(Params)),
		dirty:  map[Param]bool{},
	}

	var errs ValidationErrors
	if p.number > MaxPresetNumber {
		errs = append(errs, &RangeError{Param: "preset_number", Offset: numberOffset, Value: p.number, Min: 0, Max: MaxPresetNumber})
	}
	for _, spec := range Params {
		v, active, err := p.decode(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if active {
			p.values[spec.ID] = v
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	p.checksumErr = sysex.VerifyChecksum(sysex.KindPreset, raw)
	return p, nil
}

func (p *Preset) selector(spec ParamSpec) int {
	if !spec.Conditional() {
		return 0
	}
	return p.values[spec.Selector]
}

func (p *Preset) decode(spec ParamSpec) (int, bool, error) {
	min, max, enc, ok := spec.Resolve(p.selector(spec))
	if !ok {
		return 0, false, nil
	}
	raw := sysex.Decode4(p.raw, spec.Offset)
	if spec.Switch {
		if raw == 1 {
			return 1, true, nil
		}
		return 0, true, nil
	}
	if spec.UnsetAbove && raw > max {
		return 0, true, nil
	}
	v := enc.ToValue(raw, min)
	if v < min || v > max {
		return v, true, &RangeError{Param: spec.ID, Offset: spec.Offset, Value: v, Min: min, Max: max}
	}
	return v, true, nil
}

// decodeName keeps the stored characters as they are, so a captured dump
// whose name holds non-printable bytes still decodes and round-trips. Such
// a name is rejected by SetName and must be replaced, not re-set.
func decodeName(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

func encodeName(dst []byte, name string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, name)
}

// ValidateName checks the 24-character printable ASCII constraint.
func ValidateName(name string) error {
	if len(name) > NameLength {
		return fmt.Errorf("preset name must be at most %d characters, got %d", NameLength, len(name))
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7E {
			return fmt.Errorf("preset name contains non-printable character 0x%02X at position %d", name[i], i)
		}
	}
	return nil
}

// Number is the preset number: 0 current, 1–30 factory, 31–90 user.
func (p *Preset) Number() int { return p.number }

// Name is the display name with trailing padding removed.
func (p *Preset) Name() string { return p.name }

// ChecksumErr returns the *sysex.ChecksumError found on decode, if any.
func (p *Preset) ChecksumErr() error { return p.checksumErr }

// Value returns the current value of id. Inactive or unknown parameters read 0.
func (p *Preset) Value(id Param) int {
	return p.values[id]
}

// Active reports whether id is in use for the preset's current effect types.
func (p *Preset) Active(id Param) bool {
	_, ok := p.values[id]
	return ok
}

// Enabled reports the state of a switch parameter.
func (p *Preset) Enabled(id Param) bool {
	return p.values[id] == 1
}

// Set validates and stores a parameter value. A rejected value leaves the
// preset unchanged.
func (p *Preset) Set(id Param, v int) error {
	spec, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("unknown parameter %q", id)
	}
	min, max, _, active := spec.Resolve(p.selector(spec))
	if !active {
		return fmt.Errorf("parameter %s is not used when %s is %d", id, spec.Selector, p.selector(spec))
	}
	if v < min || v > max {
		return &RangeError{Param: id, Offset: spec.Offset, Value: v, Min: min, Max: max}
	}

	deps := Dependents(id)
	if cur, ok := p.values[id]; ok && cur == v && len(deps) > 0 {
		return nil
	}

	p.values[id] = v
	p.dirty[id] = true
	if len(deps) > 0 {
		p.reconcile(deps)
	}
	return nil
}

// SetEnabled turns a switch parameter on or off.
func (p *Preset) SetEnabled(id Param, on bool) error {
	spec, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("unknown parameter %q", id)
	}
	if !spec.Switch {
		return fmt.Errorf("parameter %s is not a switch", id)
	}
	v := 0
	if on {
		v = 1
	}
	return p.Set(id, v)
}

// reconcile re-evaluates parameters whose range depends on a selector that
// just changed. Parameters that become unused are dropped (their bytes stay
// as they are). Parameters that stay in use keep their value; parameters
// that become used are read from their stored bytes. Either way the value
// is clamped into the new range and re-encoded.
func (p *Preset) reconcile(deps []Param) {
	for _, id := range deps {
		spec, _ := Lookup(id)
		min, max, enc, active := spec.Resolve(p.selector(spec))
		if !active {
			delete(p.values, id)
			delete(p.dirty, id)
			continue
		}
		v, wasActive := p.values[id]
		if !wasActive {
			v = enc.ToValue(sysex.Decode4(p.raw, spec.Offset), min)
		}
		if v < min {
			v = min
		}
		if v > max {
			v = max
		}
		p.values[id] = v
		p.dirty[id] = true
	}
}

// Apply sets several parameters at once. Selectors are applied first so that
// dependent ranges are checked against the new effect types. Every rejected
// field is reported and, if any is rejected, nothing is changed.
func (p *Preset) Apply(values map[Param]int) error {
	next := p.Clone()
	var errs ValidationErrors

	var selectors, rest []Param
	for id := range values {
		if len(Dependents(id)) > 0 {
			selectors = append(selectors, id)
		} else {
			rest = append(rest, id)
		}
	}
	sortParams(selectors)
	sortParams(rest)

	for _, id := range append(selectors, rest...) {
		if err := next.Set(id, values[id]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	*p = *next
	return nil
}

// SetName replaces the display name.
func (p *Preset) SetName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	p.name = strings.TrimRight(name, " ")
	p.renamed = true
	return nil
}

// WithNumber returns a copy of the preset addressed to another preset number.
func (p *Preset) WithNumber(number int) (*Preset, error) {
	if number < 0 || number > MaxPresetNumber {
		return nil, &RangeError{Param: "preset_number", Value: number, Min: 0, Max: MaxPresetNumber}
	}
	c := p.Clone()
	if c.number != number {
		c.number = number
		c.renumbered = true
	}
	return c, nil
}

// Clone returns a deep copy.
func (p *Preset) Clone() *Preset {
	c := *p
	c.raw = append([]byte(nil), p.raw...)
	c.values = make(map[Param]int, len(p.values))
	for k, v := range p.values {
		c.values[k] = v
	}
	c.dirty = make(map[Param]bool, len(p.dirty))
	for k, v := range p.dirty {
		c.dirty[k] = v
	}
	return &c
}

// Modified reports whether any field changed since decoding.
func (p *Preset) Modified() bool {
	return len(p.dirty) > 0 || p.renamed || p.renumbered
}

// Bytes serializes the preset. Untouched fields keep their original bytes;
// the checksum is recomputed only when something changed.
func (p *Preset) Bytes() []byte {
	out := append([]byte(nil), p.raw...)
	if !p.Modified() {
		return out
	}
	for id := range p.dirty {
		spec, _ := Lookup(id)
		min, _, enc, _ := spec.Resolve(p.selector(spec))
		sysex.EncodeValue(out, spec.Offset, enc, min, p.values[id])
	}
	if p.renamed {
		encodeName(out[nameOffset:nameOffset+NameLength], p.name)
	}
	if p.renumbered {
		out[numberOffset] = byte(p.number)
	}
	sysex.UpdateChecksum(sysex.KindPreset, out)
	return out
}

// ParamValue is a parameter with its current value and effective range.
type ParamValue struct {
	ID       Param  `json:"id"`
	Group    string `json:"group"`
	Value    int    `json:"value"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Encoding string `json:"encoding"`
}

// Params lists the active parameters in table order.
func (p *Preset) Params() []ParamValue {
	out := make([]ParamValue, 0, len(p.values))
	for _, spec := range Params {
		v, ok := p.values[spec.ID]
		if !ok {
			continue
		}
		min, max, enc, _ := spec.Resolve(p.selector(spec))
		out = append(out, ParamValue{ID: spec.ID, Group: spec.Group, Value: v, Min: min, Max: max, Encoding: enc.String()})
	}
	return out
}

type presetJSON struct {
	Number     int           `json:"number"`
	Name       string        `json:"name"`
	ChecksumOK bool          `json:"checksum_ok"`
	Params     map[Param]int `json:"params"`
}

func (p *Preset) MarshalJSON() ([]byte, error) {
	return json.Marshal(presetJSON{
		Number:     p.number,
		Name:       p.name,
		ChecksumOK: p.checksumErr == nil,
		Params:     p.values,
	})
}

func (p *Preset) String() string {
	return fmt.Sprintf("#%d %q", p.number, p.name)
}

// NewInitPreset builds the neutral preset used to clear a slot.
func NewInitPreset(number int) (*Preset, error) {
	if number < 0 || number > MaxPresetNumber {
		return nil, &RangeError{Param: "preset_number", Value: number, Min: 0, Max: MaxPresetNumber}
	}
	payload := make([]byte, sysex.PresetLength-sysex.HeaderSize-1)
	raw, err := sysex.Build(sysex.KindPreset, 0x00, payload)
	if err != nil {
		return nil, err
	}
	raw[numberOffset] = byte(number)
	encodeName(raw[nameOffset:nameOffset+NameLength], fmt.Sprintf("Init %02d", number))

	defaults := map[Param]int{
		TapTempo:    500,
		CompRelease: 15,
		ReverbDecay: 50,
		EqWidth1:    8,
		EqWidth2:    8,
		EqWidth3:    8,
	}
	// all effect types are 0 in a zero payload
	for _, spec := range Params {
		min, max, enc, ok := spec.Resolve(0)
		if !ok || spec.Switch {
			continue
		}
		v, set := defaults[spec.ID]
		if !set {
			v = enc.ToValue(0, min)
			if v >= min && v <= max {
				continue
			}
			v = min
		}
		sysex.EncodeValue(raw, spec.Offset, enc, min, v)
	}
	sysex.UpdateChecksum(sysex.KindPreset, raw)
	return ParsePreset(raw)
}
