package nova

import "strconv"

// BankSize is the number of user preset slots.
const BankSize = LastUserPreset - FirstUserPreset + 1

// Bank is the user bank: 60 optional presets where slot i holds preset
// number i+31. A Bank is never modified after construction; WithPreset
// returns a new bank that shares the untouched presets. Presets go in and
// come out as copies.
type Bank struct {
	slots [BankSize]*Preset
}

// EmptyBank returns a bank with every slot empty.
func EmptyBank() *Bank {
	return &Bank{}
}

// WithPreset returns a copy of the bank with p stored under number.
func (b *Bank) WithPreset(number int, p *Preset) (*Bank, error) {
	if number < FirstUserPreset || number > LastUserPreset {
		return nil, &AggregateError{Reason: "preset number must be in range 31–90", Number: number}
	}
	if p == nil {
		return nil, &AggregateError{Reason: "nil preset", Number: number}
	}
	if p.Number() != number {
		return nil, &AggregateError{Reason: "preset reports a different number than its slot", Number: p.Number()}
	}
	next := &Bank{slots: b.slots}
	next.slots[number-FirstUserPreset] = p.Clone()
	return next, nil
}

// BankFromPresets builds a complete bank. Exactly 60 presets are required;
// each lands in the slot matching its own number regardless of order.
func BankFromPresets(presets []*Preset) (*Bank, error) {
	if len(presets) != BankSize {
		return nil, &AggregateError{Reason: "bank requires exactly 60 presets, got " + strconv.Itoa(len(presets))}
	}
	bank := EmptyBank()
	for _, p := range presets {
		if p == nil {
			return nil, &AggregateError{Reason: "nil preset"}
		}
		if bank.Preset(p.Number()) != nil {
			return nil, &AggregateError{Reason: "duplicate preset", Number: p.Number()}
		}
		next, err := bank.WithPreset(p.Number(), p)
		if err != nil {
			return nil, err
		}
		bank = next
	}
	return bank, nil
}

// Preset returns a copy of the preset stored under number, or nil. Editing
// the copy does not change the bank.
func (b *Bank) Preset(number int) *Preset {
	if number < FirstUserPreset || number > LastUserPreset {
		return nil
	}
	if p := b.slots[number-FirstUserPreset]; p != nil {
		return p.Clone()
	}
	return nil
}

// Slots returns copies of the 60 slots in order; empty slots are nil.
func (b *Bank) Slots() []*Preset {
	out := make([]*Preset, BankSize)
	for i, p := range b.slots {
		if p != nil {
			out[i] = p.Clone()
		}
	}
	return out
}

// Count is the number of filled slots.
func (b *Bank) Count() int {
	n := 0
	for _, p := range b.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// Complete reports whether every slot is filled.
func (b *Bank) Complete() bool {
	return b.Count() == BankSize
}

// Missing lists the preset numbers of empty slots.
func (b *Bank) Missing() []int {
	var out []int
	for i, p := range b.slots {
		if p == nil {
			out = append(out, i+FirstUserPreset)
		}
	}
	return out
}

// Bytes concatenates the dumps of all filled slots in slot order.
func (b *Bank) Bytes() []byte {
	var out []byte
	for _, p := range b.slots {
		if p != nil {
			out = append(out, p.Bytes()...)
		}
	}
	return out
}
