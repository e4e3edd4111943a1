package nova

import (
	"bytes"
	"errors"
	"testing"
)

func mustPreset(t *testing.T, number int) *Preset {
	t.Helper()
	p, err := ParsePreset(buildPreset(number, "Slot", nil))
	if err != nil {
		t.Fatalf("preset %d: %v", number, err)
	}
	return p
}

func fullBank(t *testing.T) []*Preset {
	t.Helper()
	var out []*Preset
	for n := LastUserPreset; n >= FirstUserPreset; n-- {
		out = append(out, mustPreset(t, n))
	}
	return out
}

func TestBankWithPreset(t *testing.T) {
	empty := EmptyBank()
	p := mustPreset(t, 40)

	b, err := empty.WithPreset(40, p)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Preset(40); got == nil || !bytes.Equal(got.Bytes(), p.Bytes()) {
		t.Error("preset not stored")
	}
	if empty.Preset(40) != nil {
		t.Error("WithPreset modified the original bank")
	}
	if b.Count() != 1 || b.Complete() {
		t.Errorf("count = %d", b.Count())
	}
	if len(b.Missing()) != 59 {
		t.Errorf("missing = %d", len(b.Missing()))
	}

	tests := []struct {
		name   string
		number int
		p      *Preset
	}{
		{"below user range", 30, mustPreset(t, 30)},
		{"above user range", 91, p},
		{"number mismatch", 41, p},
		{"nil", 41, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.WithPreset(tt.number, tt.p)
			var ae *AggregateError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *AggregateError, got %v", err)
			}
		})
	}
}

func TestBankFromPresets(t *testing.T) {
	presets := fullBank(t)
	b, err := BankFromPresets(presets)
	if err != nil {
		t.Fatalf("BankFromPresets: %v", err)
	}
	if !b.Complete() {
		t.Error("bank should be complete")
	}
	for i, p := range b.Slots() {
		if p.Number() != i+FirstUserPreset {
			t.Errorf("slot %d holds preset %d", i, p.Number())
		}
	}
	if got := len(b.Bytes()); got != 60*520 {
		t.Errorf("bank bytes = %d", got)
	}

	if _, err := BankFromPresets(presets[:59]); err == nil {
		t.Error("59 presets accepted")
	}
	if _, err := BankFromPresets(append(presets, mustPreset(t, 31))); err == nil {
		t.Error("61 presets accepted")
	}
	dup := append([]*Preset(nil), presets...)
	dup[0] = mustPreset(t, 31)
	if _, err := BankFromPresets(dup); err == nil {
		t.Error("duplicate preset accepted")
	}
}

func TestBankPresetsAreCopies(t *testing.T) {
	p := mustPreset(t, 40)
	b, err := EmptyBank().WithPreset(40, p)
	if err != nil {
		t.Fatal(err)
	}
	want := b.Bytes()

	if err := p.Set(DriveGain, 50); err != nil {
		t.Fatal(err)
	}
	if err := b.Preset(40).Set(DriveGain, 60); err != nil {
		t.Fatal(err)
	}
	if err := b.Slots()[40-FirstUserPreset].SetName("Changed"); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(b.Bytes(), want) {
		t.Error("editing a preset changed the bank")
	}
	if b.Preset(40).Value(DriveGain) != 0 {
		t.Errorf("drive_gain = %d", b.Preset(40).Value(DriveGain))
	}
}
