package nova

import (
	"bytes"
	"errors"
	"testing"

	"novamcp/internal/sysex"
)

func buildSystemDump() []byte {
	raw, err := sysex.Build(sysex.KindSystem, 0x00, make([]byte, sysex.SystemLength-sysex.HeaderSize-1))
	if err != nil {
		panic(err)
	}
	sysex.UpdateChecksum(sysex.KindSystem, raw)
	return raw
}

func TestParseSystemDump(t *testing.T) {
	raw := buildSystemDump()
	d, err := ParseSystemDump(raw)
	if err != nil {
		t.Fatalf("ParseSystemDump: %v", err)
	}
	if d.ChecksumErr() != nil {
		t.Errorf("unexpected checksum error: %v", d.ChecksumErr())
	}
	if !bytes.Equal(d.Bytes(), raw) {
		t.Error("untouched dump did not round-trip")
	}

	legacy := append(append([]byte(nil), raw...), sysex.End)
	if _, err := ParseSystemDump(legacy); err != nil {
		t.Errorf("legacy length rejected: %v", err)
	}
	if _, err := ParseSystemDump(raw[:520]); err == nil {
		t.Error("preset-sized input accepted as system dump")
	}
}

func TestSystemDumpSettings(t *testing.T) {
	d, err := ParseSystemDump(buildSystemDump())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetMIDIChannel(5); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSysExID(12); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProgramChangeIn(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMIDIChannel(18); err == nil {
		t.Error("midi channel 18 accepted")
	}
	if err := d.SetSysExID(128); err == nil {
		t.Error("sysex id 128 accepted")
	}

	out := d.Bytes()
	if err := sysex.VerifyChecksum(sysex.KindSystem, out); err != nil {
		t.Errorf("checksum not updated: %v", err)
	}
	e, err := ParseSystemDump(out)
	if err != nil {
		t.Fatal(err)
	}
	if e.MIDIChannel() != 5 || e.SysExID() != 12 || !e.ProgramChangeIn() || e.ProgramChangeOut() {
		t.Errorf("got channel=%d id=%d in=%v out=%v", e.MIDIChannel(), e.SysExID(), e.ProgramChangeIn(), e.ProgramChangeOut())
	}
}

func TestSystemDumpSignedSlot(t *testing.T) {
	d, err := ParseSystemDump(buildSystemDump())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetSlot(30, -5); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.Slot(30); v != -5 {
		t.Errorf("slot 30 = %d, want -5", v)
	}
	if _, err := d.Slot(129); err == nil {
		t.Error("slot 129 accepted")
	}
	if err := d.SetSlot(1, 20000); err == nil {
		t.Error("out of range slot value accepted")
	}
}

func TestSystemDumpCCMappings(t *testing.T) {
	d, err := ParseSystemDump(buildSystemDump())
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range d.CCMappings() {
		if m.CC != nil {
			t.Errorf("%s should be off in a zero dump", m.Name)
		}
	}

	cc := 64
	if err := d.SetCCMapping(0, &cc); err != nil {
		t.Fatal(err)
	}
	m, err := d.CCMapping(0)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Tap Tempo" || m.CC == nil || *m.CC != 64 {
		t.Errorf("got %+v", m)
	}

	if err := d.SetCCMapping(0, nil); err != nil {
		t.Fatal(err)
	}
	if m, _ := d.CCMapping(0); m.CC != nil {
		t.Error("mapping not turned off")
	}

	bad := 128
	if err := d.SetCCMapping(1, &bad); err == nil {
		t.Error("cc 128 accepted")
	}
	if _, err := d.CCMapping(11); err == nil {
		t.Error("index 11 accepted")
	}
	if i, ok := CCAssignmentIndex("Expression"); !ok || i != ExpressionAssignment {
		t.Errorf("Expression index = %d, %v", i, ok)
	}
}

func TestSystemDumpProgramMaps(t *testing.T) {
	d, err := ParseSystemDump(buildSystemDump())
	if err != nil {
		t.Fatal(err)
	}
	p1, p2 := 31, 90
	// programs 1 to 3 share one slot
	if err := d.SetProgramMapIn(1, &p1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProgramMapIn(2, &p2); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProgramMapIn(3, nil); err != nil {
		t.Fatal(err)
	}
	in := d.ProgramMapIn()
	if len(in) != 127 {
		t.Fatalf("got %d entries", len(in))
	}
	if in[0].Preset == nil || *in[0].Preset != 31 {
		t.Errorf("pc 1 -> %v", in[0].Preset)
	}
	if in[1].Preset == nil || *in[1].Preset != 90 {
		t.Errorf("pc 2 -> %v", in[1].Preset)
	}
	if in[2].Preset != nil {
		t.Errorf("pc 3 should be off, got %d", *in[2].Preset)
	}

	if err := d.SetProgramMapOut(32, 127); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProgramMapOut(33, 5); err != nil {
		t.Fatal(err)
	}
	out := d.ProgramMapOut()
	if len(out) != 60 {
		t.Fatalf("got %d entries", len(out))
	}
	if out[1].PresetNumber != 32 || out[1].OutgoingProgram != 127 {
		t.Errorf("got %+v", out[1])
	}
	if out[2].OutgoingProgram != 5 || out[0].OutgoingProgram != 0 {
		t.Errorf("neighbours disturbed: %+v %+v", out[0], out[2])
	}
	if err := d.SetProgramMapOut(30, 1); err == nil {
		t.Error("factory preset accepted")
	}

	e, err := ParseSystemDump(d.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := e.ProgramMapOut()[1].OutgoingProgram; got != 127 {
		t.Errorf("after re-decode got %d", got)
	}
}

func TestSystemDumpPedalValidatesFirst(t *testing.T) {
	d, err := ParseSystemDump(buildSystemDump())
	if err != nil {
		t.Fatal(err)
	}
	err = d.SetPedal(PedalMapping{Parameter: 10, Min: 0, Mid: 101, Max: 200})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected 2 errors, got %v", err)
	}
	if d.Modified() {
		t.Error("rejected pedal mapping was partially written")
	}

	want := PedalMapping{Parameter: 10, Min: 0, Mid: 50, Max: 100}
	if err := d.SetPedal(want); err != nil {
		t.Fatal(err)
	}
	if got := d.Pedal(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
