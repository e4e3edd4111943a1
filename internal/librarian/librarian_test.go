package librarian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"

	"novamcp/internal/midiport"
	"novamcp/internal/nova"
	"novamcp/internal/sysex"
)

// fakeNova answers requests the way the unit does and stores what it is sent.
type fakeNova struct {
	mu       sync.Mutex
	presets  map[int][]byte
	system   []byte
	silent   bool
	readOnly bool
}

func newFakeNova(t *testing.T) *fakeNova {
	t.Helper()
	f := &fakeNova{presets: map[int][]byte{}}
	for n := nova.FirstUserPreset; n <= nova.LastUserPreset; n++ {
		p, err := nova.NewInitPreset(n)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.SetName(fmt.Sprintf("User %d", n)); err != nil {
			t.Fatal(err)
		}
		f.presets[n] = p.Bytes()
	}
	sys, err := sysex.Build(sysex.KindSystem, 0x00, make([]byte, sysex.SystemLength-sysex.HeaderSize-1))
	if err != nil {
		t.Fatal(err)
	}
	sysex.UpdateChecksum(sysex.KindSystem, sys)
	f.system = sys
	return f
}

func (f *fakeNova) handle(msg []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.silent {
		return nil
	}
	switch sysex.Identify(msg) {
	case sysex.KindPresetRequest:
		if p, ok := f.presets[int(msg[8])]; ok {
			return [][]byte{append([]byte(nil), p...)}
		}
	case sysex.KindBankRequest:
		var out [][]byte
		for n := nova.LastUserPreset; n >= nova.FirstUserPreset; n-- {
			if p, ok := f.presets[n]; ok {
				out = append(out, append([]byte(nil), p...))
			}
		}
		return out
	case sysex.KindSystemRequest:
		return [][]byte{append([]byte(nil), f.system...)}
	case sysex.KindPreset:
		if !f.readOnly {
			f.presets[int(msg[8])] = append([]byte(nil), msg...)
		}
	case sysex.KindSystem:
		if !f.readOnly {
			f.system = append([]byte(nil), msg...)
		}
	}
	return nil
}

func (f *fakeNova) preset(t *testing.T, n int) *nova.Preset {
	t.Helper()
	f.mu.Lock()
	raw := f.presets[n]
	f.mu.Unlock()
	p, err := nova.ParsePreset(raw)
	if err != nil {
		t.Fatalf("stored preset %d: %v", n, err)
	}
	return p
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setup(t *testing.T) (*Librarian, *midiport.Memory, *fakeNova) {
	t.Helper()
	m := midiport.NewMemory("Nova System")
	dev := newFakeNova(t)
	m.OnSend(dev.handle)

	opts := DefaultOptions()
	opts.RequestTimeout = 200 * time.Millisecond
	opts.BankTimeout = time.Second
	opts.SendGap = 0
	opts.VerifyDelay = 0

	l := New(m, quietLogger(), opts)
	if err := l.Connect(context.Background(), midiport.Selection{Input: "nova", Output: "nova"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = l.Disconnect() })
	return l, m, dev
}

func TestConnectPortNotFound(t *testing.T) {
	l := New(midiport.NewMemory("Nova System"), quietLogger(), DefaultOptions())
	err := l.Connect(context.Background(), midiport.Selection{Input: "launchpad", Output: "launchpad"})
	if !errors.Is(err, midiport.ErrPortNotFound) {
		t.Fatalf("got %v", err)
	}
	if Kind(err) != ftag.NotFound {
		t.Errorf("kind = %q", Kind(err))
	}
}

func TestRequestPreset(t *testing.T) {
	l, m, _ := setup(t)
	p, err := l.RequestPreset(context.Background(), 40)
	if err != nil {
		t.Fatalf("RequestPreset: %v", err)
	}
	if p.Number() != 40 || p.Name() != "User 40" {
		t.Errorf("got %v", p)
	}

	sent := m.Sent()
	if len(sent) != 1 || len(sent[0]) != sysex.PresetRequestLength || sent[0][8] != 40 {
		t.Errorf("request = % X", sent)
	}
	deadline := time.Now().Add(time.Second)
	for m.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.Subscribers() != 0 {
		t.Errorf("subscription leaked: %d", m.Subscribers())
	}
}

func TestRequestPresetInvalidNumber(t *testing.T) {
	l, _, _ := setup(t)
	_, err := l.RequestPreset(context.Background(), 91)
	if Kind(err) != ftag.InvalidArgument {
		t.Fatalf("kind = %q, err = %v", Kind(err), err)
	}
	var re *nova.RangeError
	if !errors.As(err, &re) || re.Value != 91 {
		t.Errorf("expected range error, got %v", err)
	}
}

func TestRequestPresetTimeout(t *testing.T) {
	l, _, dev := setup(t)
	dev.silent = true
	_, err := l.RequestPreset(context.Background(), 40)
	if !errors.Is(err, ErrTimeout) || Kind(err) != Timeout {
		t.Fatalf("got %v (kind %q)", err, Kind(err))
	}
	if Issue(err) == "" {
		t.Error("missing user-facing message")
	}
}

func TestRequestPresetIgnoresOtherTraffic(t *testing.T) {
	l, m, dev := setup(t)
	other := dev.preset(t, 33).Bytes()
	m.OnSend(func(msg []byte) [][]byte {
		out := [][]byte{{0xF0, 0x7E, 0x00, 0x06, 0x02, 0xF7}, other}
		return append(out, dev.handle(msg)...)
	})
	p, err := l.RequestPreset(context.Background(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if p.Number() != 50 {
		t.Errorf("got preset %d", p.Number())
	}
}

// malformed returns preset n with comp_ratio (byte 78) out of range.
func malformed(t *testing.T, dev *fakeNova, n int) []byte {
	t.Helper()
	raw := dev.preset(t, n).Bytes()
	sysex.Encode4(raw, 78, 16)
	sysex.UpdateChecksum(sysex.KindPreset, raw)
	return raw
}

func TestRequestPresetSkipsUndecodableOtherPreset(t *testing.T) {
	l, m, dev := setup(t)
	bad := malformed(t, dev, 50)
	m.OnSend(func(msg []byte) [][]byte {
		return append([][]byte{bad}, dev.handle(msg)...)
	})
	p, err := l.RequestPreset(context.Background(), 45)
	if err != nil {
		t.Fatalf("RequestPreset(45): %v", err)
	}
	if p.Number() != 45 {
		t.Errorf("got preset %d", p.Number())
	}

	_, err = l.RequestPreset(context.Background(), 50)
	var verrs nova.ValidationErrors
	if !errors.As(err, &verrs) || Kind(err) != Device {
		t.Errorf("requested preset 50: kind = %q, err = %v", Kind(err), err)
	}
}

func TestRequestPresetCancelled(t *testing.T) {
	l, _, dev := setup(t)
	dev.silent = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.RequestPreset(ctx, 40)
	if Kind(err) != ftag.Cancelled {
		t.Errorf("kind = %q, err = %v", Kind(err), err)
	}
}

func TestDownloadBank(t *testing.T) {
	l, _, _ := setup(t)
	b, err := l.DownloadBank(context.Background())
	if err != nil {
		t.Fatalf("DownloadBank: %v", err)
	}
	if !b.Complete() {
		t.Errorf("missing %v", b.Missing())
	}
	if b.Preset(90).Name() != "User 90" {
		t.Errorf("slot 90 = %v", b.Preset(90))
	}
}

func TestDownloadBankPartial(t *testing.T) {
	l, _, dev := setup(t)
	l.opts.BankTimeout = 100 * time.Millisecond
	delete(dev.presets, 45)
	delete(dev.presets, 46)

	b, err := l.DownloadBank(context.Background())
	if Kind(err) != Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if b == nil || b.Count() != 58 {
		t.Fatalf("partial bank = %v", b)
	}
	if missing := b.Missing(); len(missing) != 2 || missing[0] != 45 {
		t.Errorf("missing = %v", missing)
	}
}

func TestSavePreset(t *testing.T) {
	l, _, dev := setup(t)
	p := dev.preset(t, 40)
	if err := p.Set(nova.DriveGain, 77); err != nil {
		t.Fatal(err)
	}
	if err := l.SavePreset(context.Background(), p, 45); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}
	stored := dev.preset(t, 45)
	if stored.Number() != 45 || stored.Value(nova.DriveGain) != 77 || stored.Name() != "User 40" {
		t.Errorf("stored %v drive_gain=%d", stored, stored.Value(nova.DriveGain))
	}
	if stored.ChecksumErr() != nil {
		t.Error(stored.ChecksumErr())
	}

	for _, n := range []int{0, 30, 91} {
		if err := l.SavePreset(context.Background(), p, n); Kind(err) != ftag.InvalidArgument {
			t.Errorf("save to %d: %v", n, err)
		}
	}
}

func TestSavePresetNotConnected(t *testing.T) {
	l, _, dev := setup(t)
	p := dev.preset(t, 40)
	if err := l.Disconnect(); err != nil {
		t.Fatal(err)
	}
	err := l.SavePreset(context.Background(), p, 40)
	if !errors.Is(err, midiport.ErrNotConnected) || Kind(err) != Transport {
		t.Errorf("got %v (kind %q)", err, Kind(err))
	}
}

func TestSendBank(t *testing.T) {
	l, m, _ := setup(t)
	b, err := l.DownloadBank(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	before := len(m.Sent())
	if err := l.SendBank(context.Background(), b); err != nil {
		t.Fatalf("SendBank: %v", err)
	}
	sent := m.Sent()[before:]
	if len(sent) != nova.BankSize {
		t.Fatalf("sent %d dumps", len(sent))
	}
	if sent[0][8] != 31 || sent[59][8] != 90 {
		t.Errorf("order: first %d last %d", sent[0][8], sent[59][8])
	}
}

func TestRenamePreset(t *testing.T) {
	l, _, dev := setup(t)
	res, err := l.RenamePreset(context.Background(), 42, "Crunch Lead")
	if err != nil {
		t.Fatalf("RenamePreset: %v", err)
	}
	if !res.Verified || res.Warning != "" {
		t.Errorf("got %+v", res)
	}
	if got := dev.preset(t, 42).Name(); got != "Crunch Lead" {
		t.Errorf("stored name %q", got)
	}

	tests := []struct {
		name   string
		number int
		value  string
	}{
		{"blank", 42, "   "},
		{"too long", 42, "abcdefghijklmnopqrstuvwxyz"},
		{"factory slot", 12, "Factory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.RenamePreset(context.Background(), tt.number, tt.value); Kind(err) != ftag.InvalidArgument {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestRenamePresetUnverified(t *testing.T) {
	l, _, dev := setup(t)
	dev.readOnly = true
	res, err := l.RenamePreset(context.Background(), 42, "Ambient")
	if err != nil {
		t.Fatalf("RenamePreset: %v", err)
	}
	if res.Verified || res.Warning == "" {
		t.Errorf("expected unverified result, got %+v", res)
	}
	if res.Preset == nil || res.Preset.Name() != "Ambient" {
		t.Errorf("renamed preset = %v", res.Preset)
	}
}

func TestDeleteAndCopyPreset(t *testing.T) {
	l, _, dev := setup(t)
	if err := l.DeletePreset(context.Background(), 50); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	if got := dev.preset(t, 50).Name(); got != "Init 50" {
		t.Errorf("deleted slot name %q", got)
	}

	p, err := l.CopyPreset(context.Background(), 40, 60)
	if err != nil {
		t.Fatalf("CopyPreset: %v", err)
	}
	if p.Number() != 60 {
		t.Errorf("copy number %d", p.Number())
	}
	if got := dev.preset(t, 60).Name(); got != "User 40" {
		t.Errorf("copied slot name %q", got)
	}
}

func TestVerifyPresetRoundTrip(t *testing.T) {
	l, _, dev := setup(t)
	p := dev.preset(t, 40)
	if err := p.Set(nova.ReverbMix, 33); err != nil {
		t.Fatal(err)
	}
	res, err := l.VerifyPresetRoundTrip(context.Background(), p, 41)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Match || len(res.Differences) != 0 {
		t.Errorf("got %+v", res)
	}

	dev.readOnly = true
	if err := p.Set(nova.ReverbMix, 34); err != nil {
		t.Fatal(err)
	}
	res, err = l.VerifyPresetRoundTrip(context.Background(), p, 41)
	if err != nil {
		t.Fatal(err)
	}
	if res.Match || len(res.Differences) == 0 {
		t.Errorf("expected mismatch, got %+v", res)
	}
}

func TestSystemDump(t *testing.T) {
	l, _, dev := setup(t)
	d, err := l.UpdateSystemDump(context.Background(), func(d *nova.SystemDump) error {
		return d.SetMIDIChannel(3)
	})
	if err != nil {
		t.Fatalf("UpdateSystemDump: %v", err)
	}
	if d.MIDIChannel() != 3 {
		t.Errorf("channel = %d", d.MIDIChannel())
	}
	stored, err := nova.ParseSystemDump(dev.system)
	if err != nil {
		t.Fatal(err)
	}
	if stored.MIDIChannel() != 3 {
		t.Errorf("device channel = %d", stored.MIDIChannel())
	}

	_, err = l.UpdateSystemDump(context.Background(), func(d *nova.SystemDump) error {
		return d.SetMIDIChannel(40)
	})
	if Kind(err) != ftag.InvalidArgument {
		t.Errorf("got %v", err)
	}

	res, err := l.VerifySystemDumpRoundTrip(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Match {
		t.Errorf("got %+v", res)
	}
}
