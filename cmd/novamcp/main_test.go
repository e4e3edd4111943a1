package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"

	"novamcp/internal/config"
	"novamcp/internal/librarian"
	"novamcp/internal/nova"
)

func TestParseCCToken(t *testing.T) {
	tests := []struct {
		tok     string
		want    ccStep
		wantErr bool
	}{
		{tok: "r", want: ccStep{Rest: true}},
		{tok: "REST", want: ccStep{Rest: true}},
		{tok: "64:127", want: ccStep{Controller: 64, Value: 127}},
		{tok: "11=0", want: ccStep{Controller: 11, Value: 0}},
		{tok: "drive:on", want: ccStep{Controller: 65, Value: 127}},
		{tok: "Delay:OFF", want: ccStep{Controller: 72, Value: 0}},
		{tok: "tap-tempo:100", want: ccStep{Controller: 64, Value: 100}},
		{tok: "expression:64", want: ccStep{Controller: 11, Value: 64}},
		{tok: "", wantErr: true},
		{tok: "64", wantErr: true},
		{tok: ":1", wantErr: true},
		{tok: "128:1", wantErr: true},
		{tok: "64:128", wantErr: true},
		{tok: "64:loud", wantErr: true},
		{tok: "flanger:on", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseCCToken(tt.tok)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCCToken(%q) = %+v, want error", tt.tok, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCCToken(%q): %v", tt.tok, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCCToken(%q) = %+v, want %+v", tt.tok, got, tt.want)
		}
	}
}

func TestParseCCText(t *testing.T) {
	steps, err := parseCCText("drive:on, r | 64:127;reverb:off")
	if err != nil {
		t.Fatalf("parseCCText: %v", err)
	}
	want := []ccStep{
		{Controller: 65, Value: 127},
		{Rest: true},
		{Controller: 64, Value: 127},
		{Controller: 73, Value: 0},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, steps[i], want[i])
		}
	}

	if _, err := parseCCText(" ,; "); err == nil {
		t.Error("empty text accepted")
	}
	_, err = parseCCText("drive:on 64")
	if err == nil {
		t.Fatal("bad token accepted")
	}
	if librarian.Kind(err) != ftag.InvalidArgument {
		t.Errorf("kind = %s", librarian.Kind(err))
	}
	if issue := librarian.Issue(err); !strings.Contains(issue, `"64"`) {
		t.Errorf("issue = %q", issue)
	}
}

func TestParseEdit(t *testing.T) {
	edit, err := parseEdit([]byte(`{"name": "Crunch", "params": {"tap_tempo": 500}}`))
	if err != nil {
		t.Fatalf("parseEdit: %v", err)
	}
	if edit.Name == nil || *edit.Name != "Crunch" {
		t.Errorf("name = %v", edit.Name)
	}
	if edit.Params[nova.TapTempo] != 500 {
		t.Errorf("params = %v", edit.Params)
	}

	for _, bad := range []string{`{}`, `{"nmae": "x"}`, `not json`, `{"params": {"tap_tempo": "fast"}}`} {
		_, err := parseEdit([]byte(bad))
		if err == nil {
			t.Errorf("parseEdit(%s) accepted", bad)
			continue
		}
		if librarian.Kind(err) != ftag.InvalidArgument {
			t.Errorf("parseEdit(%s) kind = %s", bad, librarian.Kind(err))
		}
	}
}

func TestPresetEditApply(t *testing.T) {
	p, err := nova.NewInitPreset(40)
	if err != nil {
		t.Fatal(err)
	}
	name := "Crunch"
	next, err := presetEdit{Name: &name, Params: map[nova.Param]int{nova.TapTempo: 500}}.apply(p)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Name() != "Crunch" || next.Value(nova.TapTempo) != 500 {
		t.Errorf("got %v tap_tempo=%d", next, next.Value(nova.TapTempo))
	}
	if p.Name() == "Crunch" {
		t.Error("original preset changed")
	}

	_, err = presetEdit{Params: map[nova.Param]int{nova.TapTempo: 50}}.apply(p)
	var rangeErr *nova.RangeError
	if !errors.As(err, &rangeErr) {
		t.Errorf("tap_tempo=50: %v", err)
	}
}

func TestListParams(t *testing.T) {
	all := listParams("")
	if len(all) != len(nova.Params) {
		t.Errorf("listed %d of %d parameters", len(all), len(nova.Params))
	}
	for _, p := range listParams("GLOBAL") {
		if p.Group != "global" {
			t.Errorf("%s is in group %s", p.ID, p.Group)
		}
	}
	if got := listParams("nope"); len(got) != 0 {
		t.Errorf("unknown group listed %d parameters", len(got))
	}
}

func TestExportPath(t *testing.T) {
	cfg := config.Default()
	if got := exportPath(cfg, "a.syx"); got != "a.syx" {
		t.Errorf("no export dir: %q", got)
	}
	cfg.ExportDir = filepath.Join("home", "presets")
	if got := exportPath(cfg, "a.syx"); got != filepath.Join("home", "presets", "a.syx") {
		t.Errorf("relative: %q", got)
	}
	abs := filepath.Join(t.TempDir(), "b.syx")
	if got := exportPath(cfg, abs); got != abs {
		t.Errorf("absolute: %q", got)
	}
}

func TestCommonLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.SaveFile(config.Default(), path); err != nil {
		t.Fatal(err)
	}
	c := common{configPath: path, in: "usb", device: 3, logLevel: "debug"}
	cfg, err := c.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MIDI.Input != "usb" || cfg.MIDI.Output != "nova" || cfg.MIDI.DeviceID != 3 || cfg.LogLevel != "debug" {
		t.Errorf("got %+v", cfg)
	}

	c = common{configPath: path, device: -1, logLevel: "loud"}
	if _, err := c.load(); err == nil {
		t.Error("bad log level accepted")
	}
}
