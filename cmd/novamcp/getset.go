package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"novamcp/internal/config"
	"novamcp/internal/nova"
)

// usageErr tags a command line mistake with the message shown to the user.
func usageErr(err error, issue string) error {
	return fault.Wrap(err, fmsg.WithDesc("usage", issue), ftag.With(ftag.InvalidArgument))
}

func printJSON(v any) error {
	asJson, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("marshal JSON"))
	}
	fmt.Println(string(asJson))
	return nil
}

// exportPath resolves a relative output file against the configured export
// directory.
func exportPath(cfg *config.Config, name string) string {
	if name == "" || filepath.IsAbs(name) || cfg.ExportDir == "" {
		return name
	}
	return filepath.Join(cfg.ExportDir, name)
}

func runPorts(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	c.register(fs)
	_ = fs.Parse(args)

	e, err := c.setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	ins, err := e.port.Inputs()
	if err != nil {
		return err
	}
	outs, err := e.port.Outputs()
	if err != nil {
		return err
	}
	fmt.Println("Inputs:")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("Outputs:")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func runGet(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	c.register(fs)
	number := fs.Int("n", 0, "preset number (0-90; 0 is the edit buffer)")
	output := fs.String("o", "", "also write the preset to this .syx file")
	full := fs.Bool("full", false, "print every active parameter with its range")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.lib.RequestPreset(ctx, *number)
	if err != nil {
		return err
	}
	e.log.WithField("preset", p.Number()).Infof("read preset %q", p.Name())

	if *output != "" {
		if err := e.lib.ExportPreset(exportPath(e.cfg, *output), p); err != nil {
			return err
		}
	}
	if *full {
		return printJSON(p.Params())
	}
	return printJSON(p)
}

func runBank(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("bank", flag.ExitOnError)
	c.register(fs)
	output := fs.String("o", "bank.syx", "write the bank to this .syx file")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	bank, err := e.lib.DownloadBank(ctx)
	if bank != nil && bank.Count() > 0 {
		if xerr := e.lib.ExportBank(exportPath(e.cfg, *output), bank); xerr != nil {
			return xerr
		}
	}
	if err != nil {
		if bank != nil {
			e.log.Warnf("missing presets: %v", bank.Missing())
		}
		return err
	}
	fmt.Printf("%d presets written to %s\n", bank.Count(), exportPath(e.cfg, *output))
	return nil
}

func runSystem(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("system", flag.ExitOnError)
	c.register(fs)
	output := fs.String("o", "", "also write the dump to this .syx file")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	d, err := e.lib.RequestSystemDump(ctx)
	if err != nil {
		return err
	}
	if *output != "" {
		if err := e.lib.ExportSystemDump(exportPath(e.cfg, *output), d); err != nil {
			return err
		}
	}
	return printJSON(d)
}

// presetEdit is the JSON accepted on stdin by "send" and by the
// nova_set-parameters tool.
type presetEdit struct {
	Name   *string            `json:"name,omitempty"`
	Params map[nova.Param]int `json:"params,omitempty"`
}

func parseEdit(data []byte) (presetEdit, error) {
	var edit presetEdit
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edit); err != nil {
		return presetEdit{}, usageErr(err, "The edit is not valid JSON or names an unknown field or parameter.")
	}
	if edit.Name == nil && len(edit.Params) == 0 {
		return presetEdit{}, usageErr(errors.New("edit JSON changes nothing"), `Give "name" and/or "params".`)
	}
	return edit, nil
}

// apply changes a copy of p. The original is left alone when any field is
// rejected.
func (e presetEdit) apply(p *nova.Preset) (*nova.Preset, error) {
	next := p.Clone()
	if len(e.Params) > 0 {
		if err := next.Apply(e.Params); err != nil {
			return nil, err
		}
	}
	if e.Name != nil {
		if err := next.SetName(*e.Name); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func runSend(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	c.register(fs)
	number := fs.Int("n", 0, "target user preset (31-90); default is the file's own number")
	file := fs.String("f", "", ".syx file holding a preset, a bank or a system dump")
	verify := fs.Bool("verify", false, "read the data back and compare")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	if *file != "" {
		s, err := e.lib.ImportFile(*file)
		if err != nil {
			return err
		}
		switch s.Type {
		case nova.FileBank:
			return e.lib.SendBank(ctx, s.Bank)
		case nova.FileSystemDump:
			if *verify {
				res, err := e.lib.VerifySystemDumpRoundTrip(ctx, s.System)
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			return e.lib.SaveSystemDump(ctx, s.System)
		default:
			target := *number
			if target == 0 {
				target = s.Preset.Number()
			}
			return savePreset(ctx, e, s.Preset, target, *verify)
		}
	}

	if *number == 0 {
		return usageErr(errors.New("missing -n"), "-n is required when editing from stdin.")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fault.Wrap(err, fmsg.With("read edit JSON from stdin"))
	}
	edit, err := parseEdit(data)
	if err != nil {
		return err
	}
	p, err := e.lib.RequestPreset(ctx, *number)
	if err != nil {
		return err
	}
	next, err := edit.apply(p)
	if err != nil {
		return err
	}
	return savePreset(ctx, e, next, *number, *verify)
}

func savePreset(ctx context.Context, e *env, p *nova.Preset, number int, verify bool) error {
	if !verify {
		return e.lib.SavePreset(ctx, p, number)
	}
	res, err := e.lib.VerifyPresetRoundTrip(ctx, p, number)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runRename(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	c.register(fs)
	number := fs.Int("n", 0, "user preset (31-90)")
	name := fs.String("name", "", "new name")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.lib.RenamePreset(ctx, *number, *name)
	if err != nil {
		return err
	}
	if !res.Verified {
		fmt.Println("warning:", res.Warning)
		return nil
	}
	fmt.Printf("preset %d renamed to %q\n", *number, res.Preset.Name())
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	c.register(fs)
	number := fs.Int("n", 0, "user preset (31-90)")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()
	return e.lib.DeletePreset(ctx, *number)
}

func runCopy(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	c.register(fs)
	from := fs.Int("from", 0, "source preset (0-90)")
	to := fs.Int("to", 0, "target user preset (31-90)")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.lib.CopyPreset(ctx, *from, *to)
	if err != nil {
		return err
	}
	fmt.Printf("copied %q from %d to %d\n", p.Name(), *from, *to)
	return nil
}

// runInspect decodes a .syx file offline.
func runInspect(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	c.register(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return usageErr(errors.New("missing file"), "usage: novamcp inspect FILE.syx")
	}

	e, err := c.setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	s, err := e.lib.ImportFile(fs.Arg(0))
	if err != nil {
		return err
	}
	for _, skipped := range s.Skipped {
		fmt.Fprintln(os.Stderr, "skipped:", skipped)
	}
	switch s.Type {
	case nova.FilePreset:
		return printJSON(s.Preset)
	case nova.FileSystemDump:
		return printJSON(s.System)
	default:
		var names []string
		for _, p := range s.Bank.Slots() {
			if p != nil {
				names = append(names, fmt.Sprintf("%d %s", p.Number(), p.Name()))
			}
		}
		fmt.Printf("bank: %d presets, missing %v\n", s.Bank.Count(), s.Bank.Missing())
		fmt.Println(strings.Join(names, "\n"))
		return nil
	}
}

func runConfig(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	c.register(fs)
	save := fs.Bool("save", false, "write the effective configuration back to the config file")
	_ = fs.Parse(args)

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *save {
		if c.configPath != "" {
			err = config.SaveFile(cfg, c.configPath)
		} else {
			err = config.Save(cfg)
		}
		if err != nil {
			return fault.Wrap(err, fmsg.WithDesc("save config", "Could not write the configuration file."))
		}
	}
	return printJSON(cfg)
}
