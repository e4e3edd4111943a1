package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	_ "embed"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"novamcp/internal/librarian"
	"novamcp/internal/nova"
)

//go:embed nova_sysex_notes.txt
var sysexNotes string

func textJSON(v any) (*mcp.CallToolResult, error) {
	asJson, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %v", err)
	}
	return mcp.NewToolResultText(string(asJson)), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(librarian.Issue(err))
}

// paramInfo is the nova_list-parameters view of a table row.
type paramInfo struct {
	ID       nova.Param `json:"id"`
	Group    string     `json:"group"`
	Offset   int        `json:"offset"`
	Min      int        `json:"min"`
	Max      int        `json:"max"`
	Encoding string     `json:"encoding"`
	Switch   bool       `json:"switch,omitempty"`
	Selector nova.Param `json:"depends_on,omitempty"`
}

func listParams(group string) []paramInfo {
	var out []paramInfo
	for _, spec := range nova.Params {
		if group != "" && !strings.EqualFold(spec.Group, group) {
			continue
		}
		out = append(out, paramInfo{
			ID:       spec.ID,
			Group:    spec.Group,
			Offset:   spec.Offset,
			Min:      spec.Min,
			Max:      spec.Max,
			Encoding: spec.Encoding.String(),
			Switch:   spec.Switch,
			Selector: spec.Selector,
		})
	}
	return out
}

func runMCP(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	c.register(fs)
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	s := newMCPServer(e)
	e.log.Info("starting Nova System MCP server")
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func newMCPServer(e *env) *server.MCPServer {
	lib := e.lib
	s := server.NewMCPServer(
		"Nova System MCP",
		version,
		server.WithToolCapabilities(false),
	)

	docTool := mcp.NewTool("nova_describe-sysex",
		mcp.WithDescription("Returns notes on the Nova System SysEx format: message layout, value encodings and preset numbering."),
	)
	s.AddTool(docTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		e.log.Debug("[mcp] describe sysex")
		return mcp.NewToolResultText(sysexNotes), nil
	})

	listTool := mcp.NewTool("nova_list-parameters",
		mcp.WithDescription("Lists preset parameters with their ranges. Conditional parameters show the widest range; the effective range depends on the effect type named in depends_on."),
		mcp.WithString("group", mcp.Description("Only list one group, e.g. drive, delay, reverb.")),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		group := request.GetString("group", "")
		params := listParams(group)
		if len(params) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("unknown group %q, known groups: %s", group, strings.Join(nova.Groups(), ", "))), nil
		}
		return textJSON(params)
	})

	getPresetTool := mcp.NewTool("nova_get-preset",
		mcp.WithDescription("Reads a preset from the Nova System. 0 is the edit buffer, 1-30 factory, 31-90 user."),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("The preset number (0-90).")),
		mcp.WithBoolean("full", mcp.Description("Include each parameter's effective range.")),
	)
	s.AddTool(getPresetTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := request.RequireInt("number")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		e.log.WithField("preset", number).Info("[mcp] get preset")

		p, err := lib.RequestPreset(ctx, number)
		if err != nil {
			return toolError(err), nil
		}
		if request.GetBool("full", false) {
			return textJSON(p.Params())
		}
		return textJSON(p)
	})

	setParamsTool := mcp.NewTool("nova_set-parameters",
		mcp.WithDescription("Reads a user preset, applies parameter changes and saves it. Every value is validated first; if any is rejected nothing is saved."),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("The user preset number (31-90).")),
		mcp.WithString("edit-json", mcp.Required(), mcp.Description(`JSON object {"name": "...", "params": {"drive_gain": 40, ...}}. Both fields are optional but one is required.`)),
		mcp.WithBoolean("verify", mcp.Description("Read the preset back and compare bytes.")),
	)
	s.AddTool(setParamsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := request.RequireInt("number")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		editJson, err := request.RequireString("edit-json")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		edit, err := parseEdit([]byte(editJson))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		e.log.WithField("preset", number).Info("[mcp] set parameters")

		p, err := lib.RequestPreset(ctx, number)
		if err != nil {
			return toolError(err), nil
		}
		next, err := edit.apply(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if request.GetBool("verify", false) {
			res, err := lib.VerifyPresetRoundTrip(ctx, next, number)
			if err != nil {
				return toolError(err), nil
			}
			return textJSON(res)
		}
		if err := lib.SavePreset(ctx, next, number); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Preset %d saved.", number)), nil
	})

	renameTool := mcp.NewTool("nova_rename-preset",
		mcp.WithDescription("Renames a user preset and reads it back to confirm."),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("The user preset number (31-90).")),
		mcp.WithString("name", mcp.Required(), mcp.Description("The new name, up to 24 printable ASCII characters.")),
	)
	s.AddTool(renameTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := request.RequireInt("number")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := lib.RenamePreset(ctx, number, name)
		if err != nil {
			return toolError(err), nil
		}
		if !res.Verified {
			return mcp.NewToolResultText("Warning: " + res.Warning), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Preset %d renamed to %q.", number, res.Preset.Name())), nil
	})

	deleteTool := mcp.NewTool("nova_delete-preset",
		mcp.WithDescription("Resets a user preset to the init preset."),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("The user preset number (31-90).")),
	)
	s.AddTool(deleteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := request.RequireInt("number")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := lib.DeletePreset(ctx, number); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Preset %d reset.", number)), nil
	})

	copyTool := mcp.NewTool("nova_copy-preset",
		mcp.WithDescription("Copies any preset into a user slot."),
		mcp.WithNumber("from", mcp.Required(), mcp.Description("The source preset (0-90).")),
		mcp.WithNumber("to", mcp.Required(), mcp.Description("The target user preset (31-90).")),
	)
	s.AddTool(copyTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		from, err := request.RequireInt("from")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		to, err := request.RequireInt("to")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p, err := lib.CopyPreset(ctx, from, to)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Copied %q from %d to %d.", p.Name(), from, to)), nil
	})

	getSystemTool := mcp.NewTool("nova_get-system",
		mcp.WithDescription("Reads the system dump: MIDI settings, pedal mapping, CC assignments and program maps."),
	)
	s.AddTool(getSystemTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := lib.RequestSystemDump(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return textJSON(d)
	})

	ccMapTool := mcp.NewTool("nova_set-cc-mapping",
		mcp.WithDescription("Assigns an incoming MIDI CC to a system function, or turns the assignment off."),
		mcp.WithString("assignment", mcp.Required(), mcp.Description("Assignment name: "+strings.Join(nova.CCAssignmentNames(), ", ")+".")),
		mcp.WithNumber("cc", mcp.Required(), mcp.Description("Controller number 0-127, or -1 for off.")),
	)
	s.AddTool(ccMapTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("assignment")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cc, err := request.RequireInt("cc")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		idx, ok := nova.CCAssignmentIndex(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown assignment %q", name)), nil
		}
		var value *int
		if cc >= 0 {
			value = &cc
		}
		d, err := lib.UpdateSystemDump(ctx, func(d *nova.SystemDump) error {
			return d.SetCCMapping(idx, value)
		})
		if err != nil {
			return toolError(err), nil
		}
		m, _ := d.CCMapping(idx)
		return textJSON(m)
	})

	programMapTool := mcp.NewTool("nova_set-program-map-in",
		mcp.WithDescription("Maps an incoming MIDI program change to a preset, or turns the entry off."),
		mcp.WithNumber("program", mcp.Required(), mcp.Description("Incoming program number (1-127).")),
		mcp.WithNumber("preset", mcp.Required(), mcp.Description("Preset number (1-90), or 0 for off.")),
	)
	s.AddTool(programMapTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		program, err := request.RequireInt("program")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		preset, err := request.RequireInt("preset")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var target *int
		if preset != 0 {
			target = &preset
		}
		if _, err := lib.UpdateSystemDump(ctx, func(d *nova.SystemDump) error {
			return d.SetProgramMapIn(program, target)
		}); err != nil {
			return toolError(err), nil
		}
		if target == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Program %d unmapped.", program)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Program %d mapped to preset %d.", program, preset)), nil
	})

	sendCCTool := mcp.NewTool("nova_send-cc",
		mcp.WithDescription("Sends control changes to the Nova System, e.g. \"drive:on, r, delay:off, 11:64\". Tokens are controller:value; controllers are numbers or names (drive, tap-tempo, reverb, ...); values are 0-127, on or off; r is a pause."),
		mcp.WithString("cc-text", mcp.Required(), mcp.Description("The control changes to send.")),
	)
	s.AddTool(sendCCTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("cc-text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sent, err := sendCCText(ctx, lib, e.cfg.MIDI.Channel, text)
		if err != nil {
			return toolError(err), nil
		}
		lines := make([]string, len(sent))
		for i, cc := range sent {
			lines[i] = cc.String()
		}
		return mcp.NewToolResultText("Sent:\n" + strings.Join(lines, "\n")), nil
	})

	return s
}
