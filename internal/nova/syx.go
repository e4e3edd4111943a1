package nova

import (
	"errors"
	"fmt"

	"novamcp/internal/sysex"
)

// FileType classifies the contents of a .syx file.
type FileType int

const (
	FileUnknown FileType = iota
	FilePreset
	FileSystemDump
	FileBank
)

func (t FileType) String() string {
	switch t {
	case FilePreset:
		return "preset"
	case FileSystemDump:
		return "system dump"
	case FileBank:
		return "user bank"
	}
	return "unknown"
}

// DetectType inspects the messages in data without decoding parameters.
func DetectType(data []byte) FileType {
	msgs := sysex.Split(data)
	if len(msgs) == 0 {
		return FileUnknown
	}
	presets, systems := 0, 0
	for _, m := range msgs {
		switch sysex.Identify(m) {
		case sysex.KindPreset:
			presets++
		case sysex.KindSystem:
			systems++
		default:
			return FileUnknown
		}
	}
	switch {
	case systems == 1 && presets == 0:
		return FileSystemDump
	case systems == 0 && presets == 1:
		return FilePreset
	case systems == 0 && presets > 1:
		return FileBank
	}
	return FileUnknown
}

// Syx is the decoded contents of a .syx file.
type Syx struct {
	Type   FileType
	Preset *Preset
	System *SystemDump
	Bank   *Bank
	// Skipped holds the errors of bank members that could not be imported.
	Skipped []error
}

// ParseSyx decodes a .syx file holding a preset, a system dump or a bank.
// Bank members that fail to decode or are not user presets are skipped and
// reported in Skipped.
func ParseSyx(data []byte) (*Syx, error) {
	t := DetectType(data)
	msgs := sysex.Split(data)
	out := &Syx{Type: t}

	switch t {
	case FilePreset:
		p, err := ParsePreset(msgs[0])
		if err != nil {
			return nil, err
		}
		out.Preset = p
	case FileSystemDump:
		d, err := ParseSystemDump(msgs[0])
		if err != nil {
			return nil, err
		}
		out.System = d
	case FileBank:
		bank := EmptyBank()
		for i, m := range msgs {
			p, err := ParsePreset(m)
			if err != nil {
				out.Skipped = append(out.Skipped, fmt.Errorf("message %d: %w", i+1, err))
				continue
			}
			next, err := bank.WithPreset(p.Number(), p)
			if err != nil {
				out.Skipped = append(out.Skipped, fmt.Errorf("message %d: %w", i+1, err))
				continue
			}
			bank = next
		}
		if bank.Count() == 0 {
			return nil, errors.Join(out.Skipped...)
		}
		out.Bank = bank
	default:
		return nil, errors.New("unknown or invalid SysEx file")
	}
	return out, nil
}
