package librarian

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"

	"novamcp/internal/nova"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		tag := ftag.Internal
		if os.IsNotExist(err) {
			tag = ftag.NotFound
		}
		return nil, fault.Wrap(err, fmsg.WithDesc("read file", fmt.Sprintf("Could not read %s.", path)), ftag.With(tag))
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fault.Wrap(err, fmsg.WithDesc("create directory", fmt.Sprintf("Could not create %s.", dir)))
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write file", fmt.Sprintf("Could not write %s.", path)))
	}
	return nil
}

// DetectFile classifies a .syx file without decoding its parameters.
func (l *Librarian) DetectFile(path string) (nova.FileType, error) {
	data, err := readFile(path)
	if err != nil {
		return nova.FileUnknown, err
	}
	return nova.DetectType(data), nil
}

// ImportFile decodes a .syx file holding a preset, a system dump or a bank.
func (l *Librarian) ImportFile(path string) (*nova.Syx, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s, err := nova.ParseSyx(data)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("import "+path, "The file is not a valid Nova System SysEx file."), ftag.With(ftag.InvalidArgument))
	}
	log := l.log.WithFields(logrus.Fields{"file": path, "type": s.Type.String()})
	for _, skipped := range s.Skipped {
		log.WithError(skipped).Warn("skipped bank entry")
	}
	log.Info("file imported")
	return s, nil
}

// ImportPreset reads a single-preset file.
func (l *Librarian) ImportPreset(path string) (*nova.Preset, error) {
	s, err := l.ImportFile(path)
	if err != nil {
		return nil, err
	}
	if s.Preset == nil {
		return nil, fault.Wrap(ErrUnexpectedFile, fmsg.WithDesc(path, fmt.Sprintf("%s holds a %s, not a preset.", path, s.Type)), ftag.With(ftag.InvalidArgument))
	}
	return s.Preset, nil
}

func (l *Librarian) ExportPreset(path string, p *nova.Preset) error {
	if err := writeFile(path, p.Bytes()); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"file": path, "preset": p.Number()}).Info("preset exported")
	return nil
}

func (l *Librarian) ExportBank(path string, b *nova.Bank) error {
	if err := writeFile(path, b.Bytes()); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"file": path, "presets": b.Count()}).Info("bank exported")
	return nil
}

func (l *Librarian) ExportSystemDump(path string, d *nova.SystemDump) error {
	if err := writeFile(path, d.Bytes()); err != nil {
		return err
	}
	l.log.WithField("file", path).Info("system dump exported")
	return nil
}
