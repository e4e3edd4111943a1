// Package librarian implements the preset management use cases on top of a
// midiport.Port: requesting and saving presets, the user bank and the system
// dump, renaming, verification, CC tools and .syx file import and export.
package librarian

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"

	"novamcp/internal/midiport"
	"novamcp/internal/nova"
	"novamcp/internal/sysex"
)

// Options tune the device conversation.
type Options struct {
	DeviceID       byte
	RequestTimeout time.Duration
	BankTimeout    time.Duration
	// SendGap is the pause between consecutive dumps sent to the unit.
	SendGap time.Duration
	// VerifyDelay is the pause between saving and reading back.
	VerifyDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		RequestTimeout: 2 * time.Second,
		BankTimeout:    30 * time.Second,
		SendGap:        50 * time.Millisecond,
		VerifyDelay:    500 * time.Millisecond,
	}
}

type Librarian struct {
	port midiport.Port
	log  logrus.FieldLogger
	opts Options
}

// New returns a Librarian talking through port. A nil logger uses the
// logrus standard logger.
func New(port midiport.Port, log logrus.FieldLogger, opts Options) *Librarian {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Librarian{port: port, log: log, opts: opts}
}

func (l *Librarian) Port() midiport.Port { return l.port }

func (l *Librarian) Connect(ctx context.Context, sel midiport.Selection) error {
	if err := l.port.Connect(ctx, sel); err != nil {
		return transport(err, fmt.Sprintf("Could not open MIDI ports matching input %q and output %q.", sel.Input, sel.Output))
	}
	return nil
}

func (l *Librarian) Disconnect() error {
	if err := l.port.Disconnect(); err != nil {
		return transport(err, "Could not close the MIDI ports.")
	}
	return nil
}

func (l *Librarian) send(ctx context.Context, msg []byte) error {
	if err := l.port.SendSysEx(ctx, msg); err != nil {
		return transport(err, "Could not send to the Nova System.")
	}
	return nil
}

// request subscribes, sends req and hands every incoming message to accept
// until it reports done or the timeout expires.
func (l *Librarian) request(ctx context.Context, req []byte, timeout time.Duration, what string, accept func([]byte) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := l.port.ReceiveSysEx(ctx)
	if err != nil {
		return transport(err, "The MIDI input is not open.")
	}
	if err := l.send(ctx, req); err != nil {
		return err
	}
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return waitErr(ctx.Err(), what)
				}
				return waitErr(midiport.ErrNotConnected, what)
			}
			done, err := accept(msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-ctx.Done():
			return waitErr(ctx.Err(), what)
		}
	}
}

func checkNumber(number, min, max int) error {
	if number < min || number > max {
		return invalid(&nova.RangeError{Param: "preset_number", Value: number, Min: min, Max: max},
			fmt.Sprintf("Preset number must be between %d and %d.", min, max))
	}
	return nil
}

// RequestPreset reads one preset; 0 is the currently loaded preset.
func (l *Librarian) RequestPreset(ctx context.Context, number int) (*nova.Preset, error) {
	if err := checkNumber(number, 0, nova.MaxPresetNumber); err != nil {
		return nil, err
	}
	req, err := sysex.PresetRequest(l.opts.DeviceID, number)
	if err != nil {
		return nil, invalid(err, "Invalid preset request.")
	}

	log := l.log.WithField("preset", number)
	log.Debug("requesting preset")

	var p *nova.Preset
	err = l.request(ctx, req, l.opts.RequestTimeout, fmt.Sprintf("request preset %d", number), func(msg []byte) (bool, error) {
		n, ok := nova.PresetNumber(msg)
		if !ok {
			return false, nil
		}
		if number != 0 && n != number {
			log.WithField("received", n).Debug("ignoring other preset")
			return false, nil
		}
		got, err := nova.ParsePreset(msg)
		if err != nil {
			return false, deviceErr(err, fmt.Sprintf("Preset %d could not be decoded.", number))
		}
		p = got
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if p.ChecksumErr() != nil {
		log.WithError(p.ChecksumErr()).Warn("preset checksum mismatch")
	}
	log.WithField("name", p.Name()).Info("preset received")
	return p, nil
}

func (l *Librarian) RequestSystemDump(ctx context.Context) (*nova.SystemDump, error) {
	var d *nova.SystemDump
	err := l.request(ctx, sysex.SystemRequest(l.opts.DeviceID), l.opts.RequestTimeout, "request system dump", func(msg []byte) (bool, error) {
		if sysex.Identify(msg) != sysex.KindSystem {
			return false, nil
		}
		got, err := nova.ParseSystemDump(msg)
		if err != nil {
			return false, deviceErr(err, "The system dump could not be decoded.")
		}
		d = got
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if d.ChecksumErr() != nil {
		l.log.WithError(d.ChecksumErr()).Warn("system dump checksum mismatch")
	}
	l.log.Info("system dump received")
	return d, nil
}

// DownloadBank requests the user bank and collects presets 31–90 in any
// order; a repeated number replaces the earlier copy. On timeout the
// partial bank is returned together with the error.
func (l *Librarian) DownloadBank(ctx context.Context) (*nova.Bank, error) {
	bank := nova.EmptyBank()
	err := l.request(ctx, sysex.BankRequest(l.opts.DeviceID), l.opts.BankTimeout, "download user bank", func(msg []byte) (bool, error) {
		if sysex.Identify(msg) != sysex.KindPreset {
			return false, nil
		}
		p, err := nova.ParsePreset(msg)
		if err != nil {
			l.log.WithError(err).Warn("skipping undecodable bank preset")
			return false, nil
		}
		next, err := bank.WithPreset(p.Number(), p)
		if err != nil {
			l.log.WithError(err).Debug("skipping preset outside the user bank")
			return false, nil
		}
		bank = next
		l.log.WithFields(logrus.Fields{"preset": p.Number(), "received": bank.Count()}).Debug("bank preset received")
		return bank.Complete(), nil
	})
	if err != nil {
		return bank, fault.Wrap(err, fmsg.With(fmt.Sprintf("%d of %d presets received", bank.Count(), nova.BankSize)))
	}
	l.log.Info("user bank received")
	return bank, nil
}

// SavePreset stores p in user slot number.
func (l *Librarian) SavePreset(ctx context.Context, p *nova.Preset, number int) error {
	if p == nil {
		return invalid(errors.New("nil preset"), "No preset to save.")
	}
	if err := checkNumber(number, nova.FirstUserPreset, nova.LastUserPreset); err != nil {
		return err
	}
	target, err := p.WithNumber(number)
	if err != nil {
		return invalid(err, "Invalid preset number.")
	}
	if err := l.send(ctx, target.Bytes()); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"preset": number, "name": target.Name()}).Info("preset saved")
	return nil
}

// SendBank transmits every filled slot, pausing SendGap between dumps.
func (l *Librarian) SendBank(ctx context.Context, bank *nova.Bank) error {
	if bank == nil {
		return invalid(errors.New("nil bank"), "No bank to send.")
	}
	sent := 0
	for _, p := range bank.Slots() {
		if p == nil {
			continue
		}
		if sent > 0 {
			if err := sleep(ctx, l.opts.SendGap); err != nil {
				return waitErr(err, "send bank")
			}
		}
		if err := l.send(ctx, p.Bytes()); err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("send preset %d", p.Number())))
		}
		sent++
	}
	l.log.WithField("presets", sent).Info("bank sent")
	return nil
}

func (l *Librarian) SaveSystemDump(ctx context.Context, d *nova.SystemDump) error {
	if d == nil {
		return invalid(errors.New("nil system dump"), "No system dump to save.")
	}
	if err := l.send(ctx, d.Bytes()); err != nil {
		return err
	}
	l.log.Info("system dump saved")
	return nil
}

// RenameResult reports a rename. Verified is false when the read-back did
// not confirm the new name; Warning then explains why.
type RenameResult struct {
	Preset   *nova.Preset
	Verified bool
	Warning  string
}

// RenamePreset reads the preset, changes its name, saves it and reads it
// back to confirm.
func (l *Librarian) RenamePreset(ctx context.Context, number int, name string) (RenameResult, error) {
	if strings.TrimSpace(name) == "" {
		return RenameResult{}, invalid(errors.New("empty name"), "The preset name must not be blank.")
	}
	if err := nova.ValidateName(name); err != nil {
		return RenameResult{}, invalid(err, fmt.Sprintf("The preset name must be at most %d printable ASCII characters.", nova.NameLength))
	}
	if err := checkNumber(number, nova.FirstUserPreset, nova.LastUserPreset); err != nil {
		return RenameResult{}, err
	}

	p, err := l.RequestPreset(ctx, number)
	if err != nil {
		return RenameResult{}, err
	}
	renamed := p.Clone()
	if err := renamed.SetName(name); err != nil {
		return RenameResult{}, invalid(err, "Invalid preset name.")
	}
	if err := l.SavePreset(ctx, renamed, number); err != nil {
		return RenameResult{}, err
	}

	res := RenameResult{Preset: renamed}
	if err := sleep(ctx, l.opts.VerifyDelay); err != nil {
		return res, waitErr(err, "rename preset")
	}
	back, err := l.RequestPreset(ctx, number)
	switch {
	case err != nil:
		res.Warning = "rename sent but could not be verified: " + Issue(err)
	case back.Name() != renamed.Name():
		res.Warning = fmt.Sprintf("rename sent but the unit reports the name %q", back.Name())
	default:
		res.Preset, res.Verified = back, true
	}
	if !res.Verified {
		l.log.WithField("preset", number).Warn(res.Warning)
	}
	return res, nil
}

// DeletePreset overwrites a user slot with the init preset.
func (l *Librarian) DeletePreset(ctx context.Context, number int) error {
	if err := checkNumber(number, nova.FirstUserPreset, nova.LastUserPreset); err != nil {
		return err
	}
	p, err := nova.NewInitPreset(number)
	if err != nil {
		return fault.Wrap(err, ftag.With(ftag.Internal))
	}
	return l.SavePreset(ctx, p, number)
}

// CopyPreset reads preset from and stores it in user slot to.
func (l *Librarian) CopyPreset(ctx context.Context, from, to int) (*nova.Preset, error) {
	if err := checkNumber(to, nova.FirstUserPreset, nova.LastUserPreset); err != nil {
		return nil, err
	}
	p, err := l.RequestPreset(ctx, from)
	if err != nil {
		return nil, err
	}
	if err := l.SavePreset(ctx, p, to); err != nil {
		return nil, err
	}
	return p.WithNumber(to)
}

// UpdateSystemDump reads the system dump, applies edit to a copy and saves
// the result.
func (l *Librarian) UpdateSystemDump(ctx context.Context, edit func(*nova.SystemDump) error) (*nova.SystemDump, error) {
	d, err := l.RequestSystemDump(ctx)
	if err != nil {
		return nil, err
	}
	next := d.Clone()
	if err := edit(next); err != nil {
		return nil, invalid(err, "The system setting was rejected.")
	}
	if err := l.SaveSystemDump(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// diffOffsets lists the byte positions where a and b differ, up to limit.
func diffOffsets(a, b []byte, limit int) []int {
	var out []int
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n && len(out) < limit; i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			out = append(out, i)
		}
	}
	return out
}

// VerifyResult compares what was sent with what the unit returned.
type VerifyResult struct {
	Match       bool  `json:"match"`
	SentBytes   int   `json:"sent_bytes"`
	ReturnBytes int   `json:"returned_bytes"`
	Differences []int `json:"differences,omitempty"`
}

func compare(sent, got []byte) VerifyResult {
	return VerifyResult{
		Match:       bytes.Equal(sent, got),
		SentBytes:   len(sent),
		ReturnBytes: len(got),
		Differences: diffOffsets(sent, got, 32),
	}
}

// VerifyPresetRoundTrip saves p to number, waits, reads it back and
// compares the bytes.
func (l *Librarian) VerifyPresetRoundTrip(ctx context.Context, p *nova.Preset, number int) (VerifyResult, error) {
	if err := l.SavePreset(ctx, p, number); err != nil {
		return VerifyResult{}, err
	}
	sent, _ := p.WithNumber(number)
	if err := sleep(ctx, l.opts.VerifyDelay); err != nil {
		return VerifyResult{}, waitErr(err, "verify preset")
	}
	back, err := l.RequestPreset(ctx, number)
	if err != nil {
		return VerifyResult{}, err
	}
	res := compare(sent.Bytes(), back.Bytes())
	l.log.WithFields(logrus.Fields{"preset": number, "match": res.Match}).Info("preset round trip verified")
	return res, nil
}

// VerifySystemDumpRoundTrip saves d, waits, reads it back and compares.
func (l *Librarian) VerifySystemDumpRoundTrip(ctx context.Context, d *nova.SystemDump) (VerifyResult, error) {
	if err := l.SaveSystemDump(ctx, d); err != nil {
		return VerifyResult{}, err
	}
	if err := sleep(ctx, l.opts.VerifyDelay); err != nil {
		return VerifyResult{}, waitErr(err, "verify system dump")
	}
	back, err := l.RequestSystemDump(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	res := compare(d.Bytes(), back.Bytes())
	l.log.WithField("match", res.Match).Info("system dump round trip verified")
	return res, nil
}
