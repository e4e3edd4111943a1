package midiport

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"novamcp/internal/sysex"
)

// DefaultSysExBufferSize fits the largest Nova System message with headroom.
const DefaultSysExBufferSize = 4096

// GoMIDI is a Port backed by the gomidi driver registered by the binary.
type GoMIDI struct {
	log     logrus.FieldLogger
	bufSize uint32

	mu    sync.Mutex
	state State
	sel   Selection
	in    drivers.In
	out   drivers.Out
	send  func(midi.Message) error
	stop  func()
	sysex *hub[[]byte]
	cc    *hub[sysex.CC]
}

// NewGoMIDI returns a disconnected port. A nil logger uses the logrus
// standard logger.
func NewGoMIDI(log logrus.FieldLogger) *GoMIDI {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GoMIDI{log: log, bufSize: DefaultSysExBufferSize}
}

func findInPort(fragment string) (drivers.In, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI inputs available: %w", ErrPortNotFound)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	i, ok := matchPort(names, fragment)
	if !ok {
		return nil, fmt.Errorf("no MIDI input contains %q: %w", fragment, ErrPortNotFound)
	}
	return ins[i], nil
}

func findOutPort(fragment string) (drivers.Out, error) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI outputs available: %w", ErrPortNotFound)
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	i, ok := matchPort(names, fragment)
	if !ok {
		return nil, fmt.Errorf("no MIDI output contains %q: %w", fragment, ErrPortNotFound)
	}
	return outs[i], nil
}

// Connect opens both ports and starts listening. Any previous connection is
// torn down first.
func (g *GoMIDI) Connect(ctx context.Context, sel Selection) error {
	if err := g.Disconnect(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Connecting
	fail := func(port string, err error) error {
		g.state = Disconnected
		return &TransportError{Op: "connect", Port: port, Err: err}
	}

	out, err := findOutPort(sel.Output)
	if err != nil {
		return fail(sel.Output, err)
	}
	in, err := findInPort(sel.Input)
	if err != nil {
		return fail(sel.Input, err)
	}

	if err := out.Open(); err != nil {
		return fail(out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		return fail(out.String(), err)
	}

	sysexHub, ccHub := newHub[[]byte](), newHub[sysex.CC]()
	log := g.log.WithField("port", in.String())
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, ctrl, val uint8
		switch {
		case msg.GetControlChange(&ch, &ctrl, &val):
			ccHub.publish(sysex.CC{Channel: ch, Controller: ctrl, Value: val})
		case len(msg) > 0 && msg[0] == sysex.Start:
			if b, ok := Reframe(msg); ok {
				log.WithField("bytes", len(b)).Debug("sysex received")
				sysexHub.publish(b)
			}
		}
	}, midi.UseSysEx(), midi.SysExBufferSize(g.bufSize), midi.HandleError(func(err error) {
		log.WithError(err).Warn("MIDI listener error")
	}))
	if err != nil {
		_ = out.Close()
		return fail(in.String(), err)
	}

	g.in, g.out, g.send, g.stop = in, out, send, stop
	g.sysex, g.cc = sysexHub, ccHub
	g.sel = sel
	g.state = Connected
	g.log.WithFields(logrus.Fields{"input": in.String(), "output": out.String()}).Info("MIDI connected")
	return nil
}

// Disconnect stops listening, closes both ports and ends live subscriptions
// once they have drained. It is safe to call when not connected.
func (g *GoMIDI) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Disconnected {
		return nil
	}
	if g.stop != nil {
		g.stop()
	}
	if g.in != nil {
		if err := g.in.Close(); err != nil {
			g.log.WithError(err).Warn("closing MIDI input")
		}
	}
	if g.out != nil {
		if err := g.out.Close(); err != nil {
			g.log.WithError(err).Warn("closing MIDI output")
		}
	}
	if g.sysex != nil {
		g.sysex.close()
	}
	if g.cc != nil {
		g.cc.close()
	}
	g.in, g.out, g.send, g.stop, g.sysex, g.cc = nil, nil, nil, nil, nil, nil
	g.state = Disconnected
	g.log.Info("MIDI disconnected")
	return nil
}

// Close disconnects and releases the MIDI driver.
func (g *GoMIDI) Close() error {
	err := g.Disconnect()
	midi.CloseDriver()
	return err
}

func (g *GoMIDI) sender(ctx context.Context, op string) (func(midi.Message) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Connected {
		return nil, &TransportError{Op: op, Err: ErrNotConnected}
	}
	return g.send, nil
}

// SendSysEx transmits one complete F0..F7 message.
func (g *GoMIDI) SendSysEx(ctx context.Context, msg []byte) error {
	if len(msg) < 2 || msg[0] != sysex.Start || msg[len(msg)-1] != sysex.End {
		return &TransportError{Op: "send", Err: fmt.Errorf("not a SysEx message (%d bytes)", len(msg))}
	}
	send, err := g.sender(ctx, "send")
	if err != nil {
		return err
	}
	if err := send(midi.SysEx(msg[1 : len(msg)-1])); err != nil {
		return &TransportError{Op: "send", Port: g.sel.Output, Err: err}
	}
	g.log.WithField("bytes", len(msg)).Debug("sysex sent")
	return nil
}

// SendCC transmits a Control Change message.
func (g *GoMIDI) SendCC(ctx context.Context, cc sysex.CC) error {
	send, err := g.sender(ctx, "send cc")
	if err != nil {
		return err
	}
	if err := send(midi.ControlChange(cc.Channel, cc.Controller, cc.Value)); err != nil {
		return &TransportError{Op: "send cc", Port: g.sel.Output, Err: err}
	}
	return nil
}

func (g *GoMIDI) ReceiveSysEx(ctx context.Context) (<-chan []byte, error) {
	g.mu.Lock()
	h := g.sysex
	g.mu.Unlock()
	if h == nil {
		return nil, &TransportError{Op: "receive", Err: ErrNotConnected}
	}
	ch, err := h.subscribe(ctx)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	return ch, nil
}

func (g *GoMIDI) ReceiveCC(ctx context.Context) (<-chan sysex.CC, error) {
	g.mu.Lock()
	h := g.cc
	g.mu.Unlock()
	if h == nil {
		return nil, &TransportError{Op: "receive cc", Err: ErrNotConnected}
	}
	ch, err := h.subscribe(ctx)
	if err != nil {
		return nil, &TransportError{Op: "receive cc", Err: err}
	}
	return ch, nil
}

func (g *GoMIDI) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Inputs lists the names of the available MIDI inputs.
func (g *GoMIDI) Inputs() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, &TransportError{Op: "list inputs", Err: err}
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Outputs lists the names of the available MIDI outputs.
func (g *GoMIDI) Outputs() ([]string, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, &TransportError{Op: "list outputs", Err: err}
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names, nil
}
