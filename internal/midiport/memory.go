package midiport

import (
	"context"
	"sync"

	"novamcp/internal/sysex"
)

// Memory is an in-memory Port. Sent messages are recorded, incoming
// messages are injected by the caller and a reply hook can script the
// device's answers.
type Memory struct {
	mu      sync.Mutex
	inputs  []string
	outputs []string
	state   State
	sel     Selection
	sysex   *hub[[]byte]
	cc      *hub[sysex.CC]
	sent    [][]byte
	sentCC  []sysex.CC
	reply   func(msg []byte) [][]byte
	sendErr error
}

// NewMemory returns a disconnected port that offers the given port names
// as both inputs and outputs. Without names it offers "Nova System".
func NewMemory(names ...string) *Memory {
	if len(names) == 0 {
		names = []string{"Nova System"}
	}
	return &Memory{
		inputs:  append([]string(nil), names...),
		outputs: append([]string(nil), names...),
	}
}

func (m *Memory) Connect(ctx context.Context, sel Selection) error {
	_ = m.Disconnect()
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := matchPort(m.outputs, sel.Output); !ok {
		return &TransportError{Op: "connect", Port: sel.Output, Err: ErrPortNotFound}
	}
	if _, ok := matchPort(m.inputs, sel.Input); !ok {
		return &TransportError{Op: "connect", Port: sel.Input, Err: ErrPortNotFound}
	}
	m.sysex, m.cc = newHub[[]byte](), newHub[sysex.CC]()
	m.sel = sel
	m.state = Connected
	return nil
}

func (m *Memory) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sysex != nil {
		m.sysex.close()
		m.cc.close()
	}
	m.sysex, m.cc = nil, nil
	m.state = Disconnected
	return nil
}

func (m *Memory) SendSysEx(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return &TransportError{Op: "send", Port: m.sel.Output, Err: err}
	}
	m.sent = append(m.sent, append([]byte(nil), msg...))
	reply, h := m.reply, m.sysex
	m.mu.Unlock()

	if reply != nil {
		for _, r := range reply(msg) {
			h.publish(r)
		}
	}
	return nil
}

func (m *Memory) SendCC(ctx context.Context, cc sysex.CC) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send cc", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected {
		return &TransportError{Op: "send cc", Err: ErrNotConnected}
	}
	m.sentCC = append(m.sentCC, cc)
	return nil
}

func (m *Memory) ReceiveSysEx(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	h := m.sysex
	m.mu.Unlock()
	if h == nil {
		return nil, &TransportError{Op: "receive", Err: ErrNotConnected}
	}
	ch, err := h.subscribe(ctx)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	return ch, nil
}

func (m *Memory) ReceiveCC(ctx context.Context) (<-chan sysex.CC, error) {
	m.mu.Lock()
	h := m.cc
	m.mu.Unlock()
	if h == nil {
		return nil, &TransportError{Op: "receive cc", Err: ErrNotConnected}
	}
	ch, err := h.subscribe(ctx)
	if err != nil {
		return nil, &TransportError{Op: "receive cc", Err: err}
	}
	return ch, nil
}

func (m *Memory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Memory) Inputs() ([]string, error)  { return append([]string(nil), m.inputs...), nil }
func (m *Memory) Outputs() ([]string, error) { return append([]string(nil), m.outputs...), nil }

// Inject delivers a SysEx message as if the device had sent it.
func (m *Memory) Inject(msg []byte) {
	m.mu.Lock()
	h := m.sysex
	m.mu.Unlock()
	if h != nil {
		h.publish(append([]byte(nil), msg...))
	}
}

// InjectCC delivers a Control Change as if the device had sent it.
func (m *Memory) InjectCC(cc sysex.CC) {
	m.mu.Lock()
	h := m.cc
	m.mu.Unlock()
	if h != nil {
		h.publish(cc)
	}
}

// OnSend installs a hook whose return values are injected after every
// SendSysEx.
func (m *Memory) OnSend(reply func(msg []byte) [][]byte) {
	m.mu.Lock()
	m.reply = reply
	m.mu.Unlock()
}

// FailSends makes subsequent sends fail with err; nil restores them.
func (m *Memory) FailSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Sent returns copies of every SysEx message sent so far.
func (m *Memory) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, b := range m.sent {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// SentCC returns every Control Change sent so far.
func (m *Memory) SentCC() []sysex.CC {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sysex.CC(nil), m.sentCC...)
}

// Subscribers reports the number of live SysEx subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	h := m.sysex
	m.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.len()
}
