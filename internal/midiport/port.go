// Package midiport connects the librarian to a MIDI interface. Port is the
// transport contract; GoMIDI drives real hardware and Memory is an in-memory
// double for tests.
package midiport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"novamcp/internal/sysex"
)

// State is the connection state of a Port.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Selection names the input and output ports by case-insensitive fragment.
type Selection struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Port is a bidirectional SysEx and Control Change transport.
//
// Every receive call is an independent subscription: it sees each message
// that arrives after the call, in arrival order, and its channel is closed
// when ctx is done or the port disconnects.
type Port interface {
	Connect(ctx context.Context, sel Selection) error
	Disconnect() error
	SendSysEx(ctx context.Context, msg []byte) error
	ReceiveSysEx(ctx context.Context) (<-chan []byte, error)
	ReceiveCC(ctx context.Context) (<-chan sysex.CC, error)
}

// CCSender is implemented by ports that can transmit Control Change.
type CCSender interface {
	SendCC(ctx context.Context, cc sysex.CC) error
}

// PortLister is implemented by ports that can enumerate the system's ports.
type PortLister interface {
	Inputs() ([]string, error)
	Outputs() ([]string, error)
}

// Stater is implemented by ports that expose their connection state.
type Stater interface {
	State() State
}

var (
	ErrNotConnected = errors.New("not connected")
	ErrPortNotFound = errors.New("port not found")
)

// TransportError describes a failed port operation.
type TransportError struct {
	Op   string
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("midi %s %q: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("midi %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// matchPort returns the index of the first name containing fragment,
// ignoring case.
func matchPort(names []string, fragment string) (int, bool) {
	lower := strings.ToLower(fragment)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), lower) {
			return i, true
		}
	}
	return -1, false
}
