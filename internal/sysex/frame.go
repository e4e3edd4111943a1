package sysex

import (
	"bytes"
	"fmt"
)

const (
	Start byte = 0xF0
	End   byte = 0xF7

	ModelID byte = 0x63

	MsgDump    byte = 0x20
	MsgRequest byte = 0x45

	TypePreset byte = 0x01
	TypeSystem byte = 0x02
	TypeBank   byte = 0x03

	// HeaderSize covers F0, manufacturer, device, model, message and data type.
	HeaderSize = 8
)

// Manufacturer is the TC Electronic manufacturer id.
var Manufacturer = [3]byte{0x00, 0x20, 0x1F}

const (
	PresetLength        = 520
	SystemLength        = 527
	PresetRequestLength = 11
	BankRequestLength   = 9
	SystemRequestLength = 9
)

// Kind identifies a Nova System message by its message id, data type and length.
type Kind int

const (
	KindUnknown Kind = iota
	KindPreset
	KindSystem
	KindPresetRequest
	KindBankRequest
	KindSystemRequest
)

type kindInfo struct {
	name     string
	length   int
	msgID    byte
	dataType byte
}

var kinds = map[Kind]kindInfo{
	KindPreset:        {"preset dump", PresetLength, MsgDump, TypePreset},
	KindSystem:        {"system dump", SystemLength, MsgDump, TypeSystem},
	KindPresetRequest: {"preset request", PresetRequestLength, MsgRequest, TypePreset},
	KindBankRequest:   {"bank request", BankRequestLength, MsgRequest, TypeBank},
	KindSystemRequest: {"system request", SystemRequestLength, MsgRequest, TypeSystem},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Length is the exact byte length of a message of kind k, 0 if unknown.
func (k Kind) Length() int {
	return kinds[k].length
}

// Frame is a message whose envelope has been validated.
type Frame struct {
	Kind     Kind
	DeviceID byte
	// Payload holds the bytes between the header and the end byte.
	Payload []byte
}

// Parse validates b as a message of kind k. Checks run in wire order and stop
// at the first mismatch.
func Parse(k Kind, b []byte) (Frame, error) {
	info, ok := kinds[k]
	if !ok {
		return Frame{}, fmt.Errorf("unsupported message kind %d", int(k))
	}

	if len(b) != info.length {
		return Frame{}, &FramingError{Kind: k, Check: "length", Expected: info.length, Actual: len(b)}
	}

	checks := []struct {
		name   string
		offset int
		want   byte
	}{
		{"start byte", 0, Start},
		{"manufacturer id", 1, Manufacturer[0]},
		{"manufacturer id", 2, Manufacturer[1]},
		{"manufacturer id", 3, Manufacturer[2]},
		{"model id", 5, ModelID},
		{"message id", 6, info.msgID},
		{"data type", 7, info.dataType},
		{"end byte", info.length - 1, End},
	}
	for _, c := range checks {
		if b[c.offset] != c.want {
			return Frame{}, &FramingError{
				Kind:     k,
				Check:    c.name,
				Offset:   c.offset,
				Expected: int(c.want),
				Actual:   int(b[c.offset]),
			}
		}
	}

	return Frame{
		Kind:     k,
		DeviceID: b[4],
		Payload:  b[HeaderSize : info.length-1],
	}, nil
}

// Build assembles a message of kind k around payload. Framing bytes are
// always written here, never taken from the caller.
func Build(k Kind, deviceID byte, payload []byte) ([]byte, error) {
	info, ok := kinds[k]
	if !ok {
		return nil, fmt.Errorf("unsupported message kind %d", int(k))
	}
	if want := info.length - HeaderSize - 1; len(payload) != want {
		return nil, fmt.Errorf("%s: payload must be %d bytes, got %d", info.name, want, len(payload))
	}

	out := make([]byte, 0, info.length)
	out = append(out, Start, Manufacturer[0], Manufacturer[1], Manufacturer[2], deviceID&0x7F, ModelID, info.msgID, info.dataType)
	out = append(out, payload...)
	out = append(out, End)
	return out, nil
}

// TrimLegacy drops the duplicated trailing end byte found in some archived
// dumps. Anything else is returned unchanged.
func TrimLegacy(b []byte) []byte {
	for _, k := range []Kind{KindPreset, KindSystem} {
		n := k.Length()
		if len(b) == n+1 && b[n-1] == End && b[n] == End {
			return b[:n]
		}
	}
	return b
}

// Identify classifies a single message by its header and length. Legacy
// double-F7 dumps are recognized.
func Identify(b []byte) Kind {
	b = TrimLegacy(b)
	if len(b) < HeaderSize+1 || b[0] != Start || b[len(b)-1] != End {
		return KindUnknown
	}
	if !bytes.Equal(b[1:4], Manufacturer[:]) || b[5] != ModelID {
		return KindUnknown
	}
	for k, info := range kinds {
		if b[6] == info.msgID && b[7] == info.dataType && len(b) == info.length {
			return k
		}
	}
	return KindUnknown
}

// Split cuts a byte stream into complete F0..F7 messages. Stray bytes
// between messages are skipped, a doubled end byte stays with its message
// and a message interrupted by another status byte is dropped.
func Split(stream []byte) [][]byte {
	var msgs [][]byte
	for i := 0; i < len(stream); {
		if stream[i] != Start {
			i++
			continue
		}
		j := i + 1
		for j < len(stream) && stream[j] < 0x80 {
			j++
		}
		if j == len(stream) {
			break
		}
		if stream[j] != End {
			i = j
			continue
		}
		stop := j + 1
		for stop < len(stream) && stream[stop] == End {
			stop++
		}
		msg := make([]byte, stop-i)
		copy(msg, stream[i:stop])
		msgs = append(msgs, msg)
		i = stop
	}
	return msgs
}
