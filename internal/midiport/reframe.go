package midiport

import "novamcp/internal/sysex"

// Reframe normalizes a SysEx message delivered by a driver: a missing end
// byte is appended and duplicated end bytes are dropped. ok is false when
// raw does not start a SysEx message.
func Reframe(raw []byte) (msg []byte, ok bool) {
	if len(raw) == 0 || raw[0] != sysex.Start {
		return nil, false
	}
	end := len(raw)
	for end > 1 && raw[end-1] == sysex.End {
		end--
	}
	msg = make([]byte, end+1)
	copy(msg, raw[:end])
	msg[end] = sysex.End
	return msg, true
}
