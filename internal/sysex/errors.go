package sysex

import "fmt"

// FramingError reports the first envelope check a message failed.
type FramingError struct {
	Kind     Kind
	Check    string
	Offset   int
	Expected int
	Actual   int
}

func (e *FramingError) Error() string {
	if e.Check == "length" {
		return fmt.Sprintf("%s: invalid length: expected %d bytes, got %d", e.Kind, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: invalid %s at byte %d: expected 0x%02X, got 0x%02X",
		e.Kind, e.Check, e.Offset, e.Expected, e.Actual)
}

// ChecksumError is a soft failure: the message is still decodable.
type ChecksumError struct {
	Kind     Kind
	Offset   int
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch at byte %d: computed 0x%02X, stored 0x%02X",
		e.Kind, e.Offset, e.Expected, e.Actual)
}
