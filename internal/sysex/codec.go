// Package sysex implements the Nova System wire format: the 4-byte parameter
// codec, the 7-bit checksum, message framing and request builders.
package sysex

import "fmt"

// Encoding selects how a signed parameter maps onto its unsigned wire value.
type Encoding int

const (
	Unsigned Encoding = iota
	// LargeOffset stores negative values as value+2^24 (24-bit sign extension).
	// Other values are written as is; value+2^24 still decodes for them.
	LargeOffset
	// SimpleOffset stores the distance from the range minimum.
	SimpleOffset
)

// LargeOffsetBase is the offset added to negative large-offset values.
const LargeOffsetBase = 1 << 24

// ValueWidth is the number of bytes occupied by one parameter.
const ValueWidth = 4

const maxRaw = 1<<28 - 1

func (e Encoding) String() string {
	switch e {
	case Unsigned:
		return "unsigned"
	case LargeOffset:
		return "large-offset"
	case SimpleOffset:
		return "simple-offset"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Decode4 reads a 28-bit little-endian value packed 7 bits per byte.
func Decode4(buf []byte, off int) int {
	b := buf[off : off+ValueWidth]
	return int(b[0]&0x7F) | int(b[1]&0x7F)<<7 | int(b[2]&0x7F)<<14 | int(b[3]&0x7F)<<21
}

// Encode4 writes raw as four 7-bit bytes. Bits above 28 are discarded.
func Encode4(buf []byte, off int, raw int) {
	raw &= maxRaw
	buf[off] = byte(raw & 0x7F)
	buf[off+1] = byte((raw >> 7) & 0x7F)
	buf[off+2] = byte((raw >> 14) & 0x7F)
	buf[off+3] = byte((raw >> 21) & 0x7F)
}

// ToValue converts a raw wire value into a parameter value.
func (e Encoding) ToValue(raw, min int) int {
	switch e {
	case LargeOffset:
		if raw >= LargeOffsetBase/2 {
			return raw - LargeOffsetBase
		}
		return raw
	case SimpleOffset:
		return raw + min
	}
	return raw
}

// ToRaw is the inverse of ToValue.
func (e Encoding) ToRaw(value, min int) int {
	switch e {
	case LargeOffset:
		if value < 0 {
			return value + LargeOffsetBase
		}
		return value
	case SimpleOffset:
		return value - min
	}
	return value
}

// DecodeValue reads the parameter at off using encoding e.
func DecodeValue(buf []byte, off int, e Encoding, min int) int {
	return e.ToValue(Decode4(buf, off), min)
}

// EncodeValue writes value at off using encoding e.
func EncodeValue(buf []byte, off int, e Encoding, min, value int) {
	Encode4(buf, off, e.ToRaw(value, min))
}
