package sysex

import "testing"

func TestEncodeDecode4(t *testing.T) {
	tests := []int{0, 1, 127, 128, 500, 3000, 16383, 1 << 21, LargeOffsetBase - 12, 1<<28 - 1}
	for _, v := range tests {
		buf := make([]byte, 6)
		Encode4(buf, 1, v)
		for i, b := range buf[1:5] {
			if b > 0x7F {
				t.Fatalf("value %d: byte %d has top bit set: 0x%02X", v, i, b)
			}
		}
		if got := Decode4(buf, 1); got != v {
			t.Errorf("Decode4(Encode4(%d)) = %d", v, got)
		}
	}
}

func TestDecode4LittleEndian(t *testing.T) {
	buf := []byte{0x74, 0x03, 0x00, 0x00}
	if got := Decode4(buf, 0); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		enc      Encoding
		min, max int
	}{
		{"comp level", LargeOffset, -12, 12},
		{"reverb hi level", LargeOffset, -25, 25},
		{"mod feedback", LargeOffset, -100, 100},
		{"delay offset", LargeOffset, -200, 200},
		{"level out", SimpleOffset, -100, 0},
		{"comp threshold", SimpleOffset, -30, 0},
		{"gate threshold", SimpleOffset, -60, 0},
		{"asymmetric", SimpleOffset, -30, 20},
		{"unsigned", Unsigned, 0, 1800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 4)
			for v := tt.min; v <= tt.max; v++ {
				EncodeValue(buf, 0, tt.enc, tt.min, v)
				if got := DecodeValue(buf, 0, tt.enc, tt.min); got != v {
					t.Fatalf("round trip of %d returned %d", v, got)
				}
			}
		})
	}
}

func TestLargeOffsetWireValues(t *testing.T) {
	buf := make([]byte, 4)
	EncodeValue(buf, 0, LargeOffset, -12, -12)
	if raw := Decode4(buf, 0); raw != LargeOffsetBase-12 {
		t.Fatalf("expected raw %d, got %d", LargeOffsetBase-12, raw)
	}
	if got := DecodeValue(buf, 0, LargeOffset, -12); got != -12 {
		t.Fatalf("expected -12, got %d", got)
	}

	EncodeValue(buf, 0, LargeOffset, -12, 7)
	if raw := Decode4(buf, 0); raw != 7 {
		t.Fatalf("positive values are stored directly, got raw %d", raw)
	}
}

func TestLargeOffsetDecodesBothPositiveForms(t *testing.T) {
	buf := make([]byte, 4)
	for _, raw := range []int{12, LargeOffsetBase + 12} {
		Encode4(buf, 0, raw)
		if got := DecodeValue(buf, 0, LargeOffset, -12); got != 12 {
			t.Errorf("raw %d decoded as %d, want 12", raw, got)
		}
	}

	EncodeValue(buf, 0, LargeOffset, -12, 12)
	if raw := Decode4(buf, 0); raw != 12 {
		t.Errorf("+12 written as raw %d", raw)
	}
}

func TestSimpleOffsetWireValues(t *testing.T) {
	buf := make([]byte, 4)
	EncodeValue(buf, 0, SimpleOffset, -100, -100)
	if raw := Decode4(buf, 0); raw != 0 {
		t.Fatalf("minimum must encode as 0, got %d", raw)
	}
	if got := DecodeValue(buf, 0, SimpleOffset, -100); got != -100 {
		t.Fatalf("expected -100, got %d", got)
	}
	EncodeValue(buf, 0, SimpleOffset, -100, 0)
	if raw := Decode4(buf, 0); raw != 100 {
		t.Fatalf("expected raw 100, got %d", raw)
	}
}
