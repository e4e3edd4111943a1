package sysex

// Checksum sums b and keeps the low 7 bits.
func Checksum(b []byte) byte {
	var chk byte
	for _, v := range b {
		chk = (chk + v) & 0x7F
	}
	return chk
}

// ChecksumRange returns the covered byte range [start, end) and the offset of
// the stored checksum byte for kinds that carry one.
func ChecksumRange(k Kind) (start, end, at int, ok bool) {
	switch k {
	case KindPreset:
		return 8, 518, 518, true
	case KindSystem:
		return 8, 524, 524, true
	}
	return 0, 0, 0, false
}

// ComputeChecksum returns the checksum msg should carry.
func ComputeChecksum(k Kind, msg []byte) (byte, bool) {
	start, end, _, ok := ChecksumRange(k)
	if !ok || len(msg) < end {
		return 0, false
	}
	return Checksum(msg[start:end]), true
}

// UpdateChecksum recomputes and stores the checksum in place.
func UpdateChecksum(k Kind, msg []byte) {
	chk, ok := ComputeChecksum(k, msg)
	if !ok {
		return
	}
	_, _, at, _ := ChecksumRange(k)
	msg[at] = chk
}

// VerifyChecksum returns a *ChecksumError when the stored byte disagrees.
func VerifyChecksum(k Kind, msg []byte) error {
	chk, ok := ComputeChecksum(k, msg)
	if !ok {
		return nil
	}
	_, _, at, _ := ChecksumRange(k)
	if msg[at] != chk {
		return &ChecksumError{Kind: k, Offset: at, Expected: chk, Actual: msg[at]}
	}
	return nil
}

// PresetChecksum is the checksum of a preset dump, bytes 8 to 517.
func PresetChecksum(msg []byte) byte {
	chk, _ := ComputeChecksum(KindPreset, msg)
	return chk
}

// SystemChecksum is the checksum of a system dump, bytes 8 to 523.
func SystemChecksum(msg []byte) byte {
	chk, _ := ComputeChecksum(KindSystem, msg)
	return chk
}
