package sysex

import "fmt"

// PresetRequest asks the unit to dump a single preset (0 = current).
func PresetRequest(deviceID byte, number int) ([]byte, error) {
	if number < 0 || number > 90 {
		return nil, fmt.Errorf("preset number must be in range 0–90, got %d", number)
	}
	return Build(KindPresetRequest, deviceID, []byte{byte(number), 0x00})
}

// BankRequest asks the unit to dump all 60 user presets.
func BankRequest(deviceID byte) []byte {
	msg, _ := Build(KindBankRequest, deviceID, nil)
	return msg
}

// SystemRequest asks the unit to dump its global settings.
func SystemRequest(deviceID byte) []byte {
	msg, _ := Build(KindSystemRequest, deviceID, nil)
	return msg
}
