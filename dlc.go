package xcubus

import "errors"

// dlcToLen maps a 4-bit CAN FD data length code to the payload byte
// count it selects.
var dlcToLen = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// MaxDataLen is the largest payload the length code table can express.
const MaxDataLen = 64

var (
	ErrInvalidDLC    = errors.New("xcubus: invalid length code")
	ErrInvalidLength = errors.New("xcubus: length is not a valid FD payload size")
)

// LengthToBytes returns the payload byte count selected by the given
// length code. Codes outside [0,15] fail with ErrInvalidDLC.
func LengthToBytes(code uint8) (int, error) {
	if int(code) >= len(dlcToLen) {
		return 0, ErrInvalidDLC
	}
	return dlcToLen[code], nil
}

// DLCForLength returns the length code whose table entry equals n.
// Lengths with no code (e.g. 9, 13) fail with ErrInvalidLength.
func DLCForLength(n int) (uint8, error) {
	for code, l := range dlcToLen {
		if l == n {
			return uint8(code), nil
		}
	}
	return 0, ErrInvalidLength
}
