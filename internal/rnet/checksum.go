package rnet

// Terminator is the end-of-message byte closing every RNet frame.
const Terminator byte = 0xF7

// Checksum computes the RNet checksum over an unterminated message.
//
// The checksum is the sum of all bytes plus the byte count, masked to
// seven bits. Any input, including an empty slice, is valid.
func Checksum(data []byte) byte {
	sum := len(data)
	for _, b := range data {
		sum += int(b)
	}
	return byte(sum & 0x7F) //nolint:gosec // masked to 7 bits
}

// FinalizeFrame returns a copy of data with the checksum and terminator
// appended. The input slice is not modified.
func FinalizeFrame(data []byte) []byte {
	frame := make([]byte, len(data), len(data)+2) //nolint:mnd // checksum + terminator
	copy(frame, data)
	return append(frame, Checksum(data), Terminator)
}
