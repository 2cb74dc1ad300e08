package rnet

import "fmt"

// DecoderKind identifies which decoder claimed a frame.
type DecoderKind int

// Decoder kinds in dispatch priority order.
const (
	DecodeVolume DecoderKind = iota
	DecodePower
	DecodeSource
	DecodeZoneInfo
)

// String returns a short lower-case name.
func (k DecoderKind) String() string {
	switch k {
	case DecodeVolume:
		return "volume"
	case DecodePower:
		return "power"
	case DecodeSource:
		return "source"
	case DecodeZoneInfo:
		return "zone_info"
	default:
		return fmt.Sprintf("DecoderKind(%d)", int(k))
	}
}

// Frame signatures. Offsets match the command templates; a controller echoes
// set-commands back onto the bus in the same layout.
const (
	frameStart byte = 0xF0

	eventMinLen     = 22
	eventTypeOffset = 7
	eventType       = 0x05
	eventIDOffset   = 13

	eventVolume byte = 0x21
	eventPower  byte = 0x23
	eventSource byte = 0x3E

	zoneInfoMinLen = 33
)

// decoder is one entry in the fixed dispatch table.
type decoder struct {
	kind    DecoderKind
	matches func(Frame) bool
	decode  func(Frame) ZoneStateUpdate
}

// decoders is evaluated in order and stops at the first match.
var decoders = [...]decoder{
	{kind: DecodeVolume, matches: isEvent(eventVolume), decode: decodeVolume},
	{kind: DecodePower, matches: isEvent(eventPower), decode: decodePower},
	{kind: DecodeSource, matches: isEvent(eventSource), decode: decodeSource},
	{kind: DecodeZoneInfo, matches: isZoneInfo, decode: decodeZoneInfo},
}

// Decode runs a frame through the decoders in priority order.
//
// Returns false when no decoder claims the frame; unrecognised traffic is
// normal bus chatter and is not an error.
func Decode(f Frame) (ZoneStateUpdate, DecoderKind, bool) {
	for _, d := range decoders {
		if d.matches(f) {
			return d.decode(f), d.kind, true
		}
	}
	return ZoneStateUpdate{}, 0, false
}

func isEvent(id byte) func(Frame) bool {
	return func(f Frame) bool {
		return len(f) >= eventMinLen &&
			f[0] == frameStart &&
			f[eventTypeOffset] == eventType &&
			f[eventIDOffset] == id
	}
}

func decodeVolume(f Frame) ZoneStateUpdate {
	return ZoneStateUpdate{
		Zone:    zoneIDFromWire(f[1], f[17]),
		Changes: []StateChange{VolumeChange(f[15])},
	}
}

func decodePower(f Frame) ZoneStateUpdate {
	return ZoneStateUpdate{
		Zone:    zoneIDFromWire(f[1], f[5]),
		Changes: []StateChange{PowerChange(f[15] != 0)},
	}
}

func decodeSource(f Frame) ZoneStateUpdate {
	return ZoneStateUpdate{
		Zone:    zoneIDFromWire(f[1], f[5]),
		Changes: []StateChange{SourceChange(f[17])},
	}
}

// isZoneInfo matches the controller's reply to a ZoneInfo request.
func isZoneInfo(f Frame) bool {
	return len(f) >= zoneInfoMinLen &&
		f[0] == frameStart &&
		f[8] == 0x04 &&
		f[9] == 0x02 &&
		f[12] == 0x07 &&
		f[18] == 0x0C
}

func decodeZoneInfo(f Frame) ZoneStateUpdate {
	return ZoneStateUpdate{
		Zone:    zoneIDFromWire(f[4], f[11]),
		Changes: []StateChange{SnapshotChange(f[20] != 0, f[22], f[21])},
	}
}
