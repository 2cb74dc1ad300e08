package rnet

import (
	"fmt"
	"strings"
)

// CommandKind identifies one logical RNet command.
type CommandKind int

// Command kinds supported by the encoder.
const (
	// VolumeSet sets a zone's volume (raw 0-50).
	VolumeSet CommandKind = iota

	// PowerSet turns a zone on (1) or off (0).
	PowerSet

	// SourceSet selects a zone's source (0-based source index).
	SourceSet

	// BassSet sets a zone's bass level.
	BassSet

	// ZoneInfo requests a full zone snapshot. The controller answers
	// with a zone-info message decoded by the zone-info decoder.
	ZoneInfo

	// AllOnOff switches every zone on (1) or off (0).
	AllOnOff
)

var commandKindNames = map[CommandKind]string{
	VolumeSet: "volume",
	PowerSet:  "power",
	SourceSet: "source",
	BassSet:   "bass",
	ZoneInfo:  "zone_info",
	AllOnOff:  "all_on_off",
}

// String returns the command's configuration/MQTT name.
func (k CommandKind) String() string {
	if name, ok := commandKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// ParseCommandKind parses a name produced by String.
func ParseCommandKind(s string) (CommandKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for kind, n := range commandKindNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// valueMode selects how a template writes its value.
type valueMode int

const (
	// valueAtOffset writes the value byte at a single offset.
	valueAtOffset valueMode = iota

	// valueAllOnOff writes 1 to the all-on offset for value 1 and 0 to the
	// all-off offset for value 0. Any other value leaves both untouched.
	valueAllOnOff
)

// Template is an immutable command byte pattern plus the offsets patched
// for each invocation. Encode always works on a copy.
type Template struct {
	kind              CommandKind
	bytes             []byte
	zoneOffsets       []int
	controllerOffsets []int
	mode              valueMode
	valueOffset       int
	allOnOffset       int
	allOffOffset      int
}

// NewTemplate creates a template that writes its value at valueOffset.
//
// Returns ErrTemplateOffset if any offset lies outside the template.
func NewTemplate(kind CommandKind, bytes []byte, controllerOffsets, zoneOffsets []int, valueOffset int) (Template, error) {
	t := Template{
		kind:              kind,
		bytes:             cloneBytes(bytes),
		zoneOffsets:       cloneInts(zoneOffsets),
		controllerOffsets: cloneInts(controllerOffsets),
		mode:              valueAtOffset,
		valueOffset:       valueOffset,
	}
	if err := t.validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// newAllOnOffTemplate creates the all-on/all-off template, which encodes
// its boolean intent into two different offsets.
func newAllOnOffTemplate(bytes []byte, controllerOffsets, zoneOffsets []int, allOnOffset, allOffOffset int) (Template, error) {
	t := Template{
		kind:              AllOnOff,
		bytes:             cloneBytes(bytes),
		zoneOffsets:       cloneInts(zoneOffsets),
		controllerOffsets: cloneInts(controllerOffsets),
		mode:              valueAllOnOff,
		allOnOffset:       allOnOffset,
		allOffOffset:      allOffOffset,
	}
	if err := t.validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

func (t Template) validate() error {
	check := func(what string, off int) error {
		if off < 0 || off >= len(t.bytes) {
			return fmt.Errorf("%w: %s %s offset %d, template length %d",
				ErrTemplateOffset, t.kind, what, off, len(t.bytes))
		}
		return nil
	}

	for _, off := range t.zoneOffsets {
		if err := check("zone", off); err != nil {
			return err
		}
	}
	for _, off := range t.controllerOffsets {
		if err := check("controller", off); err != nil {
			return err
		}
	}

	switch t.mode {
	case valueAllOnOff:
		if err := check("all-on", t.allOnOffset); err != nil {
			return err
		}
		return check("all-off", t.allOffOffset)
	default:
		return check("value", t.valueOffset)
	}
}

// Kind returns the command kind this template encodes.
func (t Template) Kind() CommandKind {
	return t.kind
}

// Len returns the unterminated template length.
func (t Template) Len() int {
	return len(t.bytes)
}

// Encode patches a copy of the template for the given zone and value.
//
// The result is unterminated; pass it to FinalizeFrame before sending.
func (t Template) Encode(zone ZoneID, value byte) []byte {
	out := cloneBytes(t.bytes)

	for _, off := range t.zoneOffsets {
		out[off] = zone.wireZone()
	}
	for _, off := range t.controllerOffsets {
		out[off] = zone.wireController()
	}

	switch t.mode {
	case valueAllOnOff:
		// The on and off flags live at different offsets; this mirrors
		// captured controller traffic and must not be made symmetric.
		switch value {
		case 1:
			out[t.allOnOffset] = 1
		case 0:
			out[t.allOffOffset] = 0
		}
	default:
		out[t.valueOffset] = value
	}

	return out
}

// Built-in RNet command templates. Offsets were taken from captured
// keypad traffic; see TemplateFor.
var templates = map[CommandKind]Template{
	VolumeSet: mustTemplate(NewTemplate(VolumeSet,
		[]byte{0xF0, 0x00, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x05, 0x02, 0x02,
			0x00, 0x00, 0xF1, 0x21, 0x00, 0x12, 0x00, 0x00, 0x00, 0x01},
		[]int{1, 4}, []int{17}, 15)),

	PowerSet: mustTemplate(NewTemplate(PowerSet,
		[]byte{0xF0, 0x00, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x05, 0x02, 0x02,
			0x00, 0x00, 0xF1, 0x23, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01},
		[]int{1, 4}, []int{5, 17}, 15)),

	SourceSet: mustTemplate(NewTemplate(SourceSet,
		[]byte{0xF0, 0x00, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x05, 0x02, 0x00,
			0x00, 0x00, 0xF1, 0x3E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		[]int{1, 4}, []int{5}, 17)),

	BassSet: mustTemplate(NewTemplate(BassSet,
		[]byte{0xF0, 0x00, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x00, 0x05, 0x02,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01,
			0x00, 0x01},
		[]int{1, 4}, []int{5, 11}, 21)),

	ZoneInfo: mustTemplate(NewTemplate(ZoneInfo,
		[]byte{0xF0, 0x00, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x01, 0x04, 0x02,
			0x00, 0x00, 0x07, 0x00, 0x00},
		[]int{1}, []int{11}, 2)),

	AllOnOff: mustTemplate(newAllOnOffTemplate(
		[]byte{0xF0, 0x7E, 0x00, 0x7F, 0x00, 0x00, 0x70, 0x05, 0x02, 0x02,
			0x00, 0x00, 0xF1, 0x22, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		[]int{5}, []int{4}, 16, 15)),
}

// mustTemplate panics on an invalid built-in template so a bad offset
// fails at startup rather than on first use.
func mustTemplate(t Template, err error) Template {
	if err != nil {
		panic(err)
	}
	return t
}

// TemplateFor returns the built-in template for a command kind.
func TemplateFor(kind CommandKind) (Template, error) {
	t, ok := templates[kind]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownCommand, kind)
	}
	return t, nil
}

// Encode produces the unterminated bytes for a logical command.
func Encode(kind CommandKind, zone ZoneID, value byte) ([]byte, error) {
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	t, err := TemplateFor(kind)
	if err != nil {
		return nil, err
	}
	return t.Encode(zone, value), nil
}

// BuildCommand produces a complete, checksummed frame ready to send.
func BuildCommand(kind CommandKind, zone ZoneID, value byte) ([]byte, error) {
	data, err := Encode(kind, zone, value)
	if err != nil {
		return nil, err
	}
	return FinalizeFrame(data), nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneInts(v []int) []int {
	out := make([]int, len(v))
	copy(out, v)
	return out
}
