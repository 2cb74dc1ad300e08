package rnet

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoneID identifies a zone on the RNet bus by controller and zone number.
//
// Both numbers are 1-based in application code and 0-based on the wire.
// ZoneID is a comparable value and can be used as a map key.
type ZoneID struct {
	Controller int
	Zone       int
}

// Address limits. Data bytes above 0x7F collide with RNet control bytes
// (0xF0 start, 0xF1 invert, 0xF7 end) and cannot be sent unescaped.
const (
	minAddress = 1
	maxAddress = 0x7F + 1

	// zoneIDParts is the number of parts in a "controller:zone" string.
	zoneIDParts = 2
)

// NewZoneID creates a validated ZoneID.
//
// Returns ErrInvalidZone if either number is outside 1-128.
func NewZoneID(controller, zone int) (ZoneID, error) {
	z := ZoneID{Controller: controller, Zone: zone}
	if err := z.Validate(); err != nil {
		return ZoneID{}, err
	}
	return z, nil
}

// ParseZoneID parses the "controller:zone" form produced by String.
//
// Example:
//
//	z, err := rnet.ParseZoneID("1:4")
func ParseZoneID(s string) (ZoneID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != zoneIDParts {
		return ZoneID{}, fmt.Errorf("%w: expected controller:zone, got %q", ErrInvalidZone, s)
	}

	controller, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return ZoneID{}, fmt.Errorf("%w: controller %q is not a number", ErrInvalidZone, parts[0])
	}
	zone, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ZoneID{}, fmt.Errorf("%w: zone %q is not a number", ErrInvalidZone, parts[1])
	}

	return NewZoneID(controller, zone)
}

// Validate reports whether both numbers can be encoded on the wire.
func (z ZoneID) Validate() error {
	if z.Controller < minAddress || z.Controller > maxAddress {
		return fmt.Errorf("%w: controller must be %d-%d, got %d", ErrInvalidZone, minAddress, maxAddress, z.Controller)
	}
	if z.Zone < minAddress || z.Zone > maxAddress {
		return fmt.Errorf("%w: zone must be %d-%d, got %d", ErrInvalidZone, minAddress, maxAddress, z.Zone)
	}
	return nil
}

// String returns the zone in "controller:zone" form, e.g. "1:4".
func (z ZoneID) String() string {
	return fmt.Sprintf("%d:%d", z.Controller, z.Zone)
}

// wireController returns the zero-based controller byte.
func (z ZoneID) wireController() byte {
	return byte(z.Controller - 1) //nolint:gosec // validated to 1-128
}

// wireZone returns the zero-based zone byte.
func (z ZoneID) wireZone() byte {
	return byte(z.Zone - 1) //nolint:gosec // validated to 1-128
}

// zoneIDFromWire converts zero-based wire bytes back to a ZoneID.
func zoneIDFromWire(controller, zone byte) ZoneID {
	return ZoneID{Controller: int(controller) + 1, Zone: int(zone) + 1}
}
