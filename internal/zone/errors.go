package zone

import "errors"

// Domain errors for the zone package.
var (
	// ErrZoneNotFound is returned when a (controller, zone) pair is not registered.
	ErrZoneNotFound = errors.New("zone: not found")

	// ErrInvalidZone is returned when a controller or zone number is out of range.
	ErrInvalidZone = errors.New("zone: invalid")
)
