package zone

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// Zone is a controller zone known to the bridge.
type Zone struct {
	Controller int       `json:"controller"`
	Zone       int       `json:"zone"`
	Name       string    `json:"name"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ID returns the zone's bus address.
func (z Zone) ID() rnet.ZoneID {
	return rnet.ZoneID{Controller: z.Controller, Zone: z.Zone}
}

// Validate checks the address range.
func (z Zone) Validate() error {
	if err := z.ID().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidZone, err)
	}
	return nil
}

// State is the last-known zone state. Nil fields have not been reported yet.
type State struct {
	Power     *bool      `json:"power,omitempty"`
	Volume    *int       `json:"volume,omitempty"`
	Source    *int       `json:"source,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Apply returns a copy of s with changes merged in. UpdatedAt is set to
// now only when a value actually changed; changed reports whether it did.
func (s State) Apply(changes []rnet.StateChange, now time.Time) (next State, changed bool) {
	next = s.Clone()
	for _, c := range changes {
		switch c.Kind {
		case rnet.ChangePower:
			changed = setBool(&next.Power, c.Power) || changed
		case rnet.ChangeVolume:
			changed = setInt(&next.Volume, int(c.Volume)) || changed
		case rnet.ChangeSource:
			changed = setInt(&next.Source, int(c.Source)) || changed
		case rnet.ChangeSnapshot:
			changed = setBool(&next.Power, c.Power) || changed
			changed = setInt(&next.Volume, int(c.Volume)) || changed
			changed = setInt(&next.Source, int(c.Source)) || changed
		}
	}
	if changed {
		t := now.UTC()
		next.UpdatedAt = &t
	}
	return next, changed
}

// Clone returns a deep copy.
func (s State) Clone() State {
	var c State
	if s.Power != nil {
		v := *s.Power
		c.Power = &v
	}
	if s.Volume != nil {
		v := *s.Volume
		c.Volume = &v
	}
	if s.Source != nil {
		v := *s.Source
		c.Source = &v
	}
	if s.UpdatedAt != nil {
		v := *s.UpdatedAt
		c.UpdatedAt = &v
	}
	return c
}

// IsEmpty reports whether nothing has been reported for the zone.
func (s State) IsEmpty() bool {
	return s.Power == nil && s.Volume == nil && s.Source == nil
}

func setBool(dst **bool, v bool) bool {
	if *dst != nil && **dst == v {
		return false
	}
	*dst = &v
	return true
}

func setInt(dst **int, v int) bool {
	if *dst != nil && **dst == v {
		return false
	}
	*dst = &v
	return true
}
