package rnet

import "fmt"

// ChangeKind identifies which attribute a StateChange carries.
type ChangeKind int

// State change kinds.
const (
	ChangePower ChangeKind = iota
	ChangeVolume
	ChangeSource

	// ChangeSnapshot carries power, volume and source together, as
	// reported by a zone-info response.
	ChangeSnapshot
)

// String returns a short lower-case name.
func (k ChangeKind) String() string {
	switch k {
	case ChangePower:
		return "power"
	case ChangeVolume:
		return "volume"
	case ChangeSource:
		return "source"
	case ChangeSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// StateChange is one attribute change decoded from the bus. Only the
// fields relevant to Kind are meaningful.
type StateChange struct {
	Kind   ChangeKind
	Power  bool
	Volume byte
	Source byte
}

// PowerChange creates a power change.
func PowerChange(on bool) StateChange {
	return StateChange{Kind: ChangePower, Power: on}
}

// VolumeChange creates a volume change.
func VolumeChange(v byte) StateChange {
	return StateChange{Kind: ChangeVolume, Volume: v}
}

// SourceChange creates a source change.
func SourceChange(s byte) StateChange {
	return StateChange{Kind: ChangeSource, Source: s}
}

// SnapshotChange creates a full-state change.
func SnapshotChange(on bool, volume, source byte) StateChange {
	return StateChange{Kind: ChangeSnapshot, Power: on, Volume: volume, Source: source}
}

// String formats the change for logs, e.g. "volume=20".
func (c StateChange) String() string {
	switch c.Kind {
	case ChangePower:
		return fmt.Sprintf("power=%t", c.Power)
	case ChangeVolume:
		return fmt.Sprintf("volume=%d", c.Volume)
	case ChangeSource:
		return fmt.Sprintf("source=%d", c.Source)
	case ChangeSnapshot:
		return fmt.Sprintf("power=%t volume=%d source=%d", c.Power, c.Volume, c.Source)
	default:
		return c.Kind.String()
	}
}

// ZoneStateUpdate is the decoded result of one inbound frame.
type ZoneStateUpdate struct {
	Zone    ZoneID
	Changes []StateChange
}
