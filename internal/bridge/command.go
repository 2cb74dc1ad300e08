package bridge

import (
	"fmt"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// Command names accepted in addition to the rnet command kinds.
const (
	commandAllOn  = "all_on"
	commandAllOff = "all_off"

	// maxValue is the largest byte that can be sent in a data field.
	maxValue = 0x7F
)

// Command is a validated logical command ready for the bus.
type Command struct {
	Kind  rnet.CommandKind
	Zone  rnet.ZoneID
	Value byte

	// Name is the command name as requested, e.g. "all_on".
	Name string

	// ID and Source identify an operator command in the command log.
	// Commands without a Source (refresh queries) are not logged.
	ID     string
	Source string
}

// ResolveCommand validates a command by name and returns the logical
// command to send. value may be nil for zone_info, all_on and all_off.
//
// Returns ErrInvalidCommand, ErrInvalidValue or rnet.ErrInvalidZone.
func ResolveCommand(name string, controller, zoneNum int, value *int) (Command, error) {
	id, err := rnet.NewZoneID(controller, zoneNum)
	if err != nil {
		return Command{}, err
	}

	switch name {
	case commandAllOn:
		return Command{Kind: rnet.AllOnOff, Zone: id, Value: 1, Name: name}, nil
	case commandAllOff:
		return Command{Kind: rnet.AllOnOff, Zone: id, Value: 0, Name: name}, nil
	}

	kind, err := rnet.ParseCommandKind(name)
	if err != nil || kind == rnet.AllOnOff {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if kind == rnet.ZoneInfo {
		return Command{Kind: kind, Zone: id, Name: name}, nil
	}

	if value == nil {
		return Command{}, fmt.Errorf("%w: %s requires a value", ErrInvalidValue, name)
	}
	limit := maxValue
	if kind == rnet.PowerSet {
		limit = 1
	}
	if *value < 0 || *value > limit {
		return Command{}, fmt.Errorf("%w: %s must be 0-%d, got %d", ErrInvalidValue, name, limit, *value)
	}
	return Command{Kind: kind, Zone: id, Value: byte(*value), Name: name}, nil //nolint:gosec // range checked above
}
