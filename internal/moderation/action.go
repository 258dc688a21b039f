package moderation

import (
	"fmt"
	"strconv"
)

// Action is the kind of a moderation log entry.
type Action string

const (
	ActionWarn    Action = "warn"
	ActionKick    Action = "kick"
	ActionMute    Action = "mute"
	ActionBan     Action = "ban"
	ActionUnmute  Action = "unmute"
	ActionUnban   Action = "unban"
	ActionModnote Action = "modnote"
)

// PermanentDuration marks a mute or ban with no expiry.
const PermanentDuration int64 = -1

// ParseDuration converts arguments like "30m", "2h" or "7d" into
// minutes.
func ParseDuration(arg string) (int64, error) {
	if len(arg) < 2 {
		return 0, fmt.Errorf("%w: %q, expected eg 30m, 2h or 7d", ErrInvalidDuration, arg)
	}
	value, err := strconv.ParseInt(arg[:len(arg)-1], 10, 64)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("%w: value must be a positive integer, eg 7d", ErrInvalidDuration)
	}
	switch arg[len(arg)-1] {
	case 'm', 'M':
		return value, nil
	case 'h', 'H':
		return value * 60, nil
	case 'd', 'D':
		return value * 1440, nil
	default:
		return 0, fmt.Errorf("%w: unit must be 'm', 'h' or 'd', eg 7d", ErrInvalidDuration)
	}
}
