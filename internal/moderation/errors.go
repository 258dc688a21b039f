package moderation

import "errors"

// Domain errors reported back to the invoking moderator. Platform and
// storage failures are wrapped separately.
var (
	ErrNoMuteRole      = errors.New("no mute role has been set for this server")
	ErrNotMuted        = errors.New("user is not muted")
	ErrNotBanned       = errors.New("user is not banned")
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrNotFound is returned by Platform implementations when a
	// guild, member or ban record no longer exists.
	ErrNotFound = errors.New("not found")
)
