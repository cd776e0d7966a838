// Package player defines the participant boundary between the game engine
// and the identity/transport layers. The engine only ever sees this interface;
// how a participant is authenticated and how its output is flushed belong to
// the transport.
package player

// Participant is one connected user as seen by the engine.
//
// ID is stable for the lifetime of a session. Send must never block: the
// engine runs on a single goroutine, and a slow client must not stall it.
type Participant interface {
	// ID returns the stable session identifier.
	ID() string

	// Name returns the current display name.
	Name() string

	// Send queues a line of text for delivery to the participant.
	Send(text string)

	// IsAdmin reports whether the participant holds admin privilege.
	IsAdmin() bool
}

// Roster resolves display names to connected participants. The engine
// implements it; tables use it for commands that name another player,
// such as seat replacement.
type Roster interface {
	// Find returns the connected participant with the given display name,
	// matched case-insensitively.
	Find(name string) (Participant, bool)
}
