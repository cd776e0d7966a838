// Package game defines the table contract every concrete game implements,
// the seat and state-machine skeleton shared by all of them, and the registry
// that maps game keys to loadable implementations. The engine depends only on
// the Table interface, never on game internals: adding a new game means
// implementing Table (usually by embedding BaseTable) and registering a
// factory source.
package game

import (
	"table-game-server/internal/channel"
	"table-game-server/internal/player"
)

// State is the primary state of a table's state machine. Concrete games add
// their own named states between NeedPlayers and Finished; the four values
// below are universally recognized.
type State string

const (
	// StateSetup accepts configuration changes before players join.
	StateSetup State = "setup"

	// StateNeedPlayers accepts join/replace; the table leaves it on the
	// first tick after every required seat holds a connected occupant.
	StateNeedPlayers State = "need_players"

	// StatePlaying is the generic in-play state.
	StatePlaying State = "playing"

	// StateFinished is terminal. No further primary transitions occur and
	// the table becomes eligible for removal.
	StateFinished State = "finished"
)

// Table is one running instance of a game: seats, a backing channel, and a
// state machine, driven by participant commands and the periodic tick.
type Table interface {
	// Name returns the display form of the table name.
	Name() string

	// NormalizedName returns the unique lowercase key.
	NormalizedName() string

	// GameKey returns the registry key of the game this table runs.
	GameKey() string

	// State returns the primary state.
	State() State

	// Channel returns the table's broadcast channel. Seated players and
	// kibitzers are its subscribers.
	Channel() *channel.Channel

	// Seats returns the table's seats in fixed order.
	Seats() []*Seat

	// IsPrivate reports whether the table is hidden from public listings.
	IsPrivate() bool

	// IsActive reports whether every required seat holds a connected
	// occupant.
	IsActive() bool

	// Handle processes one complete command line from a participant.
	Handle(p player.Participant, command string)

	// Tick gives the table an opportunity for autonomous state advancement
	// (autostart, timed deals). Called at a fixed interval by the engine.
	Tick()

	// RemoveParticipant vacates any seat held by the participant, leaving
	// an absentee trace. Idempotent.
	RemoveParticipant(p player.Participant)

	// Terminate forces the state machine to Finished, attributing the
	// termination to the participant.
	Terminate(p player.Participant)
}

// Env is everything a factory needs to build a table. The channel is owned
// by the new table; the roster resolves player names for seat replacement.
type Env struct {
	Name    string
	GameKey string
	Channel *channel.Channel
	Roster  player.Roster
}

// Factory builds one table instance.
type Factory func(env Env) (Table, error)

// FactorySource resolves a Factory from wherever the implementation lives.
// The registry re-invokes it on reload; keeping the source around is what
// makes in-place reload possible without restarting the server. Tables
// already built from a previous factory keep running on it.
type FactorySource func() (Factory, error)
