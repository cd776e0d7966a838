package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"table-game-server/internal/channel"
	"table-game-server/internal/player"
)

// Errors for seat management. They carry the specific user-facing reason;
// handlers send the text straight to the participant.
var (
	ErrAlreadySeated = errors.New("you already hold a seat at this table")
	ErrTableFull     = errors.New("no free seat at this table")
	ErrUnknownSeat   = errors.New("no such seat")
	ErrSeatTaken     = errors.New("that seat is already taken")
	ErrNotSeated     = errors.New("you do not hold a seat at this table")
	ErrNotYourTurn   = errors.New("it is not your turn")
	ErrUnknownPlayer = errors.New("no such player connected")
)

// BaseTable is the skeleton every concrete game embeds: seats, the state
// machine, the backing channel, and the shared command handler. Games layer
// their own grammar on top and fall back to HandleCommon for everything they
// do not recognize.
type BaseTable struct {
	name       string
	normalized string
	gameKey    string
	ch         *channel.Channel
	roster     player.Roster

	seats    []*Seat
	state    State
	substate string
	private  bool
	turn     int

	// ConfigSummary, when set by the game, renders the current table
	// configuration for show_config.
	ConfigSummary func() string
}

// NewBase creates the shared skeleton with one required seat per name,
// starting in NeedPlayers. Games that want a configuration phase call
// SetState(StateSetup) afterwards.
func NewBase(env Env, seatNames ...string) *BaseTable {
	b := &BaseTable{
		name:       env.Name,
		normalized: channel.Normalize(env.Name),
		gameKey:    env.GameKey,
		ch:         env.Channel,
		roster:     env.Roster,
		state:      StateNeedPlayers,
	}
	for _, name := range seatNames {
		b.seats = append(b.seats, &Seat{DisplayName: name, Required: true})
	}
	return b
}

// Name returns the display form of the table name.
func (b *BaseTable) Name() string { return b.name }

// NormalizedName returns the unique lowercase key.
func (b *BaseTable) NormalizedName() string { return b.normalized }

// GameKey returns the registry key of the game this table runs.
func (b *BaseTable) GameKey() string { return b.gameKey }

// Channel returns the table's broadcast channel.
func (b *BaseTable) Channel() *channel.Channel { return b.ch }

// Seats returns the seats in fixed order.
func (b *BaseTable) Seats() []*Seat { return b.seats }

// IsPrivate reports whether the table is hidden from public listings.
func (b *BaseTable) IsPrivate() bool { return b.private }

// State returns the primary state.
func (b *BaseTable) State() State { return b.state }

// Substate returns the secondary substate, empty if unset.
func (b *BaseTable) Substate() string { return b.substate }

// SetState transitions the primary state and clears the substate.
// Finished is terminal: further transitions are ignored.
func (b *BaseTable) SetState(s State) {
	if b.state == StateFinished {
		return
	}
	b.state = s
	b.substate = ""
}

// SetSubstate sets the secondary substate within the current primary state.
func (b *BaseTable) SetSubstate(s string) {
	b.substate = s
}

// IsActive reports whether every required seat holds a connected occupant.
// It is derived, never cached, so it is correct after any join, leave, or
// replace without bookkeeping.
func (b *BaseTable) IsActive() bool {
	for _, s := range b.seats {
		if s.Required && !s.Occupied() {
			return false
		}
	}
	return true
}

// AddSeat appends a seat, for games with unbounded player counts.
func (b *BaseTable) AddSeat(name string, required bool) *Seat {
	s := &Seat{DisplayName: name, Required: required}
	b.seats = append(b.seats, s)
	return s
}

// Seat returns the seat with the given display name, case-insensitively.
func (b *BaseTable) Seat(name string) (*Seat, bool) {
	for _, s := range b.seats {
		if strings.EqualFold(s.DisplayName, name) {
			return s, true
		}
	}
	return nil, false
}

// SeatOf returns the seat held by the participant, if any. At most one seat
// per table holds a given participant.
func (b *BaseTable) SeatOf(p player.Participant) (*Seat, bool) {
	for _, s := range b.seats {
		if s.Occupant != nil && s.Occupant.ID() == p.ID() {
			return s, true
		}
	}
	return nil, false
}

// Join seats the participant, in the named seat or the first free one when
// seatName is empty, and subscribes them to the table channel.
func (b *BaseTable) Join(p player.Participant, seatName string) error {
	if _, ok := b.SeatOf(p); ok {
		return ErrAlreadySeated
	}

	var target *Seat
	if seatName != "" {
		s, ok := b.Seat(seatName)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSeat, seatName)
		}
		if s.Occupied() {
			return fmt.Errorf("%w: %s", ErrSeatTaken, s.DisplayName)
		}
		target = s
	} else {
		for _, s := range b.seats {
			if !s.Occupied() {
				target = s
				break
			}
		}
		if target == nil {
			return ErrTableFull
		}
	}

	target.Sit(p)
	if !b.ch.IsConnected(p) {
		_ = b.ch.Connect(p, b.ch.Key)
	}
	b.Broadcastf("%s takes seat %s.", p.Name(), target.DisplayName)
	return nil
}

// Leave vacates the participant's seat without an absentee trace.
func (b *BaseTable) Leave(p player.Participant) error {
	s, ok := b.SeatOf(p)
	if !ok {
		return ErrNotSeated
	}
	s.Clear()
	b.Broadcastf("%s stands up from seat %s.", p.Name(), s.DisplayName)
	return nil
}

// Replace puts the named connected player into a seat, whether it is empty,
// absentee-held, or occupied. The incoming player may not already hold
// another seat here.
func (b *BaseTable) Replace(seatName, playerName string) error {
	s, ok := b.Seat(seatName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSeat, seatName)
	}
	np, ok := b.roster.Find(playerName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, playerName)
	}
	if held, ok := b.SeatOf(np); ok && held != s {
		return fmt.Errorf("%s already holds seat %s", np.Name(), held.DisplayName)
	}

	previous := s.OccupantLabel()
	s.Sit(np)
	if !b.ch.IsConnected(np) {
		_ = b.ch.Connect(np, b.ch.Key)
	}
	b.Broadcastf("%s replaces %s in seat %s.", np.Name(), previous, s.DisplayName)
	return nil
}

// RemoveParticipant vacates any seat the participant holds, leaving the
// absentee trace. Safe to call for a participant with no seat.
func (b *BaseTable) RemoveParticipant(p player.Participant) {
	s, ok := b.SeatOf(p)
	if !ok {
		return
	}
	s.Vacate()
	b.Broadcastf("%s is absent from seat %s.", p.Name(), s.DisplayName)
	log.Debug().
		Str("component", "table").
		Str("table", b.name).
		Str("participant", p.Name()).
		Str("seat", s.DisplayName).
		Msg("seat vacated by disconnect")
}

// Terminate forces the state machine to Finished with an attributed notice.
func (b *BaseTable) Terminate(p player.Participant) {
	if b.state == StateFinished {
		return
	}
	b.Broadcastf("Table %s terminated by %s.", b.name, p.Name())
	b.SetState(StateFinished)
	log.Info().
		Str("component", "table").
		Str("table", b.name).
		Str("participant", p.Name()).
		Msg("table terminated")
}

// Tick is the default autonomous-transition hook: a no-op. Games override it
// for autostart and timed behavior.
func (b *BaseTable) Tick() {}

// Handle is the default command entry point: only the shared verbs.
// Games embedding BaseTable replace it with their own dispatch and call
// Fallback for anything they do not recognize.
func (b *BaseTable) Handle(p player.Participant, command string) {
	verb, args := SplitCommand(command)
	b.Fallback(p, verb, args)
}

// Fallback runs the shared handler and reports an invalid command when the
// verb is unknown there too.
func (b *BaseTable) Fallback(p player.Participant, verb string, args []string) {
	if !b.HandleCommon(p, verb, args) {
		p.Send(fmt.Sprintf("Invalid command %q at table %s.", verb, b.name))
	}
}

// SplitCommand separates a command line into its lowercase verb and the
// remaining argument tokens.
func SplitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// HandleCommon dispatches the verbs every table understands. Returns false
// when the verb is not one of them.
func (b *BaseTable) HandleCommon(p player.Participant, verb string, args []string) bool {
	switch verb {
	case "join", "add", "sit":
		seatName := ""
		if len(args) > 0 {
			seatName = args[0]
		}
		if err := b.Join(p, seatName); err != nil {
			p.Send(capitalize(err.Error()) + ".")
		}

	case "leave", "stand":
		if err := b.Leave(p); err != nil {
			p.Send(capitalize(err.Error()) + ".")
		}

	case "replace":
		if len(args) < 2 {
			p.Send("Usage: replace <seat> <player>.")
			return true
		}
		if err := b.Replace(args[0], args[1]); err != nil {
			p.Send(capitalize(err.Error()) + ".")
		}

	case "list", "who":
		p.Send(b.OccupantListing())

	case "kibitz", "watch":
		if err := b.ch.Connect(p, b.ch.Key); err != nil {
			p.Send(capitalize(err.Error()) + ".")
		} else {
			p.Send(fmt.Sprintf("You are now watching table %s.", b.name))
		}

	case "show", "look":
		p.Send(b.Describe())

	case "show_config":
		if b.ConfigSummary != nil {
			p.Send(b.ConfigSummary())
		} else {
			p.Send(fmt.Sprintf("Table %s has no configurable options.", b.name))
		}

	case "terminate", "finish":
		b.Terminate(p)

	case "private":
		b.private = true
		b.Broadcastf("Table %s is now private.", b.name)

	case "public":
		b.private = false
		b.Broadcastf("Table %s is now public.", b.name)

	default:
		return false
	}
	return true
}

// OccupantListing renders the seats and their holders on one line.
func (b *BaseTable) OccupantListing() string {
	parts := make([]string, 0, len(b.seats))
	for _, s := range b.seats {
		parts = append(parts, fmt.Sprintf("%s: %s", s.DisplayName, s.OccupantLabel()))
	}
	return fmt.Sprintf("Table %s [%s] -- %s", b.name, b.stateLabel(), strings.Join(parts, ", "))
}

// Describe is the generic show/look rendering. Games with a board intercept
// "show" in their own dispatch instead.
func (b *BaseTable) Describe() string {
	return b.OccupantListing()
}

func (b *BaseTable) stateLabel() string {
	if b.substate != "" {
		return fmt.Sprintf("%s/%s", b.state, b.substate)
	}
	return string(b.state)
}

// Broadcastf formats and broadcasts a line on the table channel.
func (b *BaseTable) Broadcastf(format string, args ...any) {
	b.ch.Broadcast(fmt.Sprintf(format, args...))
}

// CurrentSeat returns the seat allowed to act.
func (b *BaseTable) CurrentSeat() *Seat {
	if len(b.seats) == 0 {
		return nil
	}
	return b.seats[b.turn%len(b.seats)]
}

// SetTurn points the turn at the given seat index.
func (b *BaseTable) SetTurn(i int) {
	if len(b.seats) > 0 {
		b.turn = ((i % len(b.seats)) + len(b.seats)) % len(b.seats)
	}
}

// NextSeat rotates the turn forward in fixed seat order and returns the new
// current seat.
func (b *BaseTable) NextSeat() *Seat {
	if len(b.seats) == 0 {
		return nil
	}
	b.turn = (b.turn + 1) % len(b.seats)
	return b.seats[b.turn]
}

// PrevSeat rotates the turn backward and returns the new current seat.
func (b *BaseTable) PrevSeat() *Seat {
	if len(b.seats) == 0 {
		return nil
	}
	b.turn = (b.turn - 1 + len(b.seats)) % len(b.seats)
	return b.seats[b.turn]
}

// RequireTurn rejects a move from anyone but the current seat's occupant.
func (b *BaseTable) RequireTurn(p player.Participant) error {
	cur := b.CurrentSeat()
	if cur == nil || cur.Occupant == nil || cur.Occupant.ID() != p.ID() {
		return ErrNotYourTurn
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
