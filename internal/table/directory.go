// Package table implements the directory of live tables: creation with name
// and permission validation, command dispatch with per-table fault isolation,
// the periodic tick, and the cleanup sweep that retires finished tables.
package table

import (
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"

	"table-game-server/internal/channel"
	"table-game-server/internal/game"
	"table-game-server/internal/history"
	"table-game-server/internal/player"
)

// Errors for table creation. Callers turn these into user-facing messages.
var (
	ErrInvalidName         = errors.New("invalid table name")
	ErrNameCollision       = errors.New("table name already in use")
	ErrUnknownGame         = errors.New("unknown game")
	ErrPermissionDenied    = errors.New("game requires admin privilege")
	ErrInstantiationFailed = errors.New("failed to create game instance")
)

// Scope selects where a table creation is announced. It is orthogonal to the
// table's privacy flag, which only affects listing visibility.
type Scope string

const (
	// ScopeGlobal announces on the Global channel.
	ScopeGlobal Scope = "global"
	// ScopeLocal announces on the new table's own channel.
	ScopeLocal Scope = "local"
	// ScopePrivate informs only the requester.
	ScopePrivate Scope = "private"
)

// Summary is the listing view of one live table.
type Summary struct {
	Name    string
	GameKey string
	State   game.State
	Private bool
	Seats   string
}

// Directory owns the list of live tables. Names are unique
// case-insensitively and share a namespace with gameable channels. All
// mutation happens on the engine goroutine.
type Directory struct {
	registry *game.Registry
	channels *channel.Directory
	roster   player.Roster
	recorder history.Recorder

	// OnRemove, when set, is called after a table leaves the live list.
	// The engine uses it to drop stale participant focus.
	OnRemove func(t game.Table)

	tables []game.Table         // creation order, drives tick ordering
	index  map[string]game.Table // normalized name -> table
}

// NewDirectory creates an empty table directory.
func NewDirectory(registry *game.Registry, channels *channel.Directory, roster player.Roster, recorder history.Recorder) *Directory {
	if recorder == nil {
		recorder = history.Nop{}
	}
	return &Directory{
		registry: registry,
		channels: channels,
		roster:   roster,
		recorder: recorder,
		index:    make(map[string]game.Table),
	}
}

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,31}$`)

// ValidName reports whether a proposed table name is acceptable.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Create validates the request, instantiates the game bound to a fresh (or
// reused gameable) channel, subscribes the requester, and announces the new
// table according to scope. A panicking game constructor is caught here: the
// table is not added and the directory is unchanged.
func (d *Directory) Create(requester player.Participant, gameKey, proposedName string, scope Scope) (game.Table, error) {
	if !ValidName(proposedName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, proposedName)
	}

	normalized := channel.Normalize(proposedName)
	if _, ok := d.index[normalized]; ok {
		return nil, fmt.Errorf("%w: %q", ErrNameCollision, proposedName)
	}

	// Table names share a namespace with channels; only a gameable channel
	// of the same name may be taken over as the table's channel.
	existing, channelExists := d.channels.Get(normalized)
	if channelExists && !existing.Gameable {
		return nil, fmt.Errorf("%w: %q is a reserved channel", ErrNameCollision, proposedName)
	}

	desc, ok := d.registry.Get(gameKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameKey)
	}
	if desc.AdminOnly && !requester.IsAdmin() {
		log.Warn().
			Str("component", "tables").
			Str("participant", requester.Name()).
			Str("game", desc.Key).
			Msg("admin-only game requested without privilege")
		return nil, fmt.Errorf("%w: %q", ErrPermissionDenied, desc.Key)
	}

	ch := existing
	if !channelExists {
		ch = channel.New(proposedName)
		ch.Gameable = true
		d.channels.Add(ch)
	}

	t, err := d.instantiate(desc.Factory(), game.Env{
		Name:    proposedName,
		GameKey: desc.Key,
		Channel: ch,
		Roster:  d.roster,
	})
	if err != nil {
		if !channelExists {
			d.channels.Remove(normalized)
		}
		log.Error().Err(err).
			Str("component", "tables").
			Str("game", desc.Key).
			Str("table", proposedName).
			Msg("game instantiation failed")
		return nil, ErrInstantiationFailed
	}

	if !ch.IsConnected(requester) {
		_ = ch.Connect(requester, ch.Key)
	}
	d.tables = append(d.tables, t)
	d.index[normalized] = t

	d.announce(requester, t, scope)
	d.recorder.TableCreated(t.Name(), t.GameKey(), requester.Name())
	log.Info().
		Str("component", "tables").
		Str("table", t.Name()).
		Str("game", t.GameKey()).
		Str("creator", requester.Name()).
		Msg("table created")
	return t, nil
}

// instantiate runs a game factory with panic containment. The factory is
// game-plugin code and gets no chance to take the server down.
func (d *Directory) instantiate(factory game.Factory, env game.Env) (t game.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("component", "tables").
				Str("game", env.GameKey).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("game constructor panicked")
			t, err = nil, fmt.Errorf("constructor panicked: %v", rec)
		}
	}()
	return factory(env)
}

func (d *Directory) announce(requester player.Participant, t game.Table, scope Scope) {
	notice := fmt.Sprintf("%s starts a game of %s at table %s.", requester.Name(), t.GameKey(), t.Name())
	switch scope {
	case ScopeGlobal:
		if global, ok := d.channels.Get(channel.GlobalChannelName); ok {
			global.Broadcast(notice)
			return
		}
		t.Channel().Broadcast(notice)
	case ScopeLocal:
		t.Channel().Broadcast(notice)
	default:
		requester.Send(fmt.Sprintf("Table %s created for %s.", t.Name(), t.GameKey()))
	}
}

// Lookup returns the live table with the given name, case-insensitively.
func (d *Directory) Lookup(name string) (game.Table, bool) {
	t, ok := d.index[channel.Normalize(name)]
	return t, ok
}

// Count returns the number of live tables.
func (d *Directory) Count() int {
	return len(d.tables)
}

// Dispatch routes a command line to the named table. A panic escaping the
// table's handler is contained: the crash is logged with its stack, a crash
// notice is broadcast on the table's channel, and the table is removed. No
// other table is affected and the process never exits.
func (d *Directory) Dispatch(p player.Participant, tableName, commandText string) {
	t, ok := d.Lookup(tableName)
	if !ok {
		p.Send(fmt.Sprintf("Table %s does not exist.", tableName))
		return
	}

	if crashed := d.guard(t, func() { t.Handle(p, commandText) }); crashed {
		return
	}

	// Explicit termination and win conditions retire the table immediately
	// rather than waiting for the sweep.
	if t.State() == game.StateFinished {
		d.retire(t)
	}
}

// guard runs fn and, on panic, performs the crash recovery for t. Reports
// whether a crash occurred.
func (d *Directory) guard(t game.Table, fn func()) (crashed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			crashed = true
			detail := fmt.Sprintf("%v", rec)
			log.Error().
				Str("component", "tables").
				Str("table", t.Name()).
				Str("game", t.GameKey()).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("table crashed, removing")
			t.Channel().Broadcast(fmt.Sprintf("Table %s crashed and has been closed. The game is abandoned.", t.Name()))
			d.remove(t)
			d.recorder.TableCrashed(t.Name(), t.GameKey(), detail)
		}
	}()
	fn()
	return false
}

// retire removes a table that reached Finished normally.
func (d *Directory) retire(t game.Table) {
	d.remove(t)
	d.recorder.TableFinished(t.Name(), t.GameKey())
	log.Info().
		Str("component", "tables").
		Str("table", t.Name()).
		Str("game", t.GameKey()).
		Msg("table finished")
}

// remove drops the table from the live list. Its channel is left to the
// cleanup sweep, which reaps it once empty unless it is persistent.
func (d *Directory) remove(t game.Table) {
	delete(d.index, t.NormalizedName())
	for i, lt := range d.tables {
		if lt == t {
			d.tables = append(d.tables[:i], d.tables[i+1:]...)
			break
		}
	}
	if d.OnRemove != nil {
		d.OnRemove(t)
	}
}

// List returns summaries of the tables visible to the requester: public
// tables, plus private ones when includePrivate is set or the requester is
// already subscribed to the table's channel.
func (d *Directory) List(requester player.Participant, includePrivate bool) []Summary {
	out := make([]Summary, 0, len(d.tables))
	for _, t := range d.tables {
		visible := !t.IsPrivate() || includePrivate || t.Channel().IsConnected(requester)
		if !visible {
			continue
		}
		occupied := 0
		for _, s := range t.Seats() {
			if s.Occupied() {
				occupied++
			}
		}
		out = append(out, Summary{
			Name:    t.Name(),
			GameKey: t.GameKey(),
			State:   t.State(),
			Private: t.IsPrivate(),
			Seats:   fmt.Sprintf("%d/%d", occupied, len(t.Seats())),
		})
	}
	return out
}

// RemoveParticipant asks every live table to vacate any seat the participant
// holds. Idempotent: a participant with no seats is a no-op everywhere.
func (d *Directory) RemoveParticipant(p player.Participant) {
	for _, t := range snapshot(d.tables) {
		d.guard(t, func() { t.RemoveParticipant(p) })
	}
}

// Tick drives every live table's autonomous transitions in creation order,
// with the same fault isolation as Dispatch, then runs the cleanup sweep.
func (d *Directory) Tick() {
	for _, t := range snapshot(d.tables) {
		if _, live := d.index[t.NormalizedName()]; !live {
			continue
		}
		d.guard(t, t.Tick)
	}
	d.Cleanup()
}

// Cleanup retires every table whose state machine reports Finished, then
// reaps empty non-persistent channels. Running it twice in a row is the same
// as running it once.
func (d *Directory) Cleanup() {
	for _, t := range snapshot(d.tables) {
		if t.State() == game.StateFinished {
			d.retire(t)
		}
	}
	d.channels.Cleanup()
}

// snapshot copies the live list so removal during iteration stays safe.
func snapshot(tables []game.Table) []game.Table {
	return append([]game.Table(nil), tables...)
}

// Describe renders the table list for display.
func Describe(summaries []Summary) string {
	if len(summaries) == 0 {
		return "No tables."
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		marker := ""
		if s.Private {
			marker = " (private)"
		}
		lines = append(lines, fmt.Sprintf("%s: %s [%s] seats %s%s", s.Name, s.GameKey, s.State, s.Seats, marker))
	}
	return strings.Join(lines, "\n")
}
