package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-game-server/internal/channel"
	"table-game-server/internal/game"
	"table-game-server/internal/game/rps"
	"table-game-server/internal/player"
)

type fakeParticipant struct {
	id    string
	name  string
	admin bool
	sent  []string
}

func (f *fakeParticipant) ID() string       { return f.id }
func (f *fakeParticipant) Name() string     { return f.name }
func (f *fakeParticipant) IsAdmin() bool    { return f.admin }
func (f *fakeParticipant) Send(text string) { f.sent = append(f.sent, text) }

func (f *fakeParticipant) received(substr string) bool {
	for _, line := range f.sent {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func (f *fakeParticipant) countReceived(substr string) int {
	n := 0
	for _, line := range f.sent {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

type fakeRoster struct {
	players []*fakeParticipant
}

func (r *fakeRoster) Find(name string) (player.Participant, bool) {
	for _, p := range r.players {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return nil, false
}

// crashTable panics on the "explode" verb; ticks panic after Arm.
type crashTable struct {
	*game.BaseTable
	tickBomb bool
}

func (t *crashTable) Handle(p player.Participant, command string) {
	verb, args := game.SplitCommand(command)
	switch verb {
	case "explode":
		panic("deliberate crash")
	case "arm":
		t.tickBomb = true
	default:
		t.Fallback(p, verb, args)
	}
}

func (t *crashTable) Tick() {
	if t.tickBomb {
		panic("tick crash")
	}
}

func crashSource() game.FactorySource {
	return func() (game.Factory, error) {
		return func(env game.Env) (game.Table, error) {
			return &crashTable{BaseTable: game.NewBase(env, "only")}, nil
		}, nil
	}
}

func panicSource() game.FactorySource {
	return func() (game.Factory, error) {
		return func(env game.Env) (game.Table, error) {
			panic("constructor blew up")
		}, nil
	}
}

func newTestDirectory(t *testing.T) (*Directory, *game.Registry, *channel.Directory, *fakeRoster) {
	t.Helper()
	registry := game.NewRegistry()
	require.NoError(t, registry.Load("rps", rps.Source(nil), game.LoadOptions{Tags: []string{"quick"}}))
	require.NoError(t, registry.Load("chess", rps.Source(nil), game.LoadOptions{AdminOnly: true}))
	require.NoError(t, registry.Load("crash", crashSource(), game.LoadOptions{}))
	require.NoError(t, registry.Load("broken", panicSource(), game.LoadOptions{}))

	channels := channel.NewDirectory()
	channels.Bootstrap()

	roster := &fakeRoster{}
	return NewDirectory(registry, channels, roster, nil), registry, channels, roster
}

func TestDirectory_CreateAndAutostart(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	bob := &fakeParticipant{id: "2", name: "bob"}

	tbl, err := d.Create(alice, "rps", "quickmatch", ScopePrivate)
	require.NoError(t, err)
	assert.Equal(t, game.StateNeedPlayers, tbl.State())
	assert.Len(t, tbl.Seats(), 2)
	assert.True(t, tbl.Channel().IsConnected(alice))
	assert.False(t, tbl.IsActive())

	d.Dispatch(alice, "quickmatch", "join")
	d.Dispatch(bob, "quickmatch", "join")
	assert.True(t, tbl.IsActive())
	assert.Equal(t, game.StateNeedPlayers, tbl.State(), "transition waits for the tick")

	d.Tick()
	assert.Equal(t, game.StatePlaying, tbl.State())
}

func TestDirectory_CreateRejectsReservedChannelName(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "rps", "Global", ScopePrivate)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestDirectory_CreateCaseInsensitiveCollision(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	bob := &fakeParticipant{id: "2", name: "bob"}

	_, err := d.Create(alice, "rps", "Foo", ScopePrivate)
	require.NoError(t, err)

	_, err = d.Create(bob, "rps", "foo", ScopePrivate)
	assert.ErrorIs(t, err, ErrNameCollision)
	assert.Equal(t, 1, d.Count())
}

func TestDirectory_CreateValidation(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "rps", "", ScopePrivate)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = d.Create(alice, "rps", "bad name!", ScopePrivate)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = d.Create(alice, "nosuch", "fine", ScopePrivate)
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestDirectory_CreateAdminOnlyGame(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	root := &fakeParticipant{id: "2", name: "root", admin: true}

	_, err := d.Create(alice, "chess", "t1", ScopePrivate)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, d.Count())

	_, err = d.Create(root, "chess", "t1", ScopePrivate)
	assert.NoError(t, err)
}

func TestDirectory_CreateConstructorPanicContained(t *testing.T) {
	d, _, channels, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "broken", "doomed", ScopePrivate)
	assert.ErrorIs(t, err, ErrInstantiationFailed)
	assert.Equal(t, 0, d.Count())

	// The channel created for the failed table is rolled back.
	_, ok := channels.Get("doomed")
	assert.False(t, ok)

	// The name is free again.
	_, err = d.Create(alice, "rps", "doomed", ScopePrivate)
	assert.NoError(t, err)
}

func TestDirectory_CreateReusesGameableChannel(t *testing.T) {
	d, _, channels, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	pre := channel.New("den")
	pre.Gameable = true
	require.True(t, channels.Add(pre))

	tbl, err := d.Create(alice, "rps", "den", ScopePrivate)
	require.NoError(t, err)
	assert.Same(t, pre, tbl.Channel())
}

func TestDirectory_DispatchUnknownTable(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	d.Dispatch(alice, "nowhere", "join")
	assert.True(t, alice.received("does not exist"))
}

func TestDirectory_DispatchCrashIsolation(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	bob := &fakeParticipant{id: "2", name: "bob"}

	survivor, err := d.Create(bob, "rps", "healthy", ScopePrivate)
	require.NoError(t, err)
	survivorState := survivor.State()

	_, err = d.Create(alice, "crash", "bomb", ScopePrivate)
	require.NoError(t, err)
	d.Dispatch(alice, "bomb", "join")

	d.Dispatch(alice, "bomb", "explode")

	// The crashed table is gone; the survivor is untouched.
	_, ok := d.Lookup("bomb")
	assert.False(t, ok)
	_, ok = d.Lookup("healthy")
	assert.True(t, ok)
	assert.Equal(t, survivorState, survivor.State())

	// Exactly one crash notice was broadcast.
	assert.Equal(t, 1, alice.countReceived("crashed"))

	// Dispatch afterwards reports a missing table.
	d.Dispatch(alice, "bomb", "join")
	assert.True(t, alice.received("does not exist"))
}

func TestDirectory_CrashedTableChannelReaped(t *testing.T) {
	d, _, channels, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "crash", "bomb", ScopePrivate)
	require.NoError(t, err)
	d.Dispatch(alice, "bomb", "explode")

	// Channel still exists while alice subscribes to it.
	_, ok := channels.Get("bomb")
	assert.True(t, ok)

	ch, _ := channels.Get("bomb")
	require.NoError(t, ch.Disconnect(alice))
	d.Cleanup()

	_, ok = channels.Get("bomb")
	assert.False(t, ok)
}

func TestDirectory_TickCrashIsolation(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	tbl, err := d.Create(alice, "crash", "bomb", ScopePrivate)
	require.NoError(t, err)
	d.Dispatch(alice, "bomb", "arm")

	d.Tick()

	_, ok := d.Lookup("bomb")
	assert.False(t, ok)
	// The crash never reached the table's own state machine.
	assert.Equal(t, game.StateNeedPlayers, tbl.State())
}

func TestDirectory_TerminateRemovesImmediately(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "rps", "brief", ScopePrivate)
	require.NoError(t, err)

	d.Dispatch(alice, "brief", "terminate")

	_, ok := d.Lookup("brief")
	assert.False(t, ok)
	assert.True(t, alice.received("terminated by alice"))
}

func TestDirectory_CleanupIdempotent(t *testing.T) {
	d, _, channels, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "rps", "stays", ScopePrivate)
	require.NoError(t, err)

	d.Cleanup()
	tablesAfterFirst := d.Count()
	channelsAfterFirst := len(channels.List())

	d.Cleanup()
	assert.Equal(t, tablesAfterFirst, d.Count())
	assert.Equal(t, channelsAfterFirst, len(channels.List()))
}

func TestDirectory_RemoveParticipantIdempotent(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	ghost := &fakeParticipant{id: "9", name: "ghost"}

	tbl, err := d.Create(alice, "rps", "quick", ScopePrivate)
	require.NoError(t, err)
	d.Dispatch(alice, "quick", "join")

	// A participant with no seats is a no-op, twice.
	d.RemoveParticipant(ghost)
	d.RemoveParticipant(ghost)

	d.RemoveParticipant(alice)
	seat := tbl.Seats()[0]
	assert.Equal(t, "alice (absentee)", seat.OccupantLabel())
	assert.False(t, tbl.IsActive())

	d.RemoveParticipant(alice)
	assert.Equal(t, "alice (absentee)", seat.OccupantLabel())
}

func TestDirectory_ListVisibility(t *testing.T) {
	d, _, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	bob := &fakeParticipant{id: "2", name: "bob"}
	root := &fakeParticipant{id: "3", name: "root", admin: true}

	pub, err := d.Create(alice, "rps", "open", ScopePrivate)
	require.NoError(t, err)
	priv, err := d.Create(alice, "rps", "hidden", ScopePrivate)
	require.NoError(t, err)
	d.Dispatch(alice, "hidden", "private")

	_ = pub
	_ = priv

	names := func(summaries []Summary) []string {
		out := make([]string, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, s.Name)
		}
		return out
	}

	// Bob sees only the public table.
	assert.Equal(t, []string{"open"}, names(d.List(bob, false)))

	// The admin flag reveals private tables.
	assert.ElementsMatch(t, []string{"open", "hidden"}, names(d.List(root, true)))

	// Alice is subscribed to the hidden table's channel, so she sees it.
	assert.ElementsMatch(t, []string{"open", "hidden"}, names(d.List(alice, false)))
}

func TestDirectory_ScopeAnnouncements(t *testing.T) {
	d, _, channels, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}
	watcher := &fakeParticipant{id: "2", name: "watcher"}

	global, _ := channels.Get(channel.GlobalChannelName)
	require.NoError(t, global.Connect(watcher, ""))

	_, err := d.Create(alice, "rps", "loud", ScopeGlobal)
	require.NoError(t, err)
	assert.True(t, watcher.received("starts a game of rps at table loud"))

	_, err = d.Create(alice, "rps", "quiet", ScopePrivate)
	require.NoError(t, err)
	assert.False(t, watcher.received("quiet"))
	assert.True(t, alice.received("Table quiet created"))
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"quickmatch", true},
		{"Foo-2", true},
		{"a_b", true},
		{"", false},
		{"9starts", false},
		{"has space", false},
		{"way-too-long-name-way-too-long-name-way", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidName(tt.name))
		})
	}
}

func TestDirectory_UnloadKeepsRunningTables(t *testing.T) {
	d, registry, _, _ := newTestDirectory(t)
	alice := &fakeParticipant{id: "1", name: "alice"}

	_, err := d.Create(alice, "rps", "holdout", ScopePrivate)
	require.NoError(t, err)

	require.True(t, registry.Unload("rps"))

	// The running table is unaffected; new tables can no longer be made.
	_, ok := d.Lookup("holdout")
	assert.True(t, ok)
	_, err = d.Create(alice, "rps", "another", ScopePrivate)
	assert.ErrorIs(t, err, ErrUnknownGame)
}
