package dice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"table-game-server/internal/channel"
	"table-game-server/internal/game"
	"table-game-server/internal/player"
)

type fakeParticipant struct {
	id   string
	name string
	sent []string
}

func (f *fakeParticipant) ID() string       { return f.id }
func (f *fakeParticipant) Name() string     { return f.name }
func (f *fakeParticipant) IsAdmin() bool    { return false }
func (f *fakeParticipant) Send(text string) { f.sent = append(f.sent, text) }

func (f *fakeParticipant) received(substr string) bool {
	for _, line := range f.sent {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type emptyRoster struct{}

func (emptyRoster) Find(string) (player.Participant, bool) { return nil, false }

// newDuel builds a table with scripted rolls, consumed in call order.
func newDuel(t *testing.T, winScore int, rolls ...roll) (*Table, *fakeParticipant, *fakeParticipant) {
	t.Helper()
	i := 0
	scripted := func() roll {
		require.Less(t, i, len(rolls), "ran out of scripted rolls")
		r := rolls[i]
		i++
		return r
	}

	tbl := newTable(game.Env{
		Name:    "alley",
		GameKey: "dice",
		Channel: channel.New("alley"),
		Roster:  emptyRoster{},
	}, winScore, scripted)

	alice := &fakeParticipant{id: "1", name: "alice"}
	bob := &fakeParticipant{id: "2", name: "bob"}
	tbl.Handle(alice, "join")
	tbl.Handle(bob, "join")
	tbl.Tick()
	require.Equal(t, game.StatePlaying, tbl.State())
	return tbl, alice, bob
}

func TestRoundResolution(t *testing.T) {
	tbl, alice, bob := newDuel(t, 3, roll{6, 3}, roll{2, 3})

	tbl.Handle(alice, "roll")
	assert.True(t, bob.received("alice rolls 6 and 3."))

	tbl.Handle(bob, "roll")
	assert.True(t, alice.received("alice takes the round."))
	assert.True(t, bob.received("Score: alice 1, bob 0."))
	assert.Equal(t, game.StatePlaying, tbl.State())
}

func TestDoublesBeatHigherTotal(t *testing.T) {
	tbl, alice, bob := newDuel(t, 3, roll{6, 5}, roll{1, 1})

	tbl.Handle(alice, "roll")
	tbl.Handle(bob, "roll")
	assert.True(t, alice.received("bob takes the round."))
	assert.Equal(t, game.StatePlaying, tbl.State())
}

func TestPushRound(t *testing.T) {
	tbl, alice, bob := newDuel(t, 3, roll{2, 5}, roll{3, 4})

	tbl.Handle(alice, "roll")
	tbl.Handle(bob, "roll")
	assert.True(t, alice.received("Round is a push."))
	assert.True(t, bob.received("Score: alice 0, bob 0."))
}

func TestDoubleRollRejected(t *testing.T) {
	tbl, alice, _ := newDuel(t, 3, roll{2, 5})

	tbl.Handle(alice, "roll")
	tbl.Handle(alice, "roll")
	assert.True(t, alice.received("already rolled"))
}

func TestDuelEndsAtWinScore(t *testing.T) {
	tbl, alice, bob := newDuel(t, 1, roll{6, 6}, roll{1, 2})

	tbl.Handle(alice, "roll")
	tbl.Handle(bob, "roll")
	assert.True(t, bob.received("alice wins the duel!"))
	assert.Equal(t, game.StateFinished, tbl.State())
}

func TestRollBeforeStartRejected(t *testing.T) {
	tbl := newTable(game.Env{
		Name:    "alley",
		GameKey: "dice",
		Channel: channel.New("alley"),
		Roster:  emptyRoster{},
	}, 3, nil)

	alice := &fakeParticipant{id: "1", name: "alice"}
	tbl.Handle(alice, "join")
	tbl.Handle(alice, "roll")
	assert.True(t, alice.received("has not started"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b roll
		want int
	}{
		{"higher total wins", roll{6, 3}, roll{2, 3}, 1},
		{"lower total loses", roll{1, 2}, roll{3, 4}, -1},
		{"equal totals push", roll{2, 5}, roll{3, 4}, 0},
		{"doubles beat higher total", roll{1, 1}, roll{6, 5}, 1},
		{"doubles vs doubles by total", roll{3, 3}, roll{2, 2}, 1},
		{"equal doubles push", roll{4, 4}, roll{4, 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compare(tt.a, tt.b))
		})
	}
}

func TestCompareAntisymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := roll{rapid.IntRange(1, 6).Draw(t, "a1"), rapid.IntRange(1, 6).Draw(t, "a2")}
		b := roll{rapid.IntRange(1, 6).Draw(t, "b1"), rapid.IntRange(1, 6).Draw(t, "b2")}
		assert.Equal(t, -compare(b, a), compare(a, b))
	})
}

func TestDefaultRollerBounds(t *testing.T) {
	tbl := newTable(game.Env{
		Name:    "alley",
		GameKey: "dice",
		Channel: channel.New("alley"),
		Roster:  emptyRoster{},
	}, 3, nil)

	for i := 0; i < 100; i++ {
		r := tbl.rollDice()
		assert.GreaterOrEqual(t, r.a, 1)
		assert.LessOrEqual(t, r.a, 6)
		assert.GreaterOrEqual(t, r.b, 1)
		assert.LessOrEqual(t, r.b, 6)
	}
}
