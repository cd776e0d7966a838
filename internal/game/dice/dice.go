// Package dice implements a two-seat dice duel. Each player rolls a pair of
// dice per round; the higher total takes the round and the first to the
// configured score wins the match. Doubles beat any non-double total.
package dice

import (
	"fmt"
	"math/rand"

	"table-game-server/internal/game"
	"table-game-server/internal/player"
)

const (
	// DefaultWinScore is the number of round wins that ends the match.
	DefaultWinScore = 3
)

// Config holds settings for the dice game.
type Config struct {
	WinScore int
}

// Source returns the factory source registered for the "dice" key.
func Source(cfg *Config) game.FactorySource {
	winScore := DefaultWinScore
	if cfg != nil && cfg.WinScore > 0 {
		winScore = cfg.WinScore
	}
	return func() (game.Factory, error) {
		return func(env game.Env) (game.Table, error) {
			return newTable(env, winScore, nil), nil
		}, nil
	}
}

// roll is one pair of dice.
type roll struct {
	a, b int
}

func (r roll) total() int    { return r.a + r.b }
func (r roll) doubles() bool { return r.a == r.b }

func (r roll) String() string {
	return fmt.Sprintf("%d and %d", r.a, r.b)
}

// seatData is the per-seat game payload.
type seatData struct {
	score int
	roll  *roll
}

// Table is one dice duel.
type Table struct {
	*game.BaseTable
	winScore int
	rollDice func() roll
}

func newTable(env game.Env, winScore int, rollDice func() roll) *Table {
	if rollDice == nil {
		rollDice = func() roll {
			return roll{rand.Intn(6) + 1, rand.Intn(6) + 1}
		}
	}
	t := &Table{
		BaseTable: game.NewBase(env, "left", "right"),
		winScore:  winScore,
		rollDice:  rollDice,
	}
	for _, s := range t.Seats() {
		s.Data = &seatData{}
	}
	t.ConfigSummary = func() string {
		return fmt.Sprintf("Table %s: dice duel, first to %d.", t.Name(), t.winScore)
	}
	return t
}

// Tick autostarts the duel on the first tick after both seats are filled.
func (t *Table) Tick() {
	if t.State() == game.StateNeedPlayers && t.IsActive() {
		t.SetState(game.StatePlaying)
		t.Broadcastf("Table %s: the duel begins! First to %d. Type roll.", t.Name(), t.winScore)
	}
}

// Handle dispatches dice verbs and falls back to the shared table commands.
func (t *Table) Handle(p player.Participant, command string) {
	verb, args := game.SplitCommand(command)

	switch verb {
	case "roll":
		t.rollFor(p)
	case "score":
		p.Send(t.scoreLine())
	default:
		t.Fallback(p, verb, args)
	}
}

func (t *Table) rollFor(p player.Participant) {
	if t.State() != game.StatePlaying {
		p.Send("The duel has not started yet.")
		return
	}
	seat, ok := t.SeatOf(p)
	if !ok {
		p.Send("You do not hold a seat at this table.")
		return
	}
	data := seat.Data.(*seatData)
	if data.roll != nil {
		p.Send("You have already rolled this round.")
		return
	}

	r := t.rollDice()
	data.roll = &r
	t.Broadcastf("%s rolls %s.", p.Name(), r)
	t.resolveRound()
}

// resolveRound settles the round once both rolls are in.
func (t *Table) resolveRound() {
	seats := t.Seats()
	left, right := seats[0].Data.(*seatData), seats[1].Data.(*seatData)
	if left.roll == nil || right.roll == nil {
		return
	}

	switch winner := compare(*left.roll, *right.roll); winner {
	case 0:
		t.Broadcastf("Round is a push.")
	case 1:
		left.score++
		t.Broadcastf("%s takes the round. %s", seats[0].OccupantLabel(), t.scoreLine())
	case -1:
		right.score++
		t.Broadcastf("%s takes the round. %s", seats[1].OccupantLabel(), t.scoreLine())
	}
	left.roll, right.roll = nil, nil

	for _, s := range seats {
		if s.Data.(*seatData).score >= t.winScore {
			t.Broadcastf("%s wins the duel!", s.OccupantLabel())
			t.SetState(game.StateFinished)
			return
		}
	}
}

func (t *Table) scoreLine() string {
	seats := t.Seats()
	return fmt.Sprintf("Score: %s %d, %s %d.",
		seats[0].OccupantLabel(), seats[0].Data.(*seatData).score,
		seats[1].OccupantLabel(), seats[1].Data.(*seatData).score)
}

// compare reports 1 if a beats b, -1 if b beats a, 0 on a push. Doubles beat
// any non-double roll; between two doubles or two plain rolls the higher
// total wins.
func compare(a, b roll) int {
	switch {
	case a.doubles() && !b.doubles():
		return 1
	case b.doubles() && !a.doubles():
		return -1
	case a.total() > b.total():
		return 1
	case b.total() > a.total():
		return -1
	default:
		return 0
	}
}
