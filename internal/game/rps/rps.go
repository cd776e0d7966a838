// Package rps implements rock-paper-scissors: two seats, simultaneous
// throws, first to the configured score wins.
package rps

import (
	"fmt"
	"strings"

	"table-game-server/internal/game"
	"table-game-server/internal/player"
)

const (
	// DefaultWinScore is the number of round wins that ends the match.
	DefaultWinScore = 3
)

// Config holds settings for the rps game.
type Config struct {
	WinScore int
}

// Source returns the factory source registered for the "rps" key.
func Source(cfg *Config) game.FactorySource {
	winScore := DefaultWinScore
	if cfg != nil && cfg.WinScore > 0 {
		winScore = cfg.WinScore
	}
	return func() (game.Factory, error) {
		return func(env game.Env) (game.Table, error) {
			return newTable(env, winScore), nil
		}, nil
	}
}

// seatData is the per-seat game payload.
type seatData struct {
	score int
	throw string // "", "rock", "paper", or "scissors"
}

// Table is one rps match.
type Table struct {
	*game.BaseTable
	winScore int
}

func newTable(env game.Env, winScore int) *Table {
	t := &Table{
		BaseTable: game.NewBase(env, "left", "right"),
		winScore:  winScore,
	}
	for _, s := range t.Seats() {
		s.Data = &seatData{}
	}
	t.ConfigSummary = func() string {
		return fmt.Sprintf("Table %s: rock-paper-scissors, first to %d.", t.Name(), t.winScore)
	}
	return t
}

// Tick autostarts the match on the first tick after both seats are filled.
func (t *Table) Tick() {
	if t.State() == game.StateNeedPlayers && t.IsActive() {
		t.SetState(game.StatePlaying)
		t.Broadcastf("Table %s: the match begins! First to %d. Throw rock, paper, or scissors.", t.Name(), t.winScore)
	}
}

// Handle dispatches rps verbs and falls back to the shared table commands.
func (t *Table) Handle(p player.Participant, command string) {
	verb, args := game.SplitCommand(command)

	switch verb {
	case "rock", "paper", "scissors":
		t.throw(p, verb)
	case "throw":
		if len(args) != 1 {
			p.Send("Usage: throw <rock|paper|scissors>.")
			return
		}
		hand := strings.ToLower(args[0])
		if hand != "rock" && hand != "paper" && hand != "scissors" {
			p.Send(fmt.Sprintf("%q is not a valid throw.", args[0]))
			return
		}
		t.throw(p, hand)
	case "score":
		p.Send(t.scoreLine())
	default:
		t.Fallback(p, verb, args)
	}
}

func (t *Table) throw(p player.Participant, hand string) {
	if t.State() != game.StatePlaying {
		p.Send("The match has not started yet.")
		return
	}
	seat, ok := t.SeatOf(p)
	if !ok {
		p.Send("You do not hold a seat at this table.")
		return
	}
	data := seat.Data.(*seatData)
	if data.throw != "" {
		p.Send("You have already thrown this round.")
		return
	}

	data.throw = hand
	p.Send(fmt.Sprintf("You throw %s.", hand))
	t.Broadcastf("%s has thrown.", p.Name())
	t.resolveRound()
}

// resolveRound settles the round once both throws are in.
func (t *Table) resolveRound() {
	seats := t.Seats()
	left, right := seats[0].Data.(*seatData), seats[1].Data.(*seatData)
	if left.throw == "" || right.throw == "" {
		return
	}

	t.Broadcastf("%s throws %s, %s throws %s.",
		seats[0].OccupantLabel(), left.throw, seats[1].OccupantLabel(), right.throw)

	switch winner := beats(left.throw, right.throw); winner {
	case 0:
		t.Broadcastf("Round is a draw.")
	case 1:
		left.score++
		t.Broadcastf("%s wins the round. %s", seats[0].OccupantLabel(), t.scoreLine())
	case -1:
		right.score++
		t.Broadcastf("%s wins the round. %s", seats[1].OccupantLabel(), t.scoreLine())
	}
	left.throw, right.throw = "", ""

	for _, s := range seats {
		if s.Data.(*seatData).score >= t.winScore {
			t.Broadcastf("%s wins the match!", s.OccupantLabel())
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

// beats reports 1 if a beats b, -1 if b beats a, 0 on a draw.
func beats(a, b string) int {
	if a == b {
		return 0
	}
	wins := map[string]string{
		"rock":     "scissors",
		"paper":    "rock",
		"scissors": "paper",
	}
	if wins[a] == b {
		return 1
	}
	return -1
}
