// Package tictactoe implements tic-tac-toe on a configurable square board.
// It exercises the full table state machine: a setup phase for the board
// size, autostart once both seats fill, and strict turn rotation.
package tictactoe

import (
	"fmt"
	"strconv"
	"strings"

	"table-game-server/internal/game"
	"table-game-server/internal/player"
)

const (
	// DefaultSize is the default board edge length.
	DefaultSize = 3
	// MinSize and MaxSize bound the configurable board edge.
	MinSize = 3
	MaxSize = 9
)

// Config holds settings for the tictactoe game.
type Config struct {
	Size int
}

// Source returns the factory source registered for the "tictactoe" key.
func Source(cfg *Config) game.FactorySource {
	size := DefaultSize
	if cfg != nil && cfg.Size >= MinSize && cfg.Size <= MaxSize {
		size = cfg.Size
	}
	return func() (game.Factory, error) {
		return func(env game.Env) (game.Table, error) {
			return newTable(env, size), nil
		}, nil
	}
}

// Table is one tic-tac-toe game.
type Table struct {
	*game.BaseTable
	size  int
	board []byte // 0 = empty, else 'X' or 'O'; row-major
	moves int
}

func newTable(env game.Env, size int) *Table {
	t := &Table{
		BaseTable: game.NewBase(env, "x", "o"),
		size:      size,
	}
	t.board = make([]byte, size*size)
	t.SetState(game.StateSetup)
	t.ConfigSummary = func() string {
		return fmt.Sprintf("Table %s: tic-tac-toe on a %dx%d board.", t.Name(), t.size, t.size)
	}
	return t
}

// Tick leaves setup once someone has joined, and autostarts the game on the
// first tick after both seats are filled.
func (t *Table) Tick() {
	switch t.State() {
	case game.StateSetup:
		for _, s := range t.Seats() {
			if s.Occupied() {
				t.SetState(game.StateNeedPlayers)
				return
			}
		}
	case game.StateNeedPlayers:
		if t.IsActive() {
			t.begin()
		}
	}
}

func (t *Table) begin() {
	t.SetState(game.StatePlaying)
	t.SetTurn(0)
	t.Broadcastf("Table %s: game on, %s to move. Cells are 1-%d.", t.Name(), t.mark(), len(t.board))
	t.Broadcastf("%s", t.render())
}

// Handle dispatches tictactoe verbs and falls back to the shared commands.
func (t *Table) Handle(p player.Participant, command string) {
	verb, args := game.SplitCommand(command)

	switch verb {
	case "size":
		t.resize(p, args)
	case "move":
		if len(args) != 1 {
			p.Send(fmt.Sprintf("Usage: move <1-%d>.", len(t.board)))
			return
		}
		t.move(p, args[0])
	case "show", "look":
		// In play, show means the board.
		if t.State() == game.StatePlaying {
			p.Send(t.render())
			return
		}
		t.Fallback(p, verb, args)
	default:
		t.Fallback(p, verb, args)
	}
}

// resize changes the board edge length; allowed only during setup.
func (t *Table) resize(p player.Participant, args []string) {
	if t.State() != game.StateSetup {
		p.Send("The board size can only be changed before players join.")
		return
	}
	if len(args) != 1 {
		p.Send(fmt.Sprintf("Usage: size <%d-%d>.", MinSize, MaxSize))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < MinSize || n > MaxSize {
		p.Send(fmt.Sprintf("Board size must be between %d and %d.", MinSize, MaxSize))
		return
	}
	t.size = n
	t.board = make([]byte, n*n)
	t.Broadcastf("Table %s: board size set to %dx%d.", t.Name(), n, n)
}

func (t *Table) move(p player.Participant, arg string) {
	if t.State() != game.StatePlaying {
		p.Send("The game has not started yet.")
		return
	}
	if err := t.RequireTurn(p); err != nil {
		p.Send("It is not your turn.")
		return
	}
	cell, err := strconv.Atoi(arg)
	if err != nil || cell < 1 || cell > len(t.board) {
		p.Send(fmt.Sprintf("Cells are numbered 1-%d.", len(t.board)))
		return
	}
	if t.board[cell-1] != 0 {
		p.Send("That cell is already taken.")
		return
	}

	mark := t.mark()
	t.board[cell-1] = mark[0]
	t.moves++
	t.Broadcastf("%s plays %s at %d.", p.Name(), mark, cell)
	t.Broadcastf("%s", t.render())

	switch {
	case t.wins(mark[0]):
		t.Broadcastf("%s wins!", p.Name())
		t.SetState(game.StateFinished)
	case t.moves == len(t.board):
		t.Broadcastf("The board is full: a draw.")
		t.SetState(game.StateFinished)
	default:
		t.NextSeat()
		t.Broadcastf("%s to move.", t.mark())
	}
}

// mark returns the current seat's mark, "X" or "O".
func (t *Table) mark() string {
	return strings.ToUpper(t.CurrentSeat().DisplayName)
}

func (t *Table) render() string {
	var sb strings.Builder
	for row := 0; row < t.size; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := 0; col < t.size; col++ {
			c := t.board[row*t.size+col]
			if c == 0 {
				c = '.'
			}
			if col > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// wins reports whether the mark holds a full row, column, or diagonal.
func (t *Table) wins(mark byte) bool {
	n := t.size
	full := func(start, step int) bool {
		for i := 0; i < n; i++ {
			if t.board[start+i*step] != mark {
				return false
			}
		}
		return true
	}
	for r := 0; r < n; r++ {
		if full(r*n, 1) {
			return true
		}
	}
	for c := 0; c < n; c++ {
		if full(c, n) {
			return true
		}
	}
	return full(0, n+1) || full(n-1, n-1)
}
