// Package engine runs the game server's single logical thread. Every
// participant command and the periodic tick are processed strictly one at a
// time by one goroutine; transports only enqueue complete lines. That one
// actor owns all table, seat, and channel mutation, which is what makes the
// rest of the core lock-free.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"table-game-server/internal/channel"
	"table-game-server/internal/game"
	"table-game-server/internal/history"
	"table-game-server/internal/player"
	"table-game-server/internal/table"
)

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evCommand
)

type event struct {
	kind eventKind
	p    player.Participant
	line string
}

// Options configure an engine.
type Options struct {
	TickInterval time.Duration
	MOTD         string
	Recorder     history.Recorder
}

// Engine wires the registry, channel directory, and table directory together
// and drives them from one goroutine.
type Engine struct {
	registry *game.Registry
	channels *channel.Directory
	tables   *table.Directory

	tickInterval time.Duration
	motd         string

	events chan event

	// Engine-goroutine state: connected participants and each
	// participant's current table focus.
	participants map[string]player.Participant
	focus        map[string]string // participant id -> normalized table name
}

// New creates an engine. The table directory is built here so that the
// engine can serve as the roster and catch table removals for focus cleanup.
func New(registry *game.Registry, channels *channel.Directory, opts Options) *Engine {
	e := &Engine{
		registry:     registry,
		channels:     channels,
		tickInterval: opts.TickInterval,
		motd:         opts.MOTD,
		events:       make(chan event, 256),
		participants: make(map[string]player.Participant),
		focus:        make(map[string]string),
	}
	if e.tickInterval <= 0 {
		e.tickInterval = time.Second
	}
	e.tables = table.NewDirectory(registry, channels, e, opts.Recorder)
	e.tables.OnRemove = e.dropFocus
	return e
}

// Tables exposes the table directory, primarily for tests.
func (e *Engine) Tables() *table.Directory {
	return e.tables
}

// Find implements player.Roster over the connected participants.
func (e *Engine) Find(name string) (player.Participant, bool) {
	for _, p := range e.participants {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Connect enqueues a participant's arrival. Called from transport goroutines.
func (e *Engine) Connect(p player.Participant) {
	e.events <- event{kind: evConnect, p: p}
}

// Disconnect enqueues a participant's departure.
func (e *Engine) Disconnect(p player.Participant) {
	e.events <- event{kind: evDisconnect, p: p}
}

// Submit enqueues one complete command line from a participant.
func (e *Engine) Submit(p player.Participant, line string) {
	e.events <- event{kind: evCommand, p: p, line: line}
}

// Run processes events and ticks until the context is cancelled. It is the
// single thread of control: no table or channel mutation happens anywhere
// else while Run is live.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	log.Info().
		Str("component", "engine").
		Dur("tick_interval", e.tickInterval).
		Msg("engine running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "engine").Msg("engine stopped")
			return
		case <-ticker.C:
			e.tables.Tick()
		case ev := <-e.events:
			e.handle(ev)
		}
	}
}

func (e *Engine) handle(ev event) {
	switch ev.kind {
	case evConnect:
		e.participants[ev.p.ID()] = ev.p
		if err := e.channels.Connect(ev.p, channel.GlobalChannelName, ""); err != nil {
			log.Debug().Err(err).Str("component", "engine").Str("participant", ev.p.Name()).Msg("global channel join")
		}
		if e.motd != "" {
			ev.p.Send(e.motd)
		}
		log.Info().Str("component", "engine").Str("participant", ev.p.Name()).Msg("participant connected")

	case evDisconnect:
		e.tables.RemoveParticipant(ev.p)
		e.channels.DisconnectAll(ev.p)
		delete(e.participants, ev.p.ID())
		delete(e.focus, ev.p.ID())
		log.Info().Str("component", "engine").Str("participant", ev.p.Name()).Msg("participant disconnected")

	case evCommand:
		e.route(ev.p, ev.line)
	}
}

// route is the top-level command router: the first token selects the
// handler, case-insensitively. Anything unrecognized goes to the
// participant's focused table.
func (e *Engine) route(p player.Participant, line string) {
	verb, args := game.SplitCommand(line)
	if verb == "" {
		return
	}

	switch verb {
	case "game":
		e.gameCommand(p, args)

	case "tables":
		summaries := e.tables.List(p, p.IsAdmin())
		p.Send(table.Describe(summaries))

	case "table":
		if len(args) == 0 {
			p.Send("Usage: table <name> <command...>.")
			return
		}
		name := args[0]
		if _, ok := e.tables.Lookup(name); ok {
			e.focus[p.ID()] = channel.Normalize(name)
		}
		rest := strings.Join(args[1:], " ")
		if rest == "" {
			rest = "show"
		}
		e.tables.Dispatch(p, name, rest)

	case "help":
		p.Send("Commands: game list | game new [private|local|global] <game> <table> | tables | table <name> <command...>")

	default:
		// A focused participant can address their table directly.
		if name, ok := e.focus[p.ID()]; ok {
			e.tables.Dispatch(p, name, line)
			return
		}
		p.Send(fmt.Sprintf("Unknown command %q. Try: help", verb))
	}
}

func (e *Engine) gameCommand(p player.Participant, args []string) {
	if len(args) == 0 {
		p.Send("Usage: game list | game new [private|local|global] <game> <table>.")
		return
	}

	switch strings.ToLower(args[0]) {
	case "list":
		infos := e.registry.List(p.IsAdmin())
		if len(infos) == 0 {
			p.Send("No games available.")
			return
		}
		lines := make([]string, 0, len(infos))
		for _, info := range infos {
			line := info.Key
			if len(info.Tags) > 0 {
				line += " (" + strings.Join(info.Tags, ", ") + ")"
			}
			if info.AdminOnly {
				line += " [admin]"
			}
			lines = append(lines, line)
		}
		p.Send(strings.Join(lines, "\n"))

	case "new":
		rest := args[1:]
		scope := table.ScopeGlobal
		if len(rest) > 0 {
			switch strings.ToLower(rest[0]) {
			case "private":
				scope = table.ScopePrivate
				rest = rest[1:]
			case "local":
				scope = table.ScopeLocal
				rest = rest[1:]
			case "global":
				scope = table.ScopeGlobal
				rest = rest[1:]
			}
		}
		if len(rest) != 2 {
			p.Send("Usage: game new [private|local|global] <game> <table>.")
			return
		}
		t, err := e.tables.Create(p, rest[0], rest[1], scope)
		if err != nil {
			p.Send(userMessage(err))
			return
		}
		e.focus[p.ID()] = t.NormalizedName()

	case "reload":
		if !e.adminGamesCommand(p, args, "reload") {
			return
		}
		if err := e.registry.Reload(args[1]); err != nil {
			p.Send(fmt.Sprintf("Reload failed: %v.", err))
			return
		}
		p.Send(fmt.Sprintf("Game %s reloaded.", args[1]))

	case "unload":
		if !e.adminGamesCommand(p, args, "unload") {
			return
		}
		if !e.registry.Unload(args[1]) {
			p.Send(fmt.Sprintf("Game %s is not loaded.", args[1]))
			return
		}
		p.Send(fmt.Sprintf("Game %s unloaded. Running tables keep playing.", args[1]))

	default:
		p.Send("Usage: game list | game new [private|local|global] <game> <table>.")
	}
}

// adminGamesCommand validates the shared shape of admin game subcommands.
func (e *Engine) adminGamesCommand(p player.Participant, args []string, name string) bool {
	if !p.IsAdmin() {
		p.Send("That command requires admin privilege.")
		return false
	}
	if len(args) != 2 {
		p.Send(fmt.Sprintf("Usage: game %s <game>.", name))
		return false
	}
	return true
}

// dropFocus clears the focus of everyone pointed at a removed table.
func (e *Engine) dropFocus(t game.Table) {
	for id, name := range e.focus {
		if name == t.NormalizedName() {
			delete(e.focus, id)
		}
	}
}

// userMessage turns a creation error into its user-facing line.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case strings.Contains(err.Error(), "reserved channel"):
		return "That name is reserved."
	default:
		return capitalizeFirst(err.Error()) + "."
	}
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
