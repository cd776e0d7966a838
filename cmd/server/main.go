// Package main is the entry point for the table game server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"table-game-server/internal/channel"
	"table-game-server/internal/config"
	"table-game-server/internal/engine"
	"table-game-server/internal/game"
	"table-game-server/internal/game/dice"
	"table-game-server/internal/game/rps"
	"table-game-server/internal/game/tictactoe"
	"table-game-server/internal/history"
	"table-game-server/internal/pkg/db"
	"table-game-server/internal/transport"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional history ledger. The server runs fine without a database.
	var recorder history.Recorder = history.Nop{}
	if cfg.Database.Enabled {
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		if err := history.Migrate(ctx, pool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		recorder = history.NewPostgresRecorder(pool.Pool)
	}

	// Bootstrap the game registry from configuration.
	registry := game.NewRegistry()
	load := func(key string, source game.FactorySource, tags ...string) {
		err := registry.Load(key, source, game.LoadOptions{
			AdminOnly: cfg.IsAdminOnlyGame(key),
			Tags:      tags,
		})
		if err != nil {
			log.Fatal().Err(err).Str("game", key).Msg("Failed to register game")
		}
	}
	load("rps", rps.Source(&rps.Config{WinScore: cfg.Games.RPS.WinScore}), "quick", "2p")
	load("tictactoe", tictactoe.Source(&tictactoe.Config{Size: cfg.Games.TicTacToe.BoardSize}), "board", "2p")
	load("dice", dice.Source(&dice.Config{WinScore: cfg.Games.Dice.WinScore}), "quick", "2p")

	log.Info().
		Int("game_count", registry.Count()).
		Msg("Games registered")

	channels := channel.NewDirectory()
	channels.Bootstrap()

	eng := engine.New(registry, channels, engine.Options{
		TickInterval: cfg.Server.TickInterval,
		MOTD:         cfg.Server.MOTD,
		Recorder:     recorder,
	})

	server := transport.NewServer(cfg.Server.ListenAddr, eng, cfg.IsAdminName)

	go eng.Run(ctx)
	go func() {
		if err := server.ListenAndServe(ctx); err != nil {
			log.Fatal().Err(err).Msg("Transport failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	log.Info().Msg("Server stopped gracefully")
}
