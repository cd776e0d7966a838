// Package history persists a ledger of table lifecycle outcomes to
// PostgreSQL. Only results are durable: in-progress game state never touches
// the database.
package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Recorder receives table lifecycle events. The engine thread must never
// block on it; implementations are expected to be asynchronous.
type Recorder interface {
	TableCreated(tableName, gameKey, creator string)
	TableFinished(tableName, gameKey string)
	TableCrashed(tableName, gameKey, detail string)
}

// Nop discards all events. Used when the database is disabled.
type Nop struct{}

func (Nop) TableCreated(string, string, string) {}
func (Nop) TableFinished(string, string)        {}
func (Nop) TableCrashed(string, string, string) {}

// PostgresRecorder writes lifecycle events to the table_events table.
// Writes happen on their own goroutine with a bounded timeout so a slow or
// unreachable database cannot stall the engine.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresRecorder creates a recorder over an established pool.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool, timeout: 5 * time.Second}
}

// Migrate creates the table_events table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS table_events (
			id BIGSERIAL PRIMARY KEY,
			table_name VARCHAR(64) NOT NULL,
			game_key VARCHAR(32) NOT NULL,
			event VARCHAR(16) NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_table_events_name_time ON table_events(table_name, created_at DESC);
	`)
	return err
}

// TableCreated records a successful table creation.
func (r *PostgresRecorder) TableCreated(tableName, gameKey, creator string) {
	r.record(tableName, gameKey, "created", creator)
}

// TableFinished records a table reaching its terminal state normally.
func (r *PostgresRecorder) TableFinished(tableName, gameKey string) {
	r.record(tableName, gameKey, "finished", "")
}

// TableCrashed records a table removed after an internal crash.
func (r *PostgresRecorder) TableCrashed(tableName, gameKey, detail string) {
	r.record(tableName, gameKey, "crashed", detail)
}

// Event is one persisted lifecycle row.
type Event struct {
	TableName string
	GameKey   string
	Kind      string
	Detail    string
	CreatedAt time.Time
}

// Recent returns the most recent lifecycle events, newest first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	const query = `
		SELECT table_name, game_key, event, COALESCE(detail, ''), created_at
		FROM table_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.TableName, &e.GameKey, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *PostgresRecorder) record(tableName, gameKey, event, detail string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		const query = `
			INSERT INTO table_events (table_name, game_key, event, detail)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := r.pool.Exec(ctx, query, tableName, gameKey, event, detail); err != nil {
			log.Error().Err(err).
				Str("component", "history").
				Str("table", tableName).
				Str("event", event).
				Msg("failed to record table event")
		}
	}()
}
