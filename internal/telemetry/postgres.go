package telemetry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"ai-voice-command-service/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const insertCommand = `INSERT INTO commands (event_id, command, response, host, outcome, intent, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING`

// Postgres stores records in the commands table.
type Postgres struct {
	db  *sql.DB
	dsn string
}

// NewPostgres opens the pool. The DSN must be a postgres:// URL, it is also
// handed to the migration runner.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres telemetry: DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	return &Postgres{db: db, dsn: dsn}, nil
}

func (p *Postgres) Name() string { return "postgres" }

// EnsureSchema pings the database and applies the embedded migrations.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, p.dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("Telemetry schema migrated")
	return nil
}

// Write inserts one row. A duplicate event ID is ignored.
func (p *Postgres) Write(ctx context.Context, rec models.TelemetryRecord) error {
	_, err := p.db.ExecContext(ctx, insertCommand,
		rec.EventID, rec.Command, rec.Response, rec.Host, rec.Outcome, rec.Intent, rec.RecordedAt)
	return err
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
