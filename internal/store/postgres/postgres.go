// Package postgres provides the "postgres" store.Driver: sqlx repositories
// over lib/pq, instrumented with otelsql.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrationLockKey serializes schema setup across replicas.
const migrationLockKey = 0x61756374

func init() {
	store.Register("postgres", openPostgres)
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, clk).Repositories(), nil
}

// Connect opens and verifies a Postgres connection with OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN()

	// Register the OTel-instrumented driver wrapping lib/pq.
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering otel driver: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("locking schema: %w", err)
	}
	for _, e := range entries {
		script, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("applying %s: %w", e.Name(), err)
		}
	}
	return tx.Commit()
}

// Store wires the repositories to a database handle.
type Store struct {
	db    *sqlx.DB
	clock clock.Clock
}

// New returns a Store on db.
func New(db *sqlx.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

func (s *Store) tx(q sqlx.ExtContext) *store.Tx {
	return &store.Tx{
		Auctions:    NewAuctionRepo(q, s.clock),
		Bids:        NewBidRepo(q),
		Cooldowns:   NewCooldownRepo(q),
		Auctioneers: NewParticipantRepo(q, "auctioneers", s.clock),
		OptIns:      NewParticipantRepo(q, "outbid_opt_ins", s.clock),
		Events:      NewEventStore(q, s.clock),
	}
}

// InTx implements store.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, s.tx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Repositories returns repositories that run each statement on its own.
func (s *Store) Repositories() *store.Repositories {
	tx := s.tx(s.db)
	return &store.Repositories{
		Auctions:    tx.Auctions,
		Bids:        tx.Bids,
		Cooldowns:   tx.Cooldowns,
		Auctioneers: tx.Auctioneers,
		OptIns:      tx.OptIns,
		Events:      tx.Events,
		Tx:          s,
		Closer:      s.db,
		Ping:        s.db.PingContext,
	}
}

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
	}
	return err
}
