// Package sqlite provides the "sqlite" store.Driver: gorm models over an
// embedded SQLite file, for single-node deployments.
//
// The pool holds a single connection, so transactions on different auctions
// run one at a time. Use the postgres driver when many auctions are busy at
// once.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

func init() {
	store.Register("sqlite", openSQLite)
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg.Path, clk)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return New(db).Repositories()
}

// Connect opens the database file at path through an otelsql-instrumented
// connection. SQLite allows one writer, so the pool holds one connection and
// transactions queue on it.
func Connect(ctx context.Context, path string, clk clock.Clock) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is empty")
	}

	sqlDB, err := otelsql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000",
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return clk.Now().UTC() },
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initializing gorm: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&auctionRow{}, &bidRow{}, &cooldownRow{}, &eventRow{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	for _, table := range []string{auctioneersTable, optInsTable} {
		if err := db.Table(table).AutoMigrate(&participantRow{}); err != nil {
			return fmt.Errorf("migrating %s: %w", table, err)
		}
	}
	return nil
}

// Store wires the repositories to a gorm handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) tx(db *gorm.DB) *store.Tx {
	return &store.Tx{
		Auctions:    &AuctionRepo{db: db},
		Bids:        &BidRepo{db: db},
		Cooldowns:   &CooldownRepo{db: db},
		Auctioneers: &ParticipantRepo{db: db, table: auctioneersTable},
		OptIns:      &ParticipantRepo{db: db, table: optInsTable},
		Events:      &EventStore{db: db},
	}
}

// InTx implements store.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.tx(tx))
	})
}

// Repositories returns repositories that run each statement on its own.
func (s *Store) Repositories() (*store.Repositories, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql handle: %w", err)
	}
	tx := s.tx(s.db)
	return &store.Repositories{
		Auctions:    tx.Auctions,
		Bids:        tx.Bids,
		Cooldowns:   tx.Cooldowns,
		Auctioneers: tx.Auctioneers,
		OptIns:      tx.OptIns,
		Events:      tx.Events,
		Tx:          s,
		Closer:      sqlDB,
		Ping:        sqlDB.PingContext,
	}, nil
}

// mapErr translates gorm errors into store errors.
func mapErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}
