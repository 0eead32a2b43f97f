package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxIdleConns = 5

// Database is the supervised data store handle shared by every repository.
// Callers run EnsureAlive before a unit of work; when the pool has been idle
// longer than idleTimeout it is pinged and, on failure, flushed and pinged again.
type Database struct {
	db          *gorm.DB
	sqlDB       *sql.DB
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// NewDatabase opens a gorm connection backed by pgx. The schema is owned by
// the SQL files in migrations/, never by AutoMigrate.
func NewDatabase(cfg *config.Config) (*Database, error) {
	level := logger.Warn
	if cfg.Env == "production" {
		level = logger.Silent
	}
	return Open(postgres.Open(cfg.DatabaseURL), cfg.DBMaxOpenConns, cfg.DBIdleTimeout(), logger.Default.LogMode(level))
}

// Open wraps any gorm dialector. Tests use it with sqlite.
func Open(dialector gorm.Dialector, maxOpenConns int, idleTimeout time.Duration, gormLogger logger.Interface) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)

	return &Database{
		db:          db,
		sqlDB:       sqlDB,
		idleTimeout: idleTimeout,
		now:         time.Now,
		lastUsed:    time.Now(),
	}, nil
}

// Gorm returns the underlying handle. Repositories keep it for their lifetime.
func (d *Database) Gorm() *gorm.DB { return d.db }

// Ping runs the reachability query unconditionally.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.WithContext(ctx).Exec("SELECT 1").Error
}

// EnsureAlive pings the store when it has been idle past the timeout.
func (d *Database) EnsureAlive(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.idleTimeout <= 0 || now.Sub(d.lastUsed) < d.idleTimeout {
		d.lastUsed = now
		return nil
	}

	err := d.Ping(ctx)
	if err == nil {
		d.lastUsed = now
		return nil
	}
	log.Warn().Err(err).Dur("idle", now.Sub(d.lastUsed)).Msg("database: stale connection, reconnecting")

	// Dropping every idle connection forces the pool to dial fresh ones.
	d.sqlDB.SetMaxIdleConns(0)
	d.sqlDB.SetMaxIdleConns(maxIdleConns)

	if err := d.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	d.lastUsed = now
	log.Info().Msg("database: reconnected")
	return nil
}

func (d *Database) Close() error { return d.sqlDB.Close() }

// MigrateUp applies every pending embedded migration.
func MigrateUp(databaseURL string) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown reverts the last n migrations; n <= 0 reverts all of them.
func MigrateDown(databaseURL string, n int) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if n > 0 {
		err = m.Steps(-n)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func newMigrate(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL))
}

// pgx5URL rewrites a postgres:// DSN to the scheme the pgx/v5 migrate driver registers.
func pgx5URL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
