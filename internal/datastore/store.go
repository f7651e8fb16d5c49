// Package datastore is the worker's gateway to the relational store: a bounded
// connection pool, per-call deadlines, short transactions and retries of
// transient failures.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

const (
	defaultCommandTimeout = 30 * time.Second
	defaultRetryAttempts  = 3
	connMaxLifetime       = 30 * time.Minute
)

// Store owns the connection pool. It is created once at startup and passed
// to every component that needs storage.
type Store struct {
	db       *gorm.DB
	log      logger.Logger
	timeout  time.Duration
	attempts int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps written by the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the configured database, sizes the pool and pings it.
// Any failure is a transient infrastructure error; the worker treats it as
// fatal at startup.
func Open(ctx context.Context, settings *conf.DatabaseSettings, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.Global().Module(component)
	}

	dialector, target, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, settings.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Transient(fmt.Errorf("open %s database: %w", settings.Driver, err), component, "open")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Transient(fmt.Errorf("get sql.DB: %w", err), component, "open")
	}
	sqlDB.SetMaxOpenConns(settings.MaxConns)
	sqlDB.SetMaxIdleConns(settings.MinConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	s := newStore(db, log, settings.CommandTimeout, settings.RetryAttempts, opts...)

	if err := s.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if settings.AutoMigrate {
		if err := s.AutoMigrate(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	log.Info("database pool initialized",
		logger.String("driver", settings.Driver),
		logger.String("target", target),
		logger.Int("min_conns", settings.MinConns),
		logger.Int("max_conns", settings.MaxConns))

	return s, nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, log logger.Logger, opts ...Option) *Store {
	return newStore(db, log, defaultCommandTimeout, defaultRetryAttempts, opts...)
}

func newStore(db *gorm.DB, log logger.Logger, timeout time.Duration, attempts int, opts ...Option) *Store {
	if log == nil {
		log = logger.NewDiscard()
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}
	s := &Store{
		db:       db,
		log:      log,
		timeout:  timeout,
		attempts: attempts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func dialectorFor(settings *conf.DatabaseSettings) (gorm.Dialector, string, error) {
	switch settings.Driver {
	case "postgres":
		return postgres.Open(settings.DSN), "postgres", nil
	case "mysql":
		return mysql.Open(settings.DSN), "mysql", nil
	case "sqlite":
		if dir := filepath.Dir(settings.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, "", errors.New(err).
					Component(component).
					Category(errors.CategoryFileIO).
					Context("path", settings.Path).
					Build()
			}
		}
		return sqlite.Open(SQLiteDSN(settings.Path)), settings.Path, nil
	default:
		return nil, "", errors.Newf("unsupported database driver %q", settings.Driver).
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SQLiteDSN returns a DSN with WAL, busy timeout and foreign keys enabled.
func SQLiteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Transient(err, component, "ping")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Transient(fmt.Errorf("ping database: %w", err), component, "ping")
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates all worker tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.Do(ctx, "auto_migrate", func(db *gorm.DB) error {
		return db.AutoMigrate(entities.All()...)
	})
}

// Do runs fn with a connection bound to a context carrying the command
// timeout. Transient failures are retried with exponential backoff.
func (s *Store) Do(ctx context.Context, operation string, fn func(db *gorm.DB) error) error {
	return s.retry(ctx, operation, func(ctx context.Context) error {
		return fn(s.db.WithContext(ctx))
	})
}

// InTx runs fn inside one transaction under the command timeout. The whole
// transaction is retried on transient failure.
func (s *Store) InTx(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	return s.retry(ctx, operation, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
}

func (s *Store) retry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		err := mapError(fn(callCtx), operation)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.log.Warn("retrying database operation",
			logger.String("operation", operation),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", wait),
			logger.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.attempts-1)), ctx)
	return backoff.RetryNotify(op, b, notify)
}
