package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hfmnet/wuhistory/internal/historysql"
	"github.com/hfmnet/wuhistory/internal/maintenance"
	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/schema"
)

// DefaultFileName is the conventional name of the history database file.
const DefaultFileName = "WuHistory.db3"

// driverName is the database/sql driver that registers the history SQL
// functions on every new connection.
const driverName = "sqlite3_wuhistory"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc(schema.FuncSlotType, toSlotType, true); err != nil {
					return fmt.Errorf("register %s: %w", schema.FuncSlotType, err)
				}
				if err := conn.RegisterFunc(schema.FuncProduction, getProduction, true); err != nil {
					return fmt.Errorf("register %s: %w", schema.FuncProduction, err)
				}
				return nil
			},
		})
	})
}

// Store is the work-unit history database.
//
// Thread-safety: Store holds no per-call state. Every operation takes its own
// connection or transaction from the pool, so a Store may be shared by
// concurrent callers.
type Store struct {
	db          *sql.DB
	path        string
	logger      *slog.Logger
	proteins    protein.Service
	progress    maintenance.ProgressFunc
	busyTimeout time.Duration
	compiler    *historysql.Compiler
	connected   atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProteinService sets the project metadata service used by inserts,
// UpdateMetadata and the 0.9.2 migration.
func WithProteinService(svc protein.Service) Option {
	return func(s *Store) { s.proteins = svc }
}

// WithProgress receives progress from maintenance jobs run by the store.
func WithProgress(fn maintenance.ProgressFunc) Option {
	return func(s *Store) { s.progress = fn }
}

// WithBusyTimeout sets how long a writer waits for the database lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// Open opens the history database at path, creating and upgrading it as
// needed.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention (see WithBusyTimeout)
//   - immediate write transactions
//
// A database that cannot be reached or created is logged and yields a Store
// with Connected() == false. Open returns an error only for an empty path or
// a failed migration (*UpgradeError).
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("open history database: empty path")
	}

	s := &Store{
		path:        path,
		logger:      slog.Default(),
		busyTimeout: 5 * time.Second,
		compiler:    historysql.NewCompiler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	registerDriver()
	db, err := sql.Open(driverName, s.dsn())
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxIdleConns(2)
	s.db = db

	if err := s.Initialize(ctx); err != nil {
		if IsUpgradeError(err) {
			db.Close()
			return nil, err
		}
		s.logger.Error("history database unavailable", "path", path, "error", err)
	}
	return s, nil
}

// dsn carries the pragmas as connection parameters so every pooled
// connection gets them, not only the first.
func (s *Store) dsn() string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_txlock=immediate",
		s.path, s.busyTimeout.Milliseconds())
}

// Initialize creates the schema when the history table is missing, verifies
// the table is readable and runs Upgrade. It is safe to call on an
// initialized store. Connected reports true only after it succeeds.
func (s *Store) Initialize(ctx context.Context) error {
	s.connected.Store(false)

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", s.path, err)
	}

	exists, err := tableExists(ctx, s.db, schema.History.Name)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.createSchema(ctx); err != nil {
			return err
		}
	}

	// Verify the table is readable before trusting it.
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM [WuHistory] LIMIT 1`)
	if err != nil {
		return fmt.Errorf("verify history table: %w", err)
	}
	rows.Close()

	if err := s.Upgrade(ctx); err != nil {
		return err
	}

	s.connected.Store(true)
	s.logger.Debug("history database ready", "path", s.path, "created", !exists)
	return nil
}

// createSchema creates both tables and the natural key index and stamps
// ApplicationVersion, in one transaction.
func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	defer tx.Rollback()

	statements := []string{schema.History.Create, schema.NaturalKeyIndex}
	versionExists, err := tableExists(ctx, tx, schema.Version.Name)
	if err != nil {
		return err
	}
	if !versionExists {
		statements = append(statements, schema.Version.Create)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := stampVersion(ctx, tx, ApplicationVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create schema: commit: %w", err)
	}
	s.logger.Info("history database created", "path", s.path, "version", ApplicationVersion)
	return nil
}

// Connected reports whether initialization completed.
func (s *Store) Connected() bool {
	return s.connected.Load()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database. Further operations return ErrNotConnected.
func (s *Store) Close() error {
	s.connected.Store(false)
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
