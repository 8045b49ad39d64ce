package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/hfmnet/wuhistory/internal/historysql"
	"github.com/hfmnet/wuhistory/internal/maintenance"
	"github.com/hfmnet/wuhistory/internal/schema"
)

// ApplicationVersion is stamped on newly created databases and after a
// successful upgrade.
const ApplicationVersion = "0.9.13"

// DefaultVersion is the version of a database with no DbVersion rows.
const DefaultVersion = "0.0.0.0"

// migration brings the schema to version. apply runs inside the migration's
// transaction and must not commit.
type migration struct {
	version string
	apply   func(ctx context.Context, s *Store, tx *sql.Tx) error
}

// migrations are applied in ascending version order.
var migrations = sortedMigrations([]migration{
	{version: "0.9.2", apply: migrateMetadataColumns},
	{version: "0.9.13", apply: migrateCanonicalTimestamps},
})

func sortedMigrations(ms []migration) []migration {
	sort.Slice(ms, func(i, j int) bool {
		return version.Must(version.NewVersion(ms[i].version)).
			LessThan(version.Must(version.NewVersion(ms[j].version)))
	})
	return ms
}

// Version returns the current schema version, DefaultVersion when nothing
// has been stamped.
func (s *Store) Version(ctx context.Context) (string, error) {
	exists, err := tableExists(ctx, s.db, schema.Version.Name)
	if err != nil {
		return "", err
	}
	if !exists {
		return DefaultVersion, nil
	}
	var v string
	err = s.db.QueryRowContext(ctx, `SELECT [Version] FROM [DbVersion] ORDER BY [ID] DESC LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultVersion, nil
	}
	if err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Upgrade applies every migration newer than the stamped version, each in
// its own transaction: body, stamp, commit. A failed migration is rolled
// back, leaving data and version unchanged, and returned as *UpgradeError.
// Running Upgrade on an up-to-date database changes nothing.
func (s *Store) Upgrade(ctx context.Context) error {
	exists, err := tableExists(ctx, s.db, schema.Version.Name)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, schema.Version.Create); err != nil {
			return fmt.Errorf("create version table: %w", err)
		}
	}

	stamped, err := s.Version(ctx)
	if err != nil {
		return err
	}
	current, err := version.NewVersion(stamped)
	if err != nil {
		return &UpgradeError{From: stamped, To: ApplicationVersion, Err: fmt.Errorf("parse stamped version: %w", err)}
	}

	for _, m := range migrations {
		target := version.Must(version.NewVersion(m.version))
		if !target.GreaterThan(current) {
			continue
		}
		if err := s.runMigration(ctx, m); err != nil {
			return &UpgradeError{From: current.Original(), To: m.version, Err: err}
		}
		s.logger.Info("history database upgraded", "from", current.Original(), "to", m.version)
		current = target
	}

	app := version.Must(version.NewVersion(ApplicationVersion))
	if current.LessThan(app) {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO [DbVersion] ([Version]) VALUES (?)`, ApplicationVersion); err != nil {
			return &UpgradeError{From: current.Original(), To: ApplicationVersion, Err: err}
		}
	}
	return nil
}

func (s *Store) runMigration(ctx context.Context, m migration) error {
	// The transaction outlives ctx so a cancelled job is rolled back here
	// rather than by database/sql.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := m.apply(ctx, s, tx); err != nil {
		return err
	}
	if err := stampVersion(ctx, tx, m.version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func stampVersion(ctx context.Context, tx execer, v string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO [DbVersion] ([Version]) VALUES (?)`, v); err != nil {
		return fmt.Errorf("stamp version %s: %w", v, err)
	}
	return nil
}

// migrateMetadataColumns adds the project metadata columns, rewrites
// timestamps in the canonical layout, removes natural key duplicates,
// enforces the natural key and fills metadata for rows that have none.
func migrateMetadataColumns(ctx context.Context, s *Store, tx *sql.Tx) error {
	existing, err := columnNames(ctx, tx, schema.History.Name)
	if err != nil {
		return err
	}
	for _, c := range schema.MetadataColumns {
		if existing[c.Name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "ALTER TABLE [WuHistory] ADD COLUMN "+c.Definition()); err != nil {
			return fmt.Errorf("add column %s: %w", c.Name, err)
		}
	}

	if err := enforceNaturalKey(ctx, s, tx); err != nil {
		return err
	}

	if s.proteins == nil {
		s.logger.Warn("no metadata service; history rows keep unknown metadata")
		return nil
	}
	backfill := &maintenance.MetadataBackfill{
		Service:  s.proteins,
		Scope:    maintenance.ScopeUnknown,
		Logger:   s.logger,
		Progress: s.progress,
	}
	_, err = backfill.Run(ctx, tx)
	return err
}

// migrateCanonicalTimestamps covers databases the desktop application
// created at 0.9.2 or later: their timestamps are still in its text layout
// and the natural key is not enforced.
func migrateCanonicalTimestamps(ctx context.Context, s *Store, tx *sql.Tx) error {
	// Rewriting "...Z" text could collide with a canonical row under the index.
	if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS ["+schema.NaturalKeyIndexName+"]"); err != nil {
		return fmt.Errorf("drop natural key index: %w", err)
	}
	return enforceNaturalKey(ctx, s, tx)
}

// enforceNaturalKey canonicalizes timestamps, removes duplicates and creates
// the unique natural key index, in that order.
func enforceNaturalKey(ctx context.Context, s *Store, tx *sql.Tx) error {
	n, err := canonicalizeTimestamps(ctx, tx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("history timestamps rewritten", "rows", n)
	}

	dedup := &maintenance.DuplicateRemover{Logger: s.logger, Progress: s.progress}
	if _, err := dedup.Run(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, schema.NaturalKeyIndex); err != nil {
		return fmt.Errorf("create natural key index: %w", err)
	}
	return nil
}

type timestampRewrite struct {
	id                   int64
	download, completion string
}

// canonicalizeTimestamps rewrites DownloadDateTime and CompletionDateTime of
// every row whose stored value is not historysql.FormatTime text, so that
// equality and range comparisons against bound values hold. Values that do
// not parse are left unchanged.
func canonicalizeTimestamps(ctx context.Context, tx *sql.Tx) (int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT [ID],
		       typeof([DownloadDateTime]), CAST([DownloadDateTime] AS TEXT),
		       typeof([CompletionDateTime]), CAST([CompletionDateTime] AS TEXT)
		FROM [WuHistory]
	`)
	if err != nil {
		return 0, fmt.Errorf("read timestamps: %w", err)
	}

	var rewrites []timestampRewrite
	for rows.Next() {
		var (
			id                   int64
			dlType, cmpType      string
			download, completion sql.NullString
		)
		if err := rows.Scan(&id, &dlType, &download, &cmpType, &completion); err != nil {
			rows.Close()
			return 0, fmt.Errorf("read timestamps: %w", err)
		}
		dl, dlOK := canonicalTimestamp(dlType, download.String)
		cmp, cmpOK := canonicalTimestamp(cmpType, completion.String)
		if !dlOK {
			dl = download.String
		}
		if !cmpOK {
			cmp = completion.String
		}
		if (dlOK && dl != download.String) || (cmpOK && cmp != completion.String) {
			rewrites = append(rewrites, timestampRewrite{id: id, download: dl, completion: cmp})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("read timestamps: %w", err)
	}
	rows.Close()

	for _, r := range rewrites {
		if _, err := tx.ExecContext(ctx,
			`UPDATE [WuHistory] SET [DownloadDateTime] = ?, [CompletionDateTime] = ? WHERE [ID] = ?`,
			r.download, r.completion, r.id); err != nil {
			return 0, fmt.Errorf("rewrite timestamps of row %d: %w", r.id, err)
		}
	}
	return int64(len(rewrites)), nil
}

// canonicalTimestamp converts a stored DATETIME of SQLite storage class kind
// to historysql.FormatTime text. ok is false for values that do not parse.
func canonicalTimestamp(kind, raw string) (string, bool) {
	var (
		t   time.Time
		err error
	)
	switch kind {
	case "text":
		t, err = parseTimestamp(raw)
	case "integer":
		var n int64
		n, err = strconv.ParseInt(raw, 10, 64)
		t = time.Unix(n, 0).UTC()
	case "real":
		var f float64
		f, err = strconv.ParseFloat(raw, 64)
		t = time.Unix(int64(f), 0).UTC()
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	return historysql.FormatTime(t), true
}

func columnNames(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info([%s])", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("table info %s: %w", table, err)
		}
		names[name] = true
	}
	return names, rows.Err()
}
