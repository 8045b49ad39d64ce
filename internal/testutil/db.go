package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hfmnet/wuhistory/internal/schema"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// OpenRawDB opens a plain SQLite database (no custom functions, no schema) in
// a temp directory and returns it with its path. The database is closed when
// the test ends.
func OpenRawDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "WuHistory.db3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db, path
}

// CreateLegacyTable creates the pre-0.9.2 history table: no metadata
// columns, no unique index, no version log.
func CreateLegacyTable(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(schema.LegacyHistoryCreate); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
}

// CreateHistoryTable creates the current history table without the natural
// key index, so tests can seed duplicates.
func CreateHistoryTable(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(schema.History.Create); err != nil {
		t.Fatalf("create history table: %v", err)
	}
}

// LegacyTimeLayout is the text the desktop application stored in DATETIME
// columns: UTC ISO 8601 with a "Z" suffix and at most seven fractional
// digits, e.g. "2024-03-01 10:00:00Z".
const LegacyTimeLayout = "2006-01-02 15:04:05.9999999Z"

// InsertLegacyRow writes the base columns of r directly, bypassing
// validation and duplicate checks, with timestamps in LegacyTimeLayout. It
// returns the new row ID.
func InsertLegacyRow(t *testing.T, db *sql.DB, r workunit.Record) int64 {
	t.Helper()
	return InsertRowWithLayout(t, db, r, LegacyTimeLayout)
}

// InsertRowWithLayout is InsertLegacyRow with timestamps formatted in UTC
// using layout. historysql.TimestampLayout writes what the store writes.
func InsertRowWithLayout(t *testing.T, db *sql.DB, r workunit.Record, layout string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO [WuHistory]
		([ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [InstanceName], [InstancePath],
		 [Username], [Team], [CoreVersion], [FramesCompleted], [FrameTime], [Result],
		 [DownloadDateTime], [CompletionDateTime])
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ProjectID, r.ProjectRun, r.ProjectClone, r.ProjectGen,
		r.ClientName, r.ClientPath, r.Username, r.Team,
		r.CoreVersion, r.FramesCompleted, int64(r.FrameTime.Seconds()), int(r.Result),
		r.DownloadTime.UTC().Format(layout), r.CompletionTime.UTC().Format(layout),
	)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("insert legacy row: last insert id: %v", err)
	}
	return id
}

// MetadataSnapshot is a row's ID with its metadata columns, for before/after
// comparisons.
type MetadataSnapshot struct {
	ID      int64
	Protein workunit.Protein
}

// SnapshotMetadata reads the metadata columns of every row ordered by ID.
func SnapshotMetadata(t *testing.T, db *sql.DB) []MetadataSnapshot {
	t.Helper()
	rows, err := db.Query(`
		SELECT [ID], [WorkUnitName], [KFactor], [Core], [Frames], [Atoms], [Credit], [PreferredDays], [MaximumDays]
		FROM [WuHistory] ORDER BY [ID]
	`)
	if err != nil {
		t.Fatalf("snapshot metadata: %v", err)
	}
	defer rows.Close()

	var out []MetadataSnapshot
	for rows.Next() {
		var s MetadataSnapshot
		p := &s.Protein
		if err := rows.Scan(&s.ID, &p.WorkUnitName, &p.KFactor, &p.Core, &p.Frames, &p.Atoms,
			&p.Credit, &p.PreferredDays, &p.MaximumDays); err != nil {
			t.Fatalf("snapshot metadata: scan: %v", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("snapshot metadata: %v", err)
	}
	return out
}

// CountRows returns the number of rows in the history table.
func CountRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM [WuHistory]`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
