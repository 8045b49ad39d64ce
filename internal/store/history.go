package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"

	"github.com/hfmnet/wuhistory/internal/historyquery"
	"github.com/hfmnet/wuhistory/internal/historysql"
	"github.com/hfmnet/wuhistory/internal/maintenance"
	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/schema"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// Page is one page of a history query.
type Page struct {
	CurrentPage  int
	TotalPages   int
	TotalItems   int64
	ItemsPerPage int
	Items        []workunit.Row
}

// Insert writes rec unless it is invalid or its natural key is already
// present. It reports whether a row was written; invalid records and
// duplicates return false with a nil error.
//
// When rec carries no project metadata and the store has a metadata service,
// the snapshot is looked up first. A failed lookup is logged and the record is
// written with unknown metadata.
func (s *Store) Insert(ctx context.Context, rec workunit.Record) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if !workunit.Validate(rec) {
		s.logger.Debug("work unit rejected", "project", rec.ProjectString(), "result", rec.Result.String())
		return false, nil
	}
	rec = workunit.Normalize(rec)

	// Look metadata up before taking the write lock.
	if rec.Protein.IsUnknown() && s.proteins != nil {
		p, err := s.proteins.Get(ctx, rec.ProjectID)
		switch {
		case err == nil:
			rec.Protein = p
		case errors.Is(err, protein.ErrNotFound):
			s.logger.Debug("project metadata not found", "project_id", rec.ProjectID)
		default:
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.logger.Warn("project metadata lookup failed", "project_id", rec.ProjectID, "error", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("insert work unit: %w", err)
	}
	defer tx.Rollback()

	exists, err := s.naturalKeyExists(ctx, tx, rec)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug("work unit already in history", "project", rec.ProjectString(), "download", rec.DownloadTime)
		return false, nil
	}

	p := rec.Protein
	res, err := tx.ExecContext(ctx, `
		INSERT INTO [WuHistory]
		([ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [InstanceName], [InstancePath],
		 [Username], [Team], [CoreVersion], [FramesCompleted], [FrameTime], [Result],
		 [DownloadDateTime], [CompletionDateTime],
		 [WorkUnitName], [KFactor], [Core], [Frames], [Atoms], [Credit], [PreferredDays], [MaximumDays])
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ProjectID,
		rec.ProjectRun,
		rec.ProjectClone,
		rec.ProjectGen,
		rec.ClientName,
		rec.ClientPath,
		rec.Username,
		rec.Team,
		rec.CoreVersion,
		rec.FramesCompleted,
		int64(rec.FrameTime/time.Second),
		int64(rec.Result),
		historysql.FormatTime(rec.DownloadTime),
		historysql.FormatTime(rec.CompletionTime),
		p.WorkUnitName,
		p.KFactor,
		p.Core,
		p.Frames,
		p.Atoms,
		p.Credit,
		p.PreferredDays,
		p.MaximumDays,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert work unit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert work unit: commit: %w", err)
	}

	id, _ := res.LastInsertId()
	s.logger.Debug("work unit inserted", "id", id, "project", rec.ProjectString())
	return true, nil
}

// NaturalKeyQuery matches the row with rec's natural key.
func NaturalKeyQuery(rec workunit.Record) *historyquery.Query {
	return historyquery.New("natural key "+rec.ProjectString()).
		Where(historyquery.ColumnProjectID, historyquery.Equal, rec.ProjectID).
		Where(historyquery.ColumnProjectRun, historyquery.Equal, rec.ProjectRun).
		Where(historyquery.ColumnProjectClone, historyquery.Equal, rec.ProjectClone).
		Where(historyquery.ColumnProjectGen, historyquery.Equal, rec.ProjectGen).
		Where(historyquery.ColumnDownloadDateTime, historyquery.Equal, rec.DownloadTime)
}

func (s *Store) naturalKeyExists(ctx context.Context, tx *sql.Tx, rec workunit.Record) (bool, error) {
	r, err := s.compiler.Compile(NaturalKeyQuery(rec))
	if err != nil {
		return false, fmt.Errorf("natural key query: %w", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM [WuHistory] `+r.Where, r.Args...).Scan(&n); err != nil {
		return false, fmt.Errorf("natural key query: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Delete removes the row with the given ID and returns the number of rows
// removed (0 or 1).
func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM [WuHistory] WHERE [ID] = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete work unit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete work unit %d: rows affected: %w", id, err)
	}
	s.logger.Debug("work unit deleted", "id", id, "rows", n)
	return n, nil
}

// selectSQL returns the projection with q's filter and order, and the bound
// arguments: the bonus mode twice, then q's values.
func (s *Store) selectSQL(q *historyquery.Query, mode workunit.BonusMode) (historysql.Rendered, string, []any, error) {
	if !mode.Valid() {
		return historysql.Rendered{}, "", nil, fmt.Errorf("%w: %d", ErrInvalidBonusMode, int(mode))
	}
	r, err := s.compiler.Compile(q)
	if err != nil {
		return r, "", nil, err
	}
	args := make([]any, 0, len(r.Args)+2)
	args = append(args, int64(mode), int64(mode))
	args = append(args, r.Args...)
	return r, schema.History.Select + " " + r.Where, args, nil
}

// Fetch returns every row matching q with credit and PPD computed for mode.
func (s *Store) Fetch(ctx context.Context, q *historyquery.Query, mode workunit.BonusMode) ([]workunit.Row, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	r, query, args, err := s.selectSQL(q, mode)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q, err)
	}

	start := time.Now()
	items, err := s.queryRows(ctx, query+" "+r.OrderBy, args)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q, err)
	}
	s.logger.Debug("history fetch",
		"query", q.String(),
		"bonus", mode.String(),
		"rows", len(items),
		"duration", time.Since(start))
	return items, nil
}

// Count returns the number of rows matching q. mode only matters when q
// filters on PPD or CalcCredit.
func (s *Store) Count(ctx context.Context, q *historyquery.Query, mode workunit.BonusMode) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	_, query, args, err := s.selectSQL(q, mode)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q, err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+query+")", args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q, err)
	}
	return n, nil
}

// Page returns page (1-based) of the rows matching q, perPage rows at a time.
// A page past the end has no items.
func (s *Store) Page(ctx context.Context, page, perPage int, q *historyquery.Query, mode workunit.BonusMode) (*Page, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if page < 1 || perPage < 1 {
		return nil, fmt.Errorf("%w: page %d, %d per page", ErrInvalidPage, page, perPage)
	}

	total, err := s.Count(ctx, q, mode)
	if err != nil {
		return nil, err
	}
	r, query, args, err := s.selectSQL(q, mode)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", q, err)
	}

	start := time.Now()
	offset := int64(page-1) * int64(perPage)
	items, err := s.queryRows(ctx, query+" "+r.OrderBy+" LIMIT ? OFFSET ?", append(args, int64(perPage), offset))
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", q, err)
	}
	s.logger.Debug("history page",
		"query", q.String(),
		"page", page,
		"per_page", perPage,
		"rows", len(items),
		"duration", time.Since(start))

	return &Page{
		CurrentPage:  page,
		TotalPages:   int((total + int64(perPage) - 1) / int64(perPage)),
		TotalItems:   total,
		ItemsPerPage: perPage,
		Items:        items,
	}, nil
}

// CountCompleted counts finished units of client name, restricted to units
// completed after since when since is non-nil.
func (s *Store) CountCompleted(ctx context.Context, name string, since *time.Time) (int64, error) {
	q := historyquery.New("completed "+name).
		Where(historyquery.ColumnClientName, historyquery.Equal, norm.NFC.String(name)).
		Where(historyquery.ColumnResult, historyquery.Equal, workunit.ResultFinished)
	if since != nil {
		q.Where(historyquery.ColumnCompletionDateTime, historyquery.GreaterThan, *since)
	}
	return s.Count(ctx, q, workunit.BonusNone)
}

// CountFailed counts units of client name that did not finish, restricted to
// units downloaded after since when since is non-nil.
func (s *Store) CountFailed(ctx context.Context, name string, since *time.Time) (int64, error) {
	q := historyquery.New("failed "+name).
		Where(historyquery.ColumnClientName, historyquery.Equal, norm.NFC.String(name)).
		Where(historyquery.ColumnResult, historyquery.NotEqual, workunit.ResultFinished)
	if since != nil {
		q.Where(historyquery.ColumnDownloadDateTime, historyquery.GreaterThan, *since)
	}
	return s.Count(ctx, q, workunit.BonusNone)
}

// UpdateMetadata backfills project metadata for the rows in scope inside a
// fresh transaction. It returns true when the backfill committed and false
// when ctx was cancelled first; nothing is written in that case. Any other
// failure rolls back and is returned.
func (s *Store) UpdateMetadata(ctx context.Context, scope maintenance.Scope, arg int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if s.proteins == nil {
		return false, ErrNoProteinService
	}

	// The transaction outlives ctx so cancellation ends in an explicit
	// rollback here.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return false, fmt.Errorf("update metadata: %w", err)
	}
	defer tx.Rollback()

	job := &maintenance.MetadataBackfill{
		Service:  s.proteins,
		Scope:    scope,
		Arg:      arg,
		Logger:   s.logger,
		Progress: s.progress,
	}
	result, err := job.Run(ctx, tx)
	if errors.Is(err, maintenance.ErrCanceled) {
		if rbErr := tx.Rollback(); rbErr != nil {
			return false, fmt.Errorf("update metadata: rollback: %w", rbErr)
		}
		s.logger.Info("metadata update canceled; no rows changed", "scope", scope.String())
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("update metadata: commit: %w", err)
	}
	s.logger.Info("metadata updated",
		"scope", scope.String(),
		"rows", result.Rows,
		"updated", result.Updated,
		"missing", result.Missing)
	return true, nil
}

func (s *Store) queryRows(ctx context.Context, query string, args []any) ([]workunit.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []workunit.Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// scanRow maps one row of schema.History.Select. The column order is
// schema.ProjectedColumns followed by SlotType, PPD and CalcCredit.
func scanRow(rows *sql.Rows) (workunit.Row, error) {
	var (
		row        workunit.Row
		r          = &row.Record
		p          = &r.Protein
		frameTime  int64
		result     int64
		downloaded timestamp
		completed  timestamp
		slot       string
	)
	err := rows.Scan(
		&r.ID,
		&r.ProjectID,
		&r.ProjectRun,
		&r.ProjectClone,
		&r.ProjectGen,
		&r.ClientName,
		&r.ClientPath,
		&r.Username,
		&r.Team,
		&r.CoreVersion,
		&r.FramesCompleted,
		&frameTime,
		&result,
		&downloaded,
		&completed,
		&p.WorkUnitName,
		&p.KFactor,
		&p.Core,
		&p.Frames,
		&p.Atoms,
		&p.Credit,
		&p.PreferredDays,
		&p.MaximumDays,
		&slot,
		&row.PPD,
		&row.Credit,
	)
	if err != nil {
		return row, fmt.Errorf("scan history row: %w", err)
	}
	r.FrameTime = time.Duration(frameTime) * time.Second
	r.Result = workunit.Result(result)
	r.DownloadTime = downloaded.Time
	r.CompletionTime = completed.Time
	row.SlotType = workunit.SlotType(slot)
	return row, nil
}
