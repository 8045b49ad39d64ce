package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// Scope selects which rows a MetadataBackfill rewrites.
type Scope int

const (
	// ScopeAll rewrites every row.
	ScopeAll Scope = iota
	// ScopeUnknown rewrites rows whose metadata is still the sentinel default.
	ScopeUnknown
	// ScopeProject rewrites rows of the project given by Arg.
	ScopeProject
	// ScopeID rewrites the single row whose ID is Arg.
	ScopeID
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeUnknown:
		return "unknown"
	case ScopeProject:
		return "project"
	case ScopeID:
		return "id"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope parses the spelling produced by String.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return ScopeAll, nil
	case "", "unknown":
		return ScopeUnknown, nil
	case "project":
		return ScopeProject, nil
	case "id":
		return ScopeID, nil
	default:
		return ScopeAll, fmt.Errorf("invalid scope %q: must be one of all, unknown, project, id", s)
	}
}

// BackfillResult summarizes a completed backfill.
type BackfillResult struct {
	Rows    int   // rows in scope
	Updated int64 // rows rewritten
	Lookups int   // metadata service calls
	// Missing lists projects the service does not know. Their rows are left
	// unchanged.
	Missing []int
}

// MetadataBackfill copies project metadata from Service onto history rows.
type MetadataBackfill struct {
	Service  protein.Service
	Scope    Scope
	Arg      int64
	Logger   *slog.Logger
	Progress ProgressFunc
}

type scopedRow struct {
	id        int64
	projectID int
}

// Run rewrites the rows in scope inside tx. Each distinct project is looked up
// once per run. Cancellation is checked before every row; a cancelled run
// returns ErrCanceled with the rows written so far still pending in tx.
func (b *MetadataBackfill) Run(ctx context.Context, tx DBTX) (BackfillResult, error) {
	var result BackfillResult
	if b.Service == nil {
		return result, errors.New("metadata backfill: no metadata service")
	}
	logger := loggerOrDefault(b.Logger).With("job", "metadata", "run_id", newRunID(), "scope", b.Scope.String())
	start := time.Now()

	rows, err := b.selectRows(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return result, canceled(ctx)
		}
		return result, err
	}
	result.Rows = len(rows)
	logger.Info("metadata backfill starting", "rows", len(rows))

	cache := make(map[int]*workunit.Protein)
	for i, row := range rows {
		if ctx.Err() != nil {
			logger.Info("metadata backfill canceled", "done", i, "total", len(rows))
			return result, canceled(ctx)
		}

		p, seen := cache[row.projectID]
		if !seen {
			result.Lookups++
			found, err := b.Service.Get(ctx, row.projectID)
			switch {
			case err == nil:
				p = &found
			case errors.Is(err, protein.ErrNotFound):
				logger.Warn("project metadata not found", "project_id", row.projectID)
				result.Missing = append(result.Missing, row.projectID)
			case ctx.Err() != nil:
				return result, canceled(ctx)
			default:
				return result, fmt.Errorf("metadata for project %d: %w", row.projectID, err)
			}
			cache[row.projectID] = p
		}

		if p != nil {
			n, err := updateRow(ctx, tx, row.id, *p)
			if err != nil {
				return result, err
			}
			result.Updated += n
		}

		b.Progress.report(Progress{
			Job:     "metadata",
			Done:    i + 1,
			Total:   len(rows),
			Message: fmt.Sprintf("row %d (project %d)", row.id, row.projectID),
		})
	}

	logger.Info("metadata backfill complete",
		"rows", result.Rows,
		"updated", result.Updated,
		"lookups", result.Lookups,
		"missing", len(result.Missing),
		"duration", time.Since(start))
	return result, nil
}

func (b *MetadataBackfill) selectRows(ctx context.Context, tx DBTX) ([]scopedRow, error) {
	query := `SELECT [ID], [ProjectID] FROM [WuHistory]`
	var args []any
	switch b.Scope {
	case ScopeAll:
	case ScopeUnknown:
		query += ` WHERE [WorkUnitName] = ''`
	case ScopeProject:
		query += ` WHERE [ProjectID] = ?`
		args = append(args, b.Arg)
	case ScopeID:
		query += ` WHERE [ID] = ?`
		args = append(args, b.Arg)
	default:
		return nil, fmt.Errorf("metadata backfill: invalid scope %d", int(b.Scope))
	}
	query += ` ORDER BY [ProjectID] ASC, [ID] ASC`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata backfill: select rows: %w", err)
	}
	defer rows.Close()

	var out []scopedRow
	for rows.Next() {
		var r scopedRow
		if err := rows.Scan(&r.id, &r.projectID); err != nil {
			return nil, fmt.Errorf("metadata backfill: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata backfill: iterate rows: %w", err)
	}
	return out, nil
}

func updateRow(ctx context.Context, tx DBTX, id int64, p workunit.Protein) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE [WuHistory]
		SET [WorkUnitName] = ?, [KFactor] = ?, [Core] = ?, [Frames] = ?, [Atoms] = ?,
		    [Credit] = ?, [PreferredDays] = ?, [MaximumDays] = ?
		WHERE [ID] = ?
	`,
		p.WorkUnitName,
		p.KFactor,
		p.Core,
		p.Frames,
		p.Atoms,
		p.Credit,
		p.PreferredDays,
		p.MaximumDays,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata backfill: update row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("metadata backfill: update row %d: rows affected: %w", id, err)
	}
	return n, nil
}
