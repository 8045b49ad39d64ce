package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DuplicateRemover deletes all but the lowest-ID row of every group of rows
// sharing a natural key (ProjectID, ProjectRun, ProjectClone, ProjectGen,
// DownloadDateTime).
type DuplicateRemover struct {
	Logger   *slog.Logger
	Progress ProgressFunc
}

// Run removes duplicates inside tx and returns the number of rows deleted.
// Running it on a table without duplicates deletes nothing. The job does not
// poll ctx between groups; a context already done when the groups are read
// yields ErrCanceled.
func (d *DuplicateRemover) Run(ctx context.Context, tx DBTX) (int64, error) {
	logger := loggerOrDefault(d.Logger).With("job", "duplicates", "run_id", newRunID())
	start := time.Now()

	keep, err := duplicateGroups(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, canceled(ctx)
		}
		return 0, err
	}
	logger.Info("duplicate groups found", "groups", len(keep))

	var removed int64
	for i, id := range keep {
		// Match on the kept row's stored values; legacy DownloadDateTime text
		// is never re-bound.
		res, err := tx.ExecContext(ctx, `
			DELETE FROM [WuHistory]
			WHERE [ID] <> ?
			  AND ([ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [DownloadDateTime]) =
			      (SELECT [ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [DownloadDateTime]
			       FROM [WuHistory] WHERE [ID] = ?)
		`, id, id)
		if err != nil {
			return removed, fmt.Errorf("remove duplicates of row %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("remove duplicates of row %d: rows affected: %w", id, err)
		}
		removed += n

		d.Progress.report(Progress{
			Job:     "duplicates",
			Done:    i + 1,
			Total:   len(keep),
			Message: fmt.Sprintf("kept row %d, removed %d", id, n),
		})
	}

	logger.Info("duplicate removal complete",
		"groups", len(keep),
		"removed", removed,
		"duration", time.Since(start))
	return removed, nil
}

// duplicateGroups returns the lowest ID of every natural-key group with more
// than one member, ascending.
func duplicateGroups(ctx context.Context, tx DBTX) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT MIN([ID])
		FROM [WuHistory]
		GROUP BY [ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [DownloadDateTime]
		HAVING COUNT(*) > 1
		ORDER BY 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query duplicate groups: %w", err)
	}
	defer rows.Close()

	var keep []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		keep = append(keep, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate groups: %w", err)
	}
	return keep, nil
}
