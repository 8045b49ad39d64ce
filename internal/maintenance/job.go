package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// ErrCanceled is returned by a job that stopped early because its context was
// cancelled. The enclosing transaction must be rolled back.
var ErrCanceled = errors.New("maintenance job canceled")

// DBTX is the subset of *sql.Tx the jobs use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Progress is a snapshot of a running job.
type Progress struct {
	Job     string
	Done    int
	Total   int
	Message string
}

// Percent returns Done/Total as a whole percentage; 100 when Total is zero.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return p.Done * 100 / p.Total
}

// ProgressFunc receives progress updates. It is called synchronously from the
// job and must not block.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}

func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// canceled wraps the context error so callers can match either ErrCanceled or
// the context error itself.
func canceled(ctx context.Context) error {
	return errors.Join(ErrCanceled, ctx.Err())
}
