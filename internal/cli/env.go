package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hfmnet/wuhistory/internal/config"
	"github.com/hfmnet/wuhistory/internal/maintenance"
	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/store"
)

// newLogger builds the process logger. --verbose forces debug level;
// otherwise the configured level applies.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.Log.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config.Database.Path
}

// proteinService returns the configured metadata service, nil for source
// "none".
func (o *RootOptions) proteinService() (protein.Service, error) {
	if o.ProteinService != nil {
		return o.ProteinService, nil
	}
	pc := o.config.Protein
	switch pc.Source {
	case config.SourceFile:
		return protein.LoadCatalog(pc.CatalogPath)
	case config.SourceHTTP:
		return protein.NewClient(pc.URL,
			protein.WithHTTPClient(&http.Client{Timeout: pc.TimeoutDuration()}),
			protein.WithRateLimit(pc.RequestsPerSecond, 1),
			protein.WithLogger(o.logger),
		), nil
	default:
		return nil, nil
	}
}

// openStore opens the history database. A database that could not be
// reached is a command error.
func (o *RootOptions) openStore(ctx context.Context, progress maintenance.ProgressFunc) (*store.Store, error) {
	svc, err := o.proteinService()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load project metadata", err)
	}

	opts := []store.Option{
		store.WithLogger(o.logger),
		store.WithBusyTimeout(o.config.Database.BusyTimeout()),
	}
	if svc != nil {
		opts = append(opts, store.WithProteinService(svc))
	}
	if progress != nil {
		opts = append(opts, store.WithProgress(progress))
	}

	path := o.databasePath()
	o.logger.Debug("opening database", "path", path)
	st, err := store.Open(ctx, path, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if !st.Connected() {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "history database unavailable: "+path, store.ErrNotConnected)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM or by the
// parent context.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
