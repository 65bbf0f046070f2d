// Package internal provides the application wiring and the command
// handlers behind the juv CLI.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/juv/internal/editor"
	"github.com/starford/juv/internal/gitrev"
	"github.com/starford/juv/internal/mcpserver"
	"github.com/starford/juv/internal/noteservice"
	"github.com/starford/juv/internal/storage"
	"github.com/starford/juv/internal/ui"
	"github.com/starford/juv/internal/uv"
	"github.com/starford/juv/internal/watch"
)

// App holds the configured service and the streams commands write to.
type App struct {
	config  *Config
	logger  *slog.Logger
	store   *storage.FS
	service *noteservice.Service
	uv      *uv.Client
	printer *ui.Printer

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewLogger returns a text logger when w is a terminal and a JSON logger
// otherwise.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if ui.IsTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New builds the application from the given options.
func New(opts ...Option) (*App, error) {
	a := &application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	level := cfg.App.LogLevel
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := NewLogger(a.stderr, level)
	slog.SetDefault(logger)

	var store *storage.FS
	if a.root != "" {
		s, err := storage.NewRootedFS(a.root)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		store = s
	} else {
		store = storage.NewFS()
	}

	loc, err := cfg.Stamp.Location()
	if err != nil {
		return nil, fmt.Errorf("stamp timezone: %w", err)
	}

	uvc := uv.New(cfg.UV.Binary)
	uvc.Stdin, uvc.Stdout, uvc.Stderr = a.stdin, a.stdout, a.stderr

	collab := noteservice.Collaborators{UV: uvc}
	if a.collab != nil {
		collab = *a.collab
	} else {
		ed := editor.New(cfg.Editor)
		ed.Stdin, ed.Stdout, ed.Stderr = a.stdin, a.stdout, a.stderr
		collab.Git = gitrev.New(cfg.Git.Binary, a.root)
		collab.Editor = ed
	}

	logger.Debug("app: configuration loaded",
		slog.String("editor", cfg.Editor),
		slog.String("jupyter", cfg.Jupyter),
		slog.String("python", cfg.Python),
		slog.String("uv", cfg.UV.Binary),
		slog.String("timezone", loc.String()),
		slog.String("log_level", level.String()))

	svc := noteservice.NewService(store, collab, noteservice.Settings{
		MinSimilarity: cfg.Merge.MinSimilarity,
		Location:      loc,
		Python:        cfg.Python,
		Jupyter:       cfg.Jupyter,
		Logger:        logger,
	})

	return &App{
		config:  cfg,
		logger:  logger,
		store:   store,
		service: svc,
		uv:      uvc,
		printer: ui.NewPrinter(a.stdout),
		stdin:   a.stdin,
		stdout:  a.stdout,
		stderr:  a.stderr,
	}, nil
}

// Logger returns the application logger.
func (app *App) Logger() *slog.Logger {
	return app.logger
}

// Service returns the notebook service.
func (app *App) Service() *noteservice.Service {
	return app.service
}

// ServeMCP serves the notebook tools on stdin/stdout until the client
// disconnects.
func (app *App) ServeMCP(_ context.Context, version string) error {
	srv := mcpserver.New(app.store, app.service, version)
	app.logger.Info("mcp: serving on stdio", slog.String("root", app.store.Root()))
	return srv.ServeStdio()
}

// Watch runs cb with the contents of path and again after every change
// until ctx is cancelled or the process is interrupted.
func (app *App) Watch(ctx context.Context, path string, cb watch.Callback) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return watch.File(gCtx, path, watch.DefaultDebounce, app.logger, cb)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			app.logger.Info("watch: received signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	return g.Wait()
}
