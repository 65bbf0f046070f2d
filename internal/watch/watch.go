// Package watch re-runs a callback whenever a file's contents change.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/juv/internal/checksum"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Callback receives the file's current contents.
type Callback func(data []byte) error

// File calls cb with the contents of path, then again after every change
// that alters them, until ctx is cancelled. The parent directory is
// watched so that files replaced by rename are still followed. Bursts of
// events are collapsed into one call after debounce.
func File(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, cb Callback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	last := ""
	fire := func() error {
		data, err := os.ReadFile(abs)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("watch: file missing", slog.String("path", abs))
				return nil
			}
			return err
		}
		sum := checksum.Sum(data)
		if sum == last {
			logger.Debug("watch: unchanged", slog.String("path", abs))
			return nil
		}
		last = sum
		return cb(data)
	}

	if err := fire(); err != nil {
		return err
	}
	logger.Info("watch: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-timerCh:
			if err := fire(); err != nil {
				logger.Warn("watch: render failed", slog.String("path", abs), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}
