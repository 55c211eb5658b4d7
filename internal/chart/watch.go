package chart

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce absorbs the burst of events editors emit for a single save.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives the freshly decoded rows after the chart file changed.
type ReloadFunc func(ctx context.Context, rows []Row) error

// Watcher re-reads a chart file whenever it changes and hands the rows to a ReloadFunc.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger
	reload   ReloadFunc
}

func NewWatcher(path string, logger *slog.Logger, reload ReloadFunc) *Watcher {
	return &Watcher{path: path, debounce: DefaultDebounce, log: logger, reload: reload}
}

// WithDebounce overrides the debounce delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher { w.debounce = d; return w }

// Run blocks until ctx is cancelled. The parent directory is watched rather
// than the file so atomic saves (write temp, rename over) keep being seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolving chart path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	w.log.Info("watching chart file", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.handleChange(ctx, abs)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("chart watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleChange(ctx context.Context, path string) {
	rows, err := LoadFile(path)
	if err != nil {
		w.log.Warn("chart reload skipped", "path", path, "err", err)
		return
	}
	if err := w.reload(ctx, rows); err != nil {
		w.log.Error("chart reload failed", "path", path, "err", err)
		return
	}
	w.log.Info("chart reloaded", "path", path, "rows", len(rows))
}
