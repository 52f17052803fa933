// Package watcher converts JSON files as they appear in a directory.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/worker"
)

// Watcher converts *.json files written to a directory into CSV files.
type Watcher struct {
	fs     afero.Fs
	cfg    config.WatchConfig
	conv   *converter.Converter
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
}

// New creates a Watcher. Reads and writes go through fs while change
// notifications come from the operating system.
func New(fs afero.Fs, cfg config.WatchConfig, conv *converter.Converter, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fs:     fs,
		cfg:    cfg,
		conv:   conv,
		logger: logger,
		timers: make(map[string]*time.Timer),
		ready:  make(chan string, 16),
	}
}

// Run watches the configured directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	defer w.stopTimers()

	w.logger.Info("watching directory",
		zap.String("dir", w.cfg.Dir),
		zap.Duration("debounce", w.cfg.Debounce),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !isJSONFile(event.Name) || !event.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			w.logger.Debug("file event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			w.schedule(ctx, event.Name)

		case path := <-w.ready:
			if _, err := w.ConvertFile(ctx, path); err != nil {
				w.logger.Error("conversion failed", zap.String("path", path), zap.Error(err))
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule queues path once no further events arrive for the debounce
// interval.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// ConvertFile converts the JSON file at path and writes the CSV next to it,
// or into the output directory when one is configured. It returns the path
// of the written file.
func (w *Watcher) ConvertFile(ctx context.Context, path string) (string, error) {
	task := worker.Start(w.conv, w.logger, worker.Request{Fs: w.fs, Path: path})
	defer task.Close()

	result, err := task.Wait(ctx)
	if err != nil {
		return "", err
	}

	outDir := w.cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := w.fs.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.NewOutputError(fmt.Sprintf("failed to create %s", outDir), err)
	}

	outPath := filepath.Join(outDir, result.FileName)
	if err := afero.WriteFile(w.fs, outPath, result.CSV, 0o644); err != nil {
		return "", errors.NewOutputError(fmt.Sprintf("failed to write %s", outPath), err)
	}

	w.logger.Info("converted file",
		zap.String("input", path),
		zap.String("output", outPath),
		zap.Int("rows", result.Rows),
		zap.String("task", task.ID()),
	)
	return outPath, nil
}

func isJSONFile(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".json")
}
