// Package worker runs a conversion on a background goroutine and reports
// its progress over a channel, for callers that must not block.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
)

// Stage names a phase of the conversion.
type Stage string

const (
	// StageProcessing covers flattening and expanding the input.
	StageProcessing Stage = "processing"
	// StageCreating covers writing the CSV output.
	StageCreating Stage = "creating"
)

// progressBuffer holds every event a task can emit: 0..100 for each stage.
const progressBuffer = 2 * 101

// Progress is a progress report of a running task.
type Progress struct {
	Stage   Stage
	Percent int
}

// Request is the input handed to a task. When Data is nil the document is
// read from Path on Fs inside the task.
type Request struct {
	Data     []byte
	FileName string

	Fs   afero.Fs
	Path string
}

func (r Request) name() string {
	if r.FileName == "" && r.Path != "" {
		return filepath.Base(r.Path)
	}
	return r.FileName
}

// Task is a single conversion running in the background. It is owned by
// the caller that started it and released with Close.
type Task struct {
	id       uuid.UUID
	progress chan Progress
	done     chan struct{}
	result   *converter.Result
	err      error
	wg       sync.WaitGroup
}

// Start begins converting req and returns immediately.
func Start(conv *converter.Converter, logger *zap.Logger, req Request) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Task{
		id:       uuid.New(),
		progress: make(chan Progress, progressBuffer),
		done:     make(chan struct{}),
	}
	logger = logger.With(zap.String("task", t.id.String()), zap.String("file", req.name()))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(t.done)
		defer close(t.progress)
		defer func() {
			if r := recover(); r != nil {
				t.result = nil
				t.err = errors.NewEncodingError("conversion panicked", fmt.Errorf("%v", r))
				logger.Error("conversion panicked", zap.Any("panic", r))
			}
		}()

		hooks := converter.Hooks{
			Expanded: t.reporter(StageProcessing),
			Encoded:  t.reporter(StageCreating),
		}
		if req.Data == nil && req.Path != "" {
			logger.Debug("conversion started", zap.String("path", req.Path))
			t.result, t.err = conv.ConvertFile(req.Fs, req.Path, hooks)
		} else {
			logger.Debug("conversion started", zap.Int("bytes", len(req.Data)))
			t.result, t.err = conv.ConvertBytes(req.Data, req.FileName, hooks)
		}
		if t.err != nil {
			logger.Debug("conversion failed", zap.Error(t.err))
		}
	}()
	return t
}

// reporter emits integer percent changes for a stage. The creating stage
// starts with an explicit 0 so consumers see the switch of phase.
func (t *Task) reporter(stage Stage) func(done, total int) {
	last := -1
	return func(done, total int) {
		if last < 0 && stage == StageCreating {
			last = 0
			t.progress <- Progress{Stage: stage, Percent: 0}
		}
		percent := 100
		if total > 0 {
			percent = done * 100 / total
		}
		if percent == last {
			return
		}
		last = percent
		t.progress <- Progress{Stage: stage, Percent: percent}
	}
}

// ID identifies the task in logs.
func (t *Task) ID() string {
	return t.id.String()
}

// Progress returns the progress events. The channel is closed once the
// task finishes.
func (t *Task) Progress() <-chan Progress {
	return t.progress
}

// Done is closed when the task has a result.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done. Cancelling ctx does not
// stop the conversion.
func (t *Task) Wait(ctx context.Context) (*converter.Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close waits for the background goroutine and discards pending progress.
func (t *Task) Close() {
	t.wg.Wait()
	for range t.progress {
	}
}
