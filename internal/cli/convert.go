package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/worker"
)

// ConvertCmd converts a single document.
type ConvertCmd struct {
	Input      string `arg:"" optional:"" help:"Input JSON file. Reads stdin when omitted." type:"path"`
	Output     string `help:"Output CSV file, or a directory to write <input>.csv into. Writes stdout when omitted." short:"o" type:"path"`
	Progress   bool   `help:"Show conversion progress on stderr." short:"p"`
	CRLF       bool   `help:"Terminate records with CRLF instead of LF." name:"crlf"`
	HeaderCase string `help:"Rewrite header names: none, snake, screaming_snake, kebab, camel or lower_camel." placeholder:"CASE"`
}

// Run executes the conversion.
func (c *ConvertCmd) Run(ctx *Context, globals *Globals) error {
	cfg, logger, err := globals.setup(ctx, c.applyOverrides)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	conv := converter.New(logger, cfg.EncoderOptions()...)
	task := worker.Start(conv, logger, req)
	defer task.Close()

	if c.Progress {
		renderProgress(ctx.Stderr, task)
	}

	result, err := task.Wait(ctx)
	if err != nil {
		return err
	}
	logger.Debug("converted input",
		zap.String("task", task.ID()),
		zap.Int("rows", result.Rows),
		zap.Int("columns", result.Columns),
	)

	return c.writeOutput(ctx, result)
}

func (c *ConvertCmd) applyOverrides(cfg *config.Config) {
	if c.CRLF {
		cfg.Output.LineEnding = "crlf"
	}
	if c.HeaderCase != "" {
		cfg.Output.HeaderCase = c.HeaderCase
	}
}

// request reads JSON from stdin, or points the worker at the input file
func (c *ConvertCmd) request(ctx *Context) (worker.Request, error) {
	if c.Input != "" {
		return worker.Request{Fs: ctx.Fs, Path: c.Input}, nil
	}

	// A terminal on stdin means nothing was piped in.
	if f, ok := ctx.Stdin.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return worker.Request{}, errors.NewInputError("failed to access stdin", err)
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return worker.Request{}, errors.NewInputError("no input provided", errors.ErrNoInput)
		}
	}

	data, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return worker.Request{}, errors.NewInputError("failed to read from stdin", err)
	}
	if len(data) == 0 {
		return worker.Request{}, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return worker.Request{Data: data}, nil
}

// writeOutput writes the CSV to a file or stdout
func (c *ConvertCmd) writeOutput(ctx *Context, result *converter.Result) error {
	if c.Output == "" {
		if _, err := ctx.Stdout.Write(result.CSV); err != nil {
			return errors.NewOutputError("failed to write to stdout", err)
		}
		return nil
	}

	path := c.Output
	if isDir, _ := afero.IsDir(ctx.Fs, path); isDir {
		path = filepath.Join(path, result.FileName)
	}
	if err := afero.WriteFile(ctx.Fs, path, result.CSV, 0o644); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", path), err)
	}
	_, _ = fmt.Fprintf(ctx.Stderr, "CSV with %d rows written to %s\n", result.Rows, path)
	return nil
}

// renderProgress draws the task's progress until it finishes.
func renderProgress(w io.Writer, task *worker.Task) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(string(worker.StageProcessing)),
		progressbar.OptionClearOnFinish(),
	)
	for p := range task.Progress() {
		bar.Describe(string(p.Stage))
		_ = bar.Set(p.Percent)
	}
	_ = bar.Finish()
}
