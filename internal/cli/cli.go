// Package cli defines the jsonflat commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/log"
)

// Version information
const (
	Name    = "jsonflat"
	Version = "0.1.0"
)

// Globals are flags shared by every command.
type Globals struct {
	Config    string `help:"Path to a config file. Defaults to the nearest .jsonflat.yml." short:"c" type:"path"`
	Debug     bool   `help:"Enable debug logging." short:"d"`
	LogFormat string `help:"Log format: console or json. Overrides the config file." placeholder:"FORMAT"`
}

// CLI is the root command.
type CLI struct {
	Globals

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert a JSON file or stdin to CSV."`
	Serve   ServeCmd   `cmd:"" help:"Serve the conversion API over HTTP."`
	Watch   WatchCmd   `cmd:"" help:"Convert JSON files as they are written to a directory."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Context carries the process environment into commands.
type Context struct {
	context.Context

	Fs     afero.Fs
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewContext returns a Context bound to the operating system.
func NewContext(ctx context.Context) (*Context, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.NewConfigError("failed to determine working directory", err)
	}
	return &Context{
		Context: ctx,
		Fs:      afero.NewOsFs(),
		Dir:     dir,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// Main parses args and runs the selected command.
func Main(ctx *Context, args []string) error {
	var root CLI
	parser, err := kong.New(&root,
		kong.Name(Name),
		kong.Description("A tool to flatten nested JSON into CSV spreadsheets"),
		kong.UsageOnError(),
		kong.Writers(ctx.Stdout, ctx.Stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return errors.NewInputError(err.Error(), err)
	}
	return kctx.Run(ctx, &root.Globals)
}

// setup loads the configuration and builds the logger.
func (g *Globals) setup(ctx *Context, override func(*config.Config)) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(ctx.Fs, g.Config, ctx.Dir)
	if err != nil {
		return nil, nil, errors.NewConfigError("failed to load configuration", err)
	}

	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.NewConfigError(err.Error(), err)
	}

	logger, err := log.New(cfg.Log, ctx.Stderr, g.Debug)
	if err != nil {
		return nil, nil, errors.NewConfigError("failed to create logger", err)
	}
	return cfg, logger, nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

// Run prints the version.
func (v *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "%s version %s\n", Name, Version)
	return err
}
