package cli

import (
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/server"
	"github.com/mcncl/jsonflat/internal/watcher"
)

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Addr     string `help:"Listen address. Overrides the config file." short:"a" placeholder:"HOST:PORT"`
	WatchDir string `help:"Also convert JSON files written to this directory. Implies watch.enabled." type:"path"`
}

// Run serves until interrupted.
func (s *ServeCmd) Run(ctx *Context, globals *Globals) error {
	cfg, logger, err := globals.setup(ctx, s.applyOverrides)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv := converter.New(logger, cfg.EncoderOptions()...)
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return server.New(cfg.Server, conv, logger.Named("http")).Run(gctx)
	})
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watcher.New(ctx.Fs, cfg.Watch, conv, logger.Named("watch")).Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("stopped", zap.Error(err))
	return err
}

func (s *ServeCmd) applyOverrides(cfg *config.Config) {
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if s.WatchDir != "" {
		cfg.Watch.Enabled = true
		cfg.Watch.Dir = s.WatchDir
	}
}

// WatchCmd converts files dropped into a directory.
type WatchCmd struct {
	Dir       string `arg:"" optional:"" help:"Directory to watch. Overrides the config file." type:"path"`
	OutputDir string `help:"Directory for CSV files. Defaults to the watched directory." short:"o" type:"path"`
}

// Run watches until interrupted.
func (w *WatchCmd) Run(ctx *Context, globals *Globals) error {
	cfg, logger, err := globals.setup(ctx, func(cfg *config.Config) {
		if w.Dir != "" {
			cfg.Watch.Dir = w.Dir
		}
		if w.OutputDir != "" {
			cfg.Watch.OutputDir = w.OutputDir
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv := converter.New(logger, cfg.EncoderOptions()...)
	return watcher.New(ctx.Fs, cfg.Watch, conv, logger).Run(sigCtx)
}
