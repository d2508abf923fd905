package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rosh/internal/config"
	"rosh/internal/console"
	"rosh/internal/kernel"
	"rosh/internal/logger"
	"rosh/internal/privileged"
	"rosh/internal/storage"
	"rosh/internal/svc/clock"
	"rosh/internal/svc/shell"
	"rosh/internal/vfs"
)

// errIdle ends the tick loop once input is exhausted and the shell is idle.
var errIdle = errors.New("input exhausted")

const shutdownTimeout = 5 * time.Second

// run boots the kernel and drives it until ctx is done or, after in reaches
// EOF, until the shell has nothing left to do.
func run(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer log.Close()
	slog.SetDefault(log.Logger)
	defer log.WatchHangup()()

	slog.Info("rosh starting", "version", Version, "driver", cfg.Driver, "tick", cfg.TickInterval)

	store, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	if m, ok := store.(*storage.Memory); ok {
		m.Latency = cfg.StoreLatency
	}
	fs := vfs.New()
	if err := fs.Init(ctx, store); err != nil {
		_ = store.Close()
		return fmt.Errorf("init filesystem: %w", err)
	}

	term := console.NewTerminal(out)
	k := kernel.New(term, fs,
		kernel.WithMaxTasks(cfg.MaxTasks),
		kernel.WithDeliveryBudget(cfg.DeliveryBudget))
	sh := shell.New(shell.WithDemoLifetime(cfg.DemoLifetime))
	if err := k.SpawnWithPID(clock.New(), kernel.PIDClock); err != nil {
		return err
	}
	if err := k.SpawnWithPID(sh, kernel.PIDShell); err != nil {
		return err
	}

	var eof atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				k.Tick()
				// shell state is only touched by Tick, which runs on this goroutine
				if eof.Load() && term.Pending() == 0 && sh.Waiting() && k.Pending() == 0 {
					return errIdle
				}
			}
		}
	})

	g.Go(func() error {
		err := term.Feed(gctx, in)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		eof.Store(true)
		return nil
	})

	if cfg.ControlAddr != "" {
		g.Go(func() error {
			return privileged.NewControlPlane(k).Serve(gctx, cfg.ControlAddr)
		})
	}

	err = g.Wait()
	if errors.Is(err, errIdle) {
		err = nil
	}
	term.Append("\n")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := k.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("shutdown", "error", serr)
	}
	slog.Info("rosh stopped", "ticks", k.TickCount())
	return err
}
