package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service is a network server with graceful shutdown.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Starter is a background loop that runs until its context ends.
type Starter interface {
	Start(ctx context.Context) error
}

// Runner is a foreground loop that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunServer starts every service and the optional reclaimer, then blocks until
// SIGINT/SIGTERM, ctx cancellation, or the first failure. Services are shut down
// within shutdownTimeout.
func RunServer(
	ctx context.Context,
	logger *slog.Logger,
	services []Service,
	reclaimer Starter,
	shutdownTimeout time.Duration,
) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	for _, service := range services {
		g.Go(func() error {
			return service.Start(gctx)
		})
	}

	if reclaimer != nil {
		g.Go(func() error {
			return ignoreCanceled(reclaimer.Start(gctx))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, service := range services {
			if err := service.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}

// RunWorker runs the worker, and the reclaimer when one is given, until SIGINT/SIGTERM or
// ctx cancellation. In-flight messages are settled before it returns.
func RunWorker(ctx context.Context, logger *slog.Logger, worker Runner, reclaimer Starter) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(worker.Run(gctx))
	})

	if reclaimer != nil {
		g.Go(func() error {
			return ignoreCanceled(reclaimer.Start(gctx))
		})
	}

	err := g.Wait()
	logger.Info("worker stopped")
	return err
}
