package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// RunReclaimer runs the reclaimer sweeps. With once set it runs a single pass of each
// sweep and reports the counts, otherwise it loops until SIGINT/SIGTERM. A failing sweep
// does not stop the other one; their errors are joined after the report.
func RunReclaimer(
	ctx context.Context,
	reclaimer messageUseCase.ReclaimerUseCase,
	logger *slog.Logger,
	writer io.Writer,
	once bool,
	format string,
) error {
	if !once {
		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return ignoreCanceled(reclaimer.Start(ctx))
	}

	if err := validateFormat(format); err != nil {
		return err
	}

	var sweepErrs []error

	expired, err := reclaimer.SweepExpiredLeases(ctx)
	if err != nil {
		sweepErrs = append(sweepErrs, fmt.Errorf("failed to sweep expired leases: %w", err))
	}

	stale, err := reclaimer.SweepStaleMessages(ctx)
	if err != nil {
		sweepErrs = append(sweepErrs, fmt.Errorf("failed to sweep stale messages: %w", err))
	}

	logger.Info("reclaimer pass completed",
		slog.Int("expired", expired),
		slog.Int("renotified", stale),
		slog.Int("failed_sweeps", len(sweepErrs)),
	)

	if format == "json" {
		err = writeJSON(writer, map[string]int{
			"expired":    expired,
			"renotified": stale,
		})
	} else {
		_, err = fmt.Fprintf(writer, "Archived %d expired lease(s), re-notified %d stale message(s)\n", expired, stale)
	}

	return errors.Join(append(sweepErrs, err)...)
}
