package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// RunStats prints message counts per state and archive counts per outcome.
func RunStats(
	ctx context.Context,
	adminUseCase messageUseCase.AdminUseCase,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stats, err := adminUseCase.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapStatsToResponse(stats))
	}

	fmt.Fprintf(writer, "Messages: unclaimed=%d leased=%d expired=%d\n", stats.Unclaimed, stats.Leased, stats.Expired)
	fmt.Fprint(writer, "Archived:")
	for _, outcome := range domain.Outcomes {
		fmt.Fprintf(writer, " %s=%d", outcome, stats.Archived[outcome])
	}
	_, err = fmt.Fprintln(writer)
	return err
}
