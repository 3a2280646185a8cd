package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// RunListArchive prints archive records, optionally filtered by outcome.
func RunListArchive(
	ctx context.Context,
	adminUseCase messageUseCase.AdminUseCase,
	writer io.Writer,
	outcome string,
	offset, limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if limit < 1 || limit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000, got: %d", limit)
	}
	if offset < 0 {
		return fmt.Errorf("offset must not be negative, got: %d", offset)
	}

	var filter *domain.Outcome
	if outcome != "" {
		parsed, err := domain.ParseOutcome(outcome)
		if err != nil {
			return fmt.Errorf("invalid outcome %q: %w", outcome, err)
		}
		filter = &parsed
	}

	records, err := adminUseCase.ListArchive(ctx, filter, offset, limit)
	if err != nil {
		return fmt.Errorf("failed to list archive: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapArchiveRecordsToListResponse(records))
	}

	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOUTCOME\tHANDLED BY\tARCHIVED AT\tDETAILS")
	for _, record := range records {
		details := ""
		if record.Details != nil {
			details = *record.Details
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			record.ID,
			record.Outcome,
			record.HandledBy,
			record.ArchivedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
			details,
		)
	}
	return tw.Flush()
}
