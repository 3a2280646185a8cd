package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// RunClear deletes every message and archive record. Without yes it asks for
// confirmation on the reader first.
func RunClear(
	ctx context.Context,
	adminUseCase messageUseCase.AdminUseCase,
	logger *slog.Logger,
	streams IOTuple,
	yes bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if !yes {
		_, err := fmt.Fprint(streams.Writer, "This deletes every message and archive record. Continue? [y/N]: ")
		if err != nil {
			return err
		}
		answer, err := bufio.NewReader(streams.Reader).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			_, err := fmt.Fprintln(streams.Writer, "Aborted")
			return err
		}
	}

	result, err := adminUseCase.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	logger.Info("queue cleared",
		slog.Int64("messages", result.Messages),
		slog.Int64("archived", result.Archived),
	)

	if format == "json" {
		return writeJSON(streams.Writer, dto.ClearResponse{Messages: result.Messages, Archived: result.Archived})
	}

	_, err = fmt.Fprintf(
		streams.Writer,
		"Deleted %d message(s) and %d archive record(s)\n",
		result.Messages,
		result.Archived,
	)
	return err
}
