package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// RunPublish stores payload as a new message.
func RunPublish(
	ctx context.Context,
	publishUseCase messageUseCase.PublishUseCase,
	logger *slog.Logger,
	writer io.Writer,
	payload string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	req := dto.PublishMessageRequest{Payload: json.RawMessage(payload)}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	msg, err := publishUseCase.Publish(ctx, req.Payload)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Info("message published", slog.Int64("message_id", msg.ID))

	if format == "json" {
		return writeJSON(writer, dto.MapMessageToResponse(msg, time.Now()))
	}

	_, err = fmt.Fprintf(writer, "Published message %d\n", msg.ID)
	return err
}
