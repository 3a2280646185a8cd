// Package http provides HTTP handlers for publishing, leasing, settling and inspecting
// queue messages.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/httputil"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
	customValidation "github.com/allisson/leasemq/internal/validation"
)

// MessageHandler handles HTTP requests for the message store and the lease protocol.
type MessageHandler struct {
	publishUseCase messageUseCase.PublishUseCase
	leaseUseCase   messageUseCase.LeaseUseCase
	adminUseCase   messageUseCase.AdminUseCase
	logger         *slog.Logger
	now            func() time.Time
}

// NewMessageHandler creates a new message handler with required dependencies.
func NewMessageHandler(
	publishUseCase messageUseCase.PublishUseCase,
	leaseUseCase messageUseCase.LeaseUseCase,
	adminUseCase messageUseCase.AdminUseCase,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		publishUseCase: publishUseCase,
		leaseUseCase:   leaseUseCase,
		adminUseCase:   adminUseCase,
		logger:         logger,
		now:            time.Now,
	}
}

// PublishHandler stores a new message.
// POST /v1/messages - Returns 201 Created with the stored message.
func (h *MessageHandler) PublishHandler(c *gin.Context) {
	var req dto.PublishMessageRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	msg, err := h.publishUseCase.Publish(c.Request.Context(), req.Payload)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapMessageToResponse(msg, h.now()))
}

// ListHandler lists messages in the message store.
// GET /v1/messages?offset=0&limit=50 - Returns 200 OK with a page of messages.
func (h *MessageHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	messages, err := h.adminUseCase.ListMessages(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMessagesToListResponse(messages, h.now()))
}

// GetHandler retrieves a message by id.
// GET /v1/messages/:id - Returns 200 OK or 404 once the message has been archived.
func (h *MessageHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	msg, err := h.adminUseCase.GetMessage(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMessageToResponse(msg, h.now()))
}

// ClearHandler removes every message and archive record.
// DELETE /v1/messages - Returns 200 OK with the number of removed rows.
func (h *MessageHandler) ClearHandler(c *gin.Context) {
	result, err := h.adminUseCase.Clear(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ClearResponse{Messages: result.Messages, Archived: result.Archived})
}

// AcquireHandler leases a message.
// POST /v1/messages/:id/lease - Returns 200 OK with the lease or 409 not_available.
func (h *MessageHandler) AcquireHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.AcquireLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	lease, err := h.leaseUseCase.Acquire(c.Request.Context(), id, req.LeaseDuration())
	if err != nil {
		if errors.Is(err, domain.ErrNotAvailable) {
			err = httputil.WithCode(err, "not_available")
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapLeaseToResponse(lease))
}

// SettleHandler archives a leased message with the reported outcome.
// POST /v1/messages/:id/settle - Returns 200 OK with the archive record or 409 lease_conflict.
func (h *MessageHandler) SettleHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.SettleLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	record, err := h.leaseUseCase.Settle(
		c.Request.Context(),
		id,
		req.LeaseToken,
		domain.Outcome(req.Outcome),
		req.HandledBy,
		req.Details,
	)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseConflict) {
			err = httputil.WithCode(err, "lease_conflict")
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapArchiveRecordToResponse(record))
}

func (h *MessageHandler) parseID(c *gin.Context) (int64, bool) {
	return parseIDParam(c, h.logger)
}

// parseIDParam parses the :id path parameter as a positive integer.
func parseIDParam(c *gin.Context, logger *slog.Logger) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid id format: must be a positive integer"),
			logger)
		return 0, false
	}
	return id, true
}
