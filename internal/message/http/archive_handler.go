package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/leasemq/internal/httputil"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/message/http/dto"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
)

// ArchiveHandler handles HTTP requests for the archive store and queue statistics.
type ArchiveHandler struct {
	adminUseCase messageUseCase.AdminUseCase
	logger       *slog.Logger
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(adminUseCase messageUseCase.AdminUseCase, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		adminUseCase: adminUseCase,
		logger:       logger,
	}
}

// ListHandler lists archive records, newest first.
// GET /v1/archive?outcome=failed&offset=0&limit=50 - Returns 200 OK with a page of records.
func (h *ArchiveHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var outcome *domain.Outcome
	if raw := c.Query("outcome"); raw != "" {
		parsed, err := domain.ParseOutcome(raw)
		if err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		outcome = &parsed
	}

	records, err := h.adminUseCase.ListArchive(c.Request.Context(), outcome, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapArchiveRecordsToListResponse(records))
}

// GetHandler retrieves an archive record by id.
// GET /v1/archive/:id - Returns 200 OK or 404.
func (h *ArchiveHandler) GetHandler(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	record, err := h.adminUseCase.GetArchiveRecord(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapArchiveRecordToResponse(record))
}

// StatsHandler reports message counts by state and archive counts by outcome.
// GET /v1/stats - Returns 200 OK.
func (h *ArchiveHandler) StatsHandler(c *gin.Context) {
	stats, err := h.adminUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToResponse(stats))
}
