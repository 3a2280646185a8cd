package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/message/http/dto"
	"github.com/allisson/leasemq/internal/message/usecase/mocks"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// createTestContext creates a test Gin context with the given request.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

func withID(c *gin.Context, id string) {
	c.Params = gin.Params{{Key: "id", Value: id}}
}

type handlerMocks struct {
	publish *mocks.MockPublishUseCase
	lease   *mocks.MockLeaseUseCase
	admin   *mocks.MockAdminUseCase
}

func setupMessageHandler(t *testing.T) (*MessageHandler, handlerMocks) {
	t.Helper()

	m := handlerMocks{
		publish: &mocks.MockPublishUseCase{},
		lease:   &mocks.MockLeaseUseCase{},
		admin:   &mocks.MockAdminUseCase{},
	}
	t.Cleanup(func() {
		m.publish.AssertExpectations(t)
		m.lease.AssertExpectations(t)
		m.admin.AssertExpectations(t)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewMessageHandler(m.publish, m.lease, m.admin, logger)
	handler.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC) }
	return handler, m
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestMessageHandler_PublishHandler(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success_ValidRequest", func(t *testing.T) {
		handler, m := setupMessageHandler(t)
		payload := json.RawMessage(`["fail","m1"]`)

		m.publish.On("Publish", mock.Anything, payload).
			Return(&domain.Message{ID: 1, CreatedAt: created, Payload: payload}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages", dto.PublishMessageRequest{Payload: payload})
		handler.PublishHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		response := decode[dto.MessageResponse](t, w)
		assert.Equal(t, int64(1), response.ID)
		assert.Equal(t, "unclaimed", response.State)
		assert.JSONEq(t, `["fail","m1"]`, string(response.Payload))
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := setupMessageHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages", nil)
		c.Request.Body = io.NopCloser(bytes.NewReader([]byte("invalid json")))
		handler.PublishHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decode[map[string]any](t, w)["error"])
	})

	t.Run("Error_MissingPayload", func(t *testing.T) {
		handler, _ := setupMessageHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages", map[string]any{})
		handler.PublishHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_error", decode[map[string]any](t, w)["error"])
	})

	t.Run("Error_UseCaseFailure", func(t *testing.T) {
		handler, m := setupMessageHandler(t)
		payload := json.RawMessage(`{"k":1}`)

		m.publish.On("Publish", mock.Anything, payload).Return(nil, errors.New("db down")).Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages", dto.PublishMessageRequest{Payload: payload})
		handler.PublishHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestMessageHandler_AcquireHandler(t *testing.T) {
	token := time.Date(2026, 1, 1, 12, 0, 40, 123456000, time.UTC)

	t.Run("Success_Leased", func(t *testing.T) {
		handler, m := setupMessageHandler(t)
		msg := &domain.Message{ID: 7, Payload: json.RawMessage(`["ok"]`), LeaseExpiresAt: &token}
		lease, err := domain.NewLease(msg)
		require.NoError(t, err)

		m.lease.On("Acquire", mock.Anything, int64(7), 30*time.Second).Return(lease, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/lease", dto.AcquireLeaseRequest{LeaseSeconds: 30})
		withID(c, "7")
		handler.AcquireHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode[dto.LeaseResponse](t, w)
		assert.Equal(t, int64(7), response.MessageID)
		assert.True(t, token.Equal(response.LeaseToken))
	})

	t.Run("Error_NotAvailable", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.lease.On("Acquire", mock.Anything, int64(7), 30*time.Second).Return(nil, domain.ErrNotAvailable).Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/lease", dto.AcquireLeaseRequest{LeaseSeconds: 30})
		withID(c, "7")
		handler.AcquireHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "not_available", decode[map[string]any](t, w)["error"])
	})

	t.Run("Error_InvalidLeaseSeconds", func(t *testing.T) {
		handler, _ := setupMessageHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/lease", dto.AcquireLeaseRequest{LeaseSeconds: 0})
		withID(c, "7")
		handler.AcquireHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		handler, _ := setupMessageHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages/abc/lease", dto.AcquireLeaseRequest{LeaseSeconds: 30})
		withID(c, "abc")
		handler.AcquireHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestMessageHandler_SettleHandler(t *testing.T) {
	token := time.Date(2026, 1, 1, 12, 0, 40, 123456000, time.UTC)
	sameToken := mock.MatchedBy(func(got time.Time) bool { return got.Equal(token) })
	details := "simulated failure"

	t.Run("Success_Archived", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.lease.On("Settle", mock.Anything, int64(7), sameToken, domain.OutcomeFailed, "worker-a", &details).
			Return(&domain.ArchiveRecord{
				ID:        3,
				Payload:   json.RawMessage(`["fail"]`),
				Outcome:   domain.OutcomeFailed,
				HandledBy: "worker-a",
				Details:   &details,
			}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/settle", dto.SettleLeaseRequest{
			LeaseToken: token,
			Outcome:    "failed",
			HandledBy:  "worker-a",
			Details:    &details,
		})
		withID(c, "7")
		handler.SettleHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode[dto.ArchiveRecordResponse](t, w)
		assert.Equal(t, int64(3), response.ID)
		assert.Equal(t, "failed", response.Outcome)
		assert.Equal(t, "simulated failure", *response.Details)
	})

	t.Run("Error_LeaseConflict", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.lease.On("Settle", mock.Anything, int64(7), sameToken, domain.OutcomeSuccess, "worker-a", (*string)(nil)).
			Return(nil, domain.ErrLeaseConflict).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/settle", dto.SettleLeaseRequest{
			LeaseToken: token,
			Outcome:    "success",
			HandledBy:  "worker-a",
		})
		withID(c, "7")
		handler.SettleHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "lease_conflict", decode[map[string]any](t, w)["error"])
	})

	t.Run("Error_ReservedOutcome", func(t *testing.T) {
		handler, _ := setupMessageHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages/7/settle", dto.SettleLeaseRequest{
			LeaseToken: token,
			Outcome:    "lease_expired",
			HandledBy:  "worker-a",
		})
		withID(c, "7")
		handler.SettleHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestMessageHandler_ListGetClear(t *testing.T) {
	leased := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)

	t.Run("List", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.admin.On("ListMessages", mock.Anything, 0, 2).Return([]*domain.Message{
			{ID: 1, Payload: json.RawMessage(`[]`)},
			{ID: 2, Payload: json.RawMessage(`[]`), LeaseExpiresAt: &leased},
		}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/messages?limit=2", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode[dto.ListMessagesResponse](t, w)
		require.Len(t, response.Data, 2)
		assert.Equal(t, "unclaimed", response.Data[0].State)
		assert.Equal(t, "leased", response.Data[1].State)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.admin.On("GetMessage", mock.Anything, int64(9)).Return(nil, domain.ErrMessageNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/messages/9", nil)
		withID(c, "9")
		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Clear", func(t *testing.T) {
		handler, m := setupMessageHandler(t)

		m.admin.On("Clear", mock.Anything).Return(&domain.ClearResult{Messages: 2, Archived: 5}, nil).Once()

		c, w := createTestContext(http.MethodDelete, "/v1/messages", nil)
		handler.ClearHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, dto.ClearResponse{Messages: 2, Archived: 5}, decode[dto.ClearResponse](t, w))
	})
}

func TestArchiveHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("List_FilterByOutcome", func(t *testing.T) {
		admin := &mocks.MockAdminUseCase{}
		handler := NewArchiveHandler(admin, logger)
		failed := domain.OutcomeFailed

		admin.On("ListArchive", mock.Anything, &failed, 0, 50).Return([]*domain.ArchiveRecord{
			{ID: 4, Outcome: domain.OutcomeFailed, HandledBy: "worker-a"},
		}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/archive?outcome=failed", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode[dto.ListArchiveResponse](t, w)
		require.Len(t, response.Data, 1)
		assert.Equal(t, "failed", response.Data[0].Outcome)
		admin.AssertExpectations(t)
	})

	t.Run("List_InvalidOutcome", func(t *testing.T) {
		handler := NewArchiveHandler(&mocks.MockAdminUseCase{}, logger)

		c, w := createTestContext(http.MethodGet, "/v1/archive?outcome=retry", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Get", func(t *testing.T) {
		admin := &mocks.MockAdminUseCase{}
		handler := NewArchiveHandler(admin, logger)

		admin.On("GetArchiveRecord", mock.Anything, int64(4)).
			Return(&domain.ArchiveRecord{ID: 4, Outcome: domain.OutcomeLeaseExpired, HandledBy: domain.HandledByReclaimer}, nil).
			Once()

		c, w := createTestContext(http.MethodGet, "/v1/archive/4", nil)
		withID(c, "4")
		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "reclaimer", decode[dto.ArchiveRecordResponse](t, w).HandledBy)
	})

	t.Run("Stats", func(t *testing.T) {
		admin := &mocks.MockAdminUseCase{}
		handler := NewArchiveHandler(admin, logger)

		admin.On("Stats", mock.Anything).Return(&domain.QueueStats{
			Unclaimed: 3,
			Leased:    1,
			Archived:  map[domain.Outcome]int64{domain.OutcomeSuccess: 8},
		}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/stats", nil)
		handler.StatsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode[dto.StatsResponse](t, w)
		assert.Equal(t, int64(3), response.Messages["unclaimed"])
		assert.Equal(t, int64(0), response.Messages["expired"])
		assert.Equal(t, int64(8), response.Archived["success"])
		assert.Equal(t, int64(0), response.Archived["lease_expired"])
	})
}
