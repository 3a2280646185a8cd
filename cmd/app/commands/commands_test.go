package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/leasemq/internal/message/domain"
	messageMocks "github.com/allisson/leasemq/internal/message/usecase/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRunPublish(t *testing.T) {
	ctx := context.Background()
	payload := `["do work"]`
	msg := &domain.Message{ID: 42, CreatedAt: time.Now(), Payload: json.RawMessage(payload)}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockPublishUseCase{}
		mockUseCase.On("Publish", ctx, json.RawMessage(payload)).Return(msg, nil)

		var out bytes.Buffer
		err := RunPublish(ctx, mockUseCase, testLogger(), &out, payload, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Published message 42")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockPublishUseCase{}
		mockUseCase.On("Publish", ctx, json.RawMessage(payload)).Return(msg, nil)

		var out bytes.Buffer
		err := RunPublish(ctx, mockUseCase, testLogger(), &out, payload, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"id": 42`)
		require.Contains(t, out.String(), `"state": "unclaimed"`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("invalid-json", func(t *testing.T) {
		mockUseCase := &messageMocks.MockPublishUseCase{}

		err := RunPublish(ctx, mockUseCase, testLogger(), &bytes.Buffer{}, `{"broken"`, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid payload")
		mockUseCase.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunPublish(ctx, &messageMocks.MockPublishUseCase{}, testLogger(), &bytes.Buffer{}, payload, "yaml")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
	})

	t.Run("publish-error", func(t *testing.T) {
		mockUseCase := &messageMocks.MockPublishUseCase{}
		mockUseCase.On("Publish", ctx, json.RawMessage(payload)).Return(nil, errors.New("db down"))

		err := RunPublish(ctx, mockUseCase, testLogger(), &bytes.Buffer{}, payload, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to publish message")
	})
}

func TestRunClear(t *testing.T) {
	ctx := context.Background()
	result := &domain.ClearResult{Messages: 3, Archived: 7}

	t.Run("confirmed-by-flag", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("Clear", ctx).Return(result, nil)

		var out bytes.Buffer
		err := RunClear(ctx, mockUseCase, testLogger(), IOTuple{Reader: strings.NewReader(""), Writer: &out}, true, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Deleted 3 message(s) and 7 archive record(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("confirmed-interactively", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("Clear", ctx).Return(result, nil)

		var out bytes.Buffer
		err := RunClear(ctx, mockUseCase, testLogger(), IOTuple{Reader: strings.NewReader("yes\n"), Writer: &out}, false, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"messages": 3`)
		require.Contains(t, out.String(), `"archived": 7`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("aborted", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}

		var out bytes.Buffer
		err := RunClear(ctx, mockUseCase, testLogger(), IOTuple{Reader: strings.NewReader("n\n"), Writer: &out}, false, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Aborted")
		mockUseCase.AssertNotCalled(t, "Clear", mock.Anything)
	})
}

func TestRunListArchive(t *testing.T) {
	ctx := context.Background()
	details := "invalid message format"
	records := []*domain.ArchiveRecord{
		{
			ID:         1,
			CreatedAt:  time.Now(),
			ArchivedAt: time.Now(),
			Payload:    json.RawMessage(`"x"`),
			Outcome:    domain.OutcomeRejected,
			HandledBy:  "worker-a",
			Details:    &details,
		},
	}

	t.Run("text-output-with-filter", func(t *testing.T) {
		outcome := domain.OutcomeRejected
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("ListArchive", ctx, &outcome, 0, 50).Return(records, nil)

		var out bytes.Buffer
		err := RunListArchive(ctx, mockUseCase, &out, "rejected", 0, 50, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "OUTCOME")
		require.Contains(t, out.String(), "worker-a")
		require.Contains(t, out.String(), details)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("ListArchive", ctx, (*domain.Outcome)(nil), 10, 5).Return(records, nil)

		var out bytes.Buffer
		err := RunListArchive(ctx, mockUseCase, &out, "", 10, 5, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"outcome": "rejected"`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("invalid-outcome", func(t *testing.T) {
		err := RunListArchive(ctx, &messageMocks.MockAdminUseCase{}, &bytes.Buffer{}, "done", 0, 50, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid outcome")
	})

	t.Run("invalid-limit", func(t *testing.T) {
		err := RunListArchive(ctx, &messageMocks.MockAdminUseCase{}, &bytes.Buffer{}, "", 0, 0, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "limit must be between 1 and 1000")
	})
}

func TestRunStats(t *testing.T) {
	ctx := context.Background()
	stats := &domain.QueueStats{
		Unclaimed: 4,
		Leased:    2,
		Expired:   1,
		Archived:  map[domain.Outcome]int64{domain.OutcomeSuccess: 10, domain.OutcomeLeaseExpired: 3},
	}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("Stats", ctx).Return(stats, nil)

		var out bytes.Buffer
		require.NoError(t, RunStats(ctx, mockUseCase, &out, "text"))

		require.Contains(t, out.String(), "unclaimed=4 leased=2 expired=1")
		require.Contains(t, out.String(), "success=10 failed=0 rejected=0 lease_expired=3")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("Stats", ctx).Return(stats, nil)

		var out bytes.Buffer
		require.NoError(t, RunStats(ctx, mockUseCase, &out, "json"))

		require.Contains(t, out.String(), `"unclaimed": 4`)
		require.Contains(t, out.String(), `"lease_expired": 3`)
	})

	t.Run("stats-error", func(t *testing.T) {
		mockUseCase := &messageMocks.MockAdminUseCase{}
		mockUseCase.On("Stats", ctx).Return(nil, errors.New("db down"))

		err := RunStats(ctx, mockUseCase, &bytes.Buffer{}, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to get stats")
	})
}

func TestRunReclaimerOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockReclaimerUseCase{}
		mockUseCase.On("SweepExpiredLeases", ctx).Return(2, nil)
		mockUseCase.On("SweepStaleMessages", ctx).Return(5, nil)

		var out bytes.Buffer
		require.NoError(t, RunReclaimer(ctx, mockUseCase, testLogger(), &out, true, "text"))

		require.Contains(t, out.String(), "Archived 2 expired lease(s), re-notified 5 stale message(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &messageMocks.MockReclaimerUseCase{}
		mockUseCase.On("SweepExpiredLeases", ctx).Return(0, nil)
		mockUseCase.On("SweepStaleMessages", ctx).Return(1, nil)

		var out bytes.Buffer
		require.NoError(t, RunReclaimer(ctx, mockUseCase, testLogger(), &out, true, "json"))

		require.Contains(t, out.String(), `"renotified": 1`)
	})

	t.Run("lease-sweep-error-still-runs-stale-sweep", func(t *testing.T) {
		mockUseCase := &messageMocks.MockReclaimerUseCase{}
		mockUseCase.On("SweepExpiredLeases", ctx).Return(1, errors.New("db down"))
		mockUseCase.On("SweepStaleMessages", ctx).Return(3, nil)

		var out bytes.Buffer
		err := RunReclaimer(ctx, mockUseCase, testLogger(), &out, true, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to sweep expired leases")
		require.NotContains(t, err.Error(), "failed to sweep stale messages")
		require.Contains(t, out.String(), "Archived 1 expired lease(s), re-notified 3 stale message(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("both-sweeps-fail", func(t *testing.T) {
		mockUseCase := &messageMocks.MockReclaimerUseCase{}
		mockUseCase.On("SweepExpiredLeases", ctx).Return(0, errors.New("db down"))
		mockUseCase.On("SweepStaleMessages", ctx).Return(0, errors.New("notify down"))

		err := RunReclaimer(ctx, mockUseCase, testLogger(), &bytes.Buffer{}, true, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to sweep expired leases: db down")
		require.Contains(t, err.Error(), "failed to sweep stale messages: notify down")
	})
}

// fakeService blocks in Start until Shutdown is called.
type fakeService struct {
	startErr error
	stopped  chan struct{}
	shutdown atomic.Int32
}

func newFakeService(startErr error) *fakeService {
	return &fakeService{startErr: startErr, stopped: make(chan struct{})}
}

func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stopped
	return nil
}

func (f *fakeService) Shutdown(ctx context.Context) error {
	if f.shutdown.Add(1) == 1 {
		close(f.stopped)
	}
	return nil
}

// fakeLoop blocks until its context ends.
type fakeLoop struct {
	err error
}

func (f *fakeLoop) Start(ctx context.Context) error {
	return f.Run(ctx)
}

func (f *fakeLoop) Run(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunServer(t *testing.T) {
	t.Run("stops-on-cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		api := newFakeService(nil)
		metrics := newFakeService(nil)

		done := make(chan error, 1)
		go func() {
			done <- RunServer(ctx, testLogger(), []Service{api, metrics}, &fakeLoop{}, time.Second)
		}()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		assert.Equal(t, int32(1), api.shutdown.Load())
		assert.Equal(t, int32(1), metrics.shutdown.Load())
	})

	t.Run("start-failure-stops-the-rest", func(t *testing.T) {
		api := newFakeService(errors.New("address in use"))
		metrics := newFakeService(nil)

		err := RunServer(context.Background(), testLogger(), []Service{api, metrics}, nil, time.Second)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "address in use")
		assert.Equal(t, int32(1), metrics.shutdown.Load())
	})
}

func TestRunWorker(t *testing.T) {
	t.Run("stops-on-cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.NoError(t, RunWorker(ctx, testLogger(), &fakeLoop{}, &fakeLoop{}))
	})

	t.Run("worker-failure-stops-the-reclaimer", func(t *testing.T) {
		err := RunWorker(context.Background(), testLogger(), &fakeLoop{err: errors.New("listener closed")}, &fakeLoop{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listener closed")
	})
}
