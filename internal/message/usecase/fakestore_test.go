package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/allisson/leasemq/internal/message/domain"
)

// fakeStore is an in-memory message and archive store whose conditional writes follow the
// SQL repositories: every transition is decided under one lock against the store clock.
type fakeStore struct {
	mu            sync.Mutex
	now           time.Time
	nextID        int64
	nextArchiveID int64
	messages      map[int64]*domain.Message
	archive       []*domain.ArchiveRecord
	failExpired   map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:         time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		messages:    make(map[int64]*domain.Message),
		failExpired: make(map[int64]error),
	}
}

func (s *fakeStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// archivedWith returns the archive records whose payload equals payload.
func (s *fakeStore) archivedWith(payload string) []*domain.ArchiveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ArchiveRecord
	for _, r := range s.archive {
		if string(r.Payload) == payload {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeStore) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[id]
	return ok
}

func copyMessage(m *domain.Message) *domain.Message {
	c := *m
	if m.LeaseExpiresAt != nil {
		t := *m.LeaseExpiresAt
		c.LeaseExpiresAt = &t
	}
	return &c
}

type fakeMessageRepo struct{ s *fakeStore }

type fakeArchiveRepo struct{ s *fakeStore }

func (r fakeMessageRepo) Create(_ context.Context, payload json.RawMessage) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	msg := &domain.Message{ID: r.s.nextID, CreatedAt: r.s.now, Payload: payload}
	r.s.messages[msg.ID] = msg
	return copyMessage(msg), nil
}

func (r fakeMessageRepo) Acquire(_ context.Context, id int64, duration time.Duration) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msg, ok := r.s.messages[id]
	if !ok || msg.State(r.s.now) == domain.MessageStateLeased {
		return nil, domain.ErrNotAvailable
	}
	expiresAt := r.s.now.Add(duration)
	msg.LeaseExpiresAt = &expiresAt
	return copyMessage(msg), nil
}

func (r fakeMessageRepo) DeleteLeased(_ context.Context, id int64, token time.Time) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msg, ok := r.s.messages[id]
	if !ok || msg.State(r.s.now) != domain.MessageStateLeased || !msg.LeaseExpiresAt.Equal(token) {
		return nil, domain.ErrLeaseConflict
	}
	delete(r.s.messages, id)
	return msg, nil
}

func (r fakeMessageRepo) DeleteExpired(_ context.Context, id int64) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.failExpired[id]; err != nil {
		return nil, err
	}
	msg, ok := r.s.messages[id]
	if !ok || msg.State(r.s.now) != domain.MessageStateExpired {
		return nil, domain.ErrMessageNotFound
	}
	delete(r.s.messages, id)
	return msg, nil
}

func (r fakeMessageRepo) ids(match func(*domain.Message) bool, afterID int64, limit int) []int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]int64, 0)
	for id, msg := range r.s.messages {
		if id > afterID && match(msg) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (r fakeMessageRepo) ListExpiredIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	now := r.now()
	return r.ids(func(m *domain.Message) bool { return m.State(now) == domain.MessageStateExpired }, afterID, limit), nil
}

func (r fakeMessageRepo) ListStaleIDs(
	_ context.Context,
	olderThan time.Duration,
	afterID int64,
	limit int,
) ([]int64, error) {
	now := r.now()
	return r.ids(func(m *domain.Message) bool {
		return m.LeaseExpiresAt == nil && !m.CreatedAt.After(now.Add(-olderThan))
	}, afterID, limit), nil
}

func (r fakeMessageRepo) ListAvailableIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	now := r.now()
	return r.ids(func(m *domain.Message) bool { return m.State(now) != domain.MessageStateLeased }, afterID, limit), nil
}

func (r fakeMessageRepo) now() time.Time {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.now
}

func (r fakeMessageRepo) Get(_ context.Context, id int64) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msg, ok := r.s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return copyMessage(msg), nil
}

func (r fakeMessageRepo) List(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	ids := r.ids(func(*domain.Message) bool { return true }, 0, offset+limit)
	messages := make([]*domain.Message, 0)
	for i := offset; i < len(ids); i++ {
		msg, err := r.Get(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r fakeMessageRepo) CountByState(_ context.Context) (map[domain.MessageState]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := map[domain.MessageState]int64{}
	for _, msg := range r.s.messages {
		counts[msg.State(r.s.now)]++
	}
	return counts, nil
}

func (r fakeMessageRepo) DeleteAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := int64(len(r.s.messages))
	r.s.messages = make(map[int64]*domain.Message)
	return count, nil
}

func (r fakeArchiveRepo) Create(_ context.Context, record *domain.ArchiveRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextArchiveID++
	record.ID = r.s.nextArchiveID
	record.ArchivedAt = r.s.now
	c := *record
	r.s.archive = append(r.s.archive, &c)
	return nil
}

func (r fakeArchiveRepo) Get(_ context.Context, id int64) (*domain.ArchiveRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, record := range r.s.archive {
		if record.ID == id {
			c := *record
			return &c, nil
		}
	}
	return nil, domain.ErrArchiveRecordNotFound
}

func (r fakeArchiveRepo) List(
	_ context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	records := make([]*domain.ArchiveRecord, 0)
	for i := len(r.s.archive) - 1; i >= 0; i-- {
		if outcome == nil || r.s.archive[i].Outcome == *outcome {
			records = append(records, r.s.archive[i])
		}
	}
	if offset >= len(records) {
		return []*domain.ArchiveRecord{}, nil
	}
	records = records[offset:]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r fakeArchiveRepo) CountByOutcome(_ context.Context) (map[domain.Outcome]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[domain.Outcome]int64, len(domain.Outcomes))
	for _, outcome := range domain.Outcomes {
		counts[outcome] = 0
	}
	for _, record := range r.s.archive {
		counts[record.Outcome]++
	}
	return counts, nil
}

func (r fakeArchiveRepo) DeleteAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := int64(len(r.s.archive))
	r.s.archive = nil
	return count, nil
}
