package dto

import (
	"encoding/json"
	"time"

	"github.com/allisson/leasemq/internal/message/domain"
)

// MessageResponse represents a message in the message store.
type MessageResponse struct {
	ID             int64           `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	Payload        json.RawMessage `json:"payload"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at"`
	State          string          `json:"state"`
}

// MapMessageToResponse converts a domain message to an API response. State is computed
// against now and is informational only; the database decides lease validity.
func MapMessageToResponse(msg *domain.Message, now time.Time) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		CreatedAt:      msg.CreatedAt,
		Payload:        msg.Payload,
		LeaseExpiresAt: msg.LeaseExpiresAt,
		State:          string(msg.State(now)),
	}
}

// ListMessagesResponse represents a page of messages.
type ListMessagesResponse struct {
	Data []MessageResponse `json:"data"`
}

// MapMessagesToListResponse converts domain messages to a list API response.
func MapMessagesToListResponse(messages []*domain.Message, now time.Time) ListMessagesResponse {
	data := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		data = append(data, MapMessageToResponse(msg, now))
	}
	return ListMessagesResponse{Data: data}
}

// LeaseResponse is returned by a successful acquire. LeaseToken must be sent back on settle.
type LeaseResponse struct {
	MessageID  int64           `json:"message_id"`
	LeaseToken time.Time       `json:"lease_token"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MapLeaseToResponse converts a domain lease to an API response.
func MapLeaseToResponse(lease *domain.Lease) LeaseResponse {
	return LeaseResponse{
		MessageID:  lease.MessageID(),
		LeaseToken: lease.Token,
		Payload:    lease.Message.Payload,
		CreatedAt:  lease.Message.CreatedAt,
	}
}

// ArchiveRecordResponse represents an archive record.
type ArchiveRecordResponse struct {
	ID         int64           `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	ArchivedAt time.Time       `json:"archived_at"`
	Payload    json.RawMessage `json:"payload"`
	Outcome    string          `json:"outcome"`
	HandledBy  string          `json:"handled_by"`
	Details    *string         `json:"details"`
}

// MapArchiveRecordToResponse converts a domain archive record to an API response.
func MapArchiveRecordToResponse(record *domain.ArchiveRecord) ArchiveRecordResponse {
	return ArchiveRecordResponse{
		ID:         record.ID,
		CreatedAt:  record.CreatedAt,
		ArchivedAt: record.ArchivedAt,
		Payload:    record.Payload,
		Outcome:    string(record.Outcome),
		HandledBy:  record.HandledBy,
		Details:    record.Details,
	}
}

// ListArchiveResponse represents a page of archive records.
type ListArchiveResponse struct {
	Data []ArchiveRecordResponse `json:"data"`
}

// MapArchiveRecordsToListResponse converts domain archive records to a list API response.
func MapArchiveRecordsToListResponse(records []*domain.ArchiveRecord) ListArchiveResponse {
	data := make([]ArchiveRecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, MapArchiveRecordToResponse(record))
	}
	return ListArchiveResponse{Data: data}
}

// StatsResponse summarizes both stores.
type StatsResponse struct {
	Messages map[string]int64 `json:"messages"`
	Archived map[string]int64 `json:"archived"`
}

// MapStatsToResponse converts domain queue stats to an API response.
func MapStatsToResponse(stats *domain.QueueStats) StatsResponse {
	archived := make(map[string]int64, len(domain.Outcomes))
	for _, outcome := range domain.Outcomes {
		archived[string(outcome)] = stats.Archived[outcome]
	}
	return StatsResponse{
		Messages: map[string]int64{
			string(domain.MessageStateUnclaimed): stats.Unclaimed,
			string(domain.MessageStateLeased):    stats.Leased,
			string(domain.MessageStateExpired):   stats.Expired,
		},
		Archived: archived,
	}
}

// ClearResponse reports how many rows a clear removed.
type ClearResponse struct {
	Messages int64 `json:"messages"`
	Archived int64 `json:"archived"`
}
