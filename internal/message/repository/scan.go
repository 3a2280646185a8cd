// Package repository provides PostgreSQL and MySQL persistence for the message store
// and the archive store. Every lease transition is a single conditional statement so
// concurrent callers are arbitrated by the database, never by a read followed by a write.
package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/allisson/leasemq/internal/message/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage reads the id, created_at, payload, lease_expires_at column set.
func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var payload []byte

	if err := row.Scan(&msg.ID, &msg.CreatedAt, &payload, &msg.LeaseExpiresAt); err != nil {
		return nil, err
	}

	msg.Payload = json.RawMessage(payload)
	return &msg, nil
}

// scanArchiveRecord reads the full message_archive column set.
func scanArchiveRecord(row rowScanner) (*domain.ArchiveRecord, error) {
	var record domain.ArchiveRecord
	var payload []byte
	var outcome string

	err := row.Scan(
		&record.ID,
		&record.CreatedAt,
		&record.ArchivedAt,
		&payload,
		&outcome,
		&record.HandledBy,
		&record.Details,
	)
	if err != nil {
		return nil, err
	}

	record.Payload = json.RawMessage(payload)
	record.Outcome = domain.Outcome(outcome)
	return &record, nil
}

// collectIDs drains a single-column id result set.
func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close() //nolint:errcheck

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// micros converts a duration to the integer microseconds the SQL interval arithmetic expects.
func micros(d time.Duration) int64 {
	return d.Microseconds()
}
