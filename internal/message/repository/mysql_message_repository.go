package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// MySQLMessageRepository implements the message store for MySQL.
//
// Timestamps are written and compared with UTC_TIMESTAMP(6) and the connection is pinned
// to UTC (see database.UTCDSN), so DATETIME values read back as UTC match the server clock.
//
// MySQL has no RETURNING clause, so each transition is a conditional statement whose
// affected row count decides ownership, followed by a read of the row. Callers should
// run DeleteLeased and DeleteExpired inside a transaction so the snapshot and the delete
// are atomic with the archive insert.
type MySQLMessageRepository struct {
	db *sql.DB
}

// NewMySQLMessageRepository creates a new MySQL message repository.
func NewMySQLMessageRepository(db *sql.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}

const mysqlMessageColumns = `id, created_at, payload, lease_expires_at`

// Create inserts a new unclaimed message and reads back the database-assigned fields.
func (m *MySQLMessageRepository) Create(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `INSERT INTO messages (payload) VALUES (?)`, string(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create message")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get message id")
	}

	return m.Get(ctx, id)
}

// Acquire sets a lease on the message only if it is unclaimed or its lease lapsed.
// The update and the read-back share a transaction, so the row lock taken by the update
// keeps another acquirer from replacing the lease before it is read.
func (m *MySQLMessageRepository) Acquire(
	ctx context.Context,
	id int64,
	duration time.Duration,
) (*domain.Message, error) {
	var msg *domain.Message
	err := database.NewTxManager(m.db).WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, m.db)

		query := `UPDATE messages
				  SET lease_expires_at = DATE_ADD(UTC_TIMESTAMP(6), INTERVAL ? MICROSECOND)
				  WHERE id = ?
				    AND (lease_expires_at IS NULL OR lease_expires_at <= UTC_TIMESTAMP(6))`

		result, err := querier.ExecContext(ctx, query, micros(duration), id)
		if err != nil {
			return apperrors.Wrap(err, "failed to acquire message")
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.Wrap(err, "failed to get affected rows")
		}
		if affected == 0 {
			return domain.ErrNotAvailable
		}

		msg, err = m.Get(ctx, id)
		if errors.Is(err, domain.ErrMessageNotFound) {
			return domain.ErrNotAvailable
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteLeased removes the message only while the caller's lease is still live.
func (m *MySQLMessageRepository) DeleteLeased(
	ctx context.Context,
	id int64,
	token time.Time,
) (*domain.Message, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM messages
			  WHERE id = ? AND lease_expires_at = ? AND lease_expires_at > UTC_TIMESTAMP(6)
			  FOR UPDATE`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLeaseConflict
		}
		return nil, apperrors.Wrap(err, "failed to lock leased message")
	}

	if err := m.deleteExact(ctx, querier, id, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLeaseConflict
		}
		return nil, apperrors.Wrap(err, "failed to delete leased message")
	}
	return msg, nil
}

// DeleteExpired removes the message only if its lease has lapsed.
func (m *MySQLMessageRepository) DeleteExpired(ctx context.Context, id int64) (*domain.Message, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM messages
			  WHERE id = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= UTC_TIMESTAMP(6)
			  FOR UPDATE`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lock expired message")
	}

	if err := m.deleteExact(ctx, querier, id, *msg.LeaseExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, "failed to delete expired message")
	}
	return msg, nil
}

// deleteExact deletes the row only if its lease still equals the one that was read,
// so a delete outside a transaction can never remove a row that was re-leased meanwhile.
func (m *MySQLMessageRepository) deleteExact(
	ctx context.Context,
	querier database.Querier,
	id int64,
	leaseExpiresAt time.Time,
) error {
	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM messages WHERE id = ? AND lease_expires_at = ?`,
		id,
		leaseExpiresAt,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExpiredIDs returns ids with a lapsed lease, greater than afterID, in id order.
func (m *MySQLMessageRepository) ListExpiredIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id FROM messages
			  WHERE id > ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= UTC_TIMESTAMP(6)
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired messages")
	}
	return collectIDs(rows)
}

// ListStaleIDs returns unclaimed ids created at least olderThan ago, greater than afterID.
func (m *MySQLMessageRepository) ListStaleIDs(
	ctx context.Context,
	olderThan time.Duration,
	afterID int64,
	limit int,
) ([]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id FROM messages
			  WHERE id > ?
			    AND lease_expires_at IS NULL
			    AND created_at <= DATE_SUB(UTC_TIMESTAMP(6), INTERVAL ? MICROSECOND)
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, afterID, micros(olderThan), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale messages")
	}
	return collectIDs(rows)
}

// ListAvailableIDs returns ids greater than afterID that can be acquired right now.
func (m *MySQLMessageRepository) ListAvailableIDs(
	ctx context.Context,
	afterID int64,
	limit int,
) ([]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id FROM messages
			  WHERE id > ?
			    AND (lease_expires_at IS NULL OR lease_expires_at <= UTC_TIMESTAMP(6))
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list available messages")
	}
	return collectIDs(rows)
}

// Get retrieves a message by id.
func (m *MySQLMessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM messages WHERE id = ?`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get message")
	}
	return msg, nil
}

// List returns messages in id order with pagination.
func (m *MySQLMessageRepository) List(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlMessageColumns + ` FROM messages ORDER BY id LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list messages")
	}
	defer rows.Close() //nolint:errcheck

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan message")
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate messages")
	}

	return messages, nil
}

// CountByState counts unclaimed, leased and expired messages.
func (m *MySQLMessageRepository) CountByState(ctx context.Context) (map[domain.MessageState]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT
			    COALESCE(SUM(CASE WHEN lease_expires_at IS NULL THEN 1 ELSE 0 END), 0),
			    COALESCE(SUM(CASE WHEN lease_expires_at > UTC_TIMESTAMP(6) THEN 1 ELSE 0 END), 0),
			    COALESCE(SUM(CASE WHEN lease_expires_at <= UTC_TIMESTAMP(6) THEN 1 ELSE 0 END), 0)
			  FROM messages`

	var unclaimed, leased, expired int64
	if err := querier.QueryRowContext(ctx, query).Scan(&unclaimed, &leased, &expired); err != nil {
		return nil, apperrors.Wrap(err, "failed to count messages")
	}

	return map[domain.MessageState]int64{
		domain.MessageStateUnclaimed: unclaimed,
		domain.MessageStateLeased:    leased,
		domain.MessageStateExpired:   expired,
	}, nil
}

// DeleteAll removes every message. Administrative use only.
func (m *MySQLMessageRepository) DeleteAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete messages")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}
