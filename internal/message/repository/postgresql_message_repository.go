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

// PostgreSQLMessageRepository implements the message store for PostgreSQL.
// Lease validity is always judged against CURRENT_TIMESTAMP so worker clocks never matter.
type PostgreSQLMessageRepository struct {
	db *sql.DB
}

// NewPostgreSQLMessageRepository creates a new PostgreSQL message repository.
func NewPostgreSQLMessageRepository(db *sql.DB) *PostgreSQLMessageRepository {
	return &PostgreSQLMessageRepository{db: db}
}

// Create inserts a new unclaimed message. The database assigns id and created_at and
// the insert trigger emits the new_message signal in the same transaction.
func (p *PostgreSQLMessageRepository) Create(ctx context.Context, payload json.RawMessage) (*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO messages (payload) VALUES ($1)
			  RETURNING id, created_at, payload, lease_expires_at`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, string(payload)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create message")
	}
	return msg, nil
}

// Acquire sets a lease on the message only if it is unclaimed or its lease lapsed.
// Returns ErrNotAvailable when the conditional update matches no row.
func (p *PostgreSQLMessageRepository) Acquire(
	ctx context.Context,
	id int64,
	duration time.Duration,
) (*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE messages
			  SET lease_expires_at = CURRENT_TIMESTAMP + ($2 * INTERVAL '1 microsecond')
			  WHERE id = $1
			    AND (lease_expires_at IS NULL OR lease_expires_at <= CURRENT_TIMESTAMP)
			  RETURNING id, created_at, payload, lease_expires_at`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id, micros(duration)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotAvailable
		}
		return nil, apperrors.Wrap(err, "failed to acquire message")
	}
	return msg, nil
}

// DeleteLeased removes the message only while the caller's lease (identified by token)
// is still live. Returns ErrLeaseConflict otherwise.
func (p *PostgreSQLMessageRepository) DeleteLeased(
	ctx context.Context,
	id int64,
	token time.Time,
) (*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM messages
			  WHERE id = $1
			    AND lease_expires_at = $2
			    AND lease_expires_at > CURRENT_TIMESTAMP
			  RETURNING id, created_at, payload, lease_expires_at`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLeaseConflict
		}
		return nil, apperrors.Wrap(err, "failed to delete leased message")
	}
	return msg, nil
}

// DeleteExpired removes the message only if its lease has lapsed.
// Returns ErrMessageNotFound when it was already reclaimed, settled or re-leased.
func (p *PostgreSQLMessageRepository) DeleteExpired(ctx context.Context, id int64) (*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM messages
			  WHERE id = $1
			    AND lease_expires_at IS NOT NULL
			    AND lease_expires_at <= CURRENT_TIMESTAMP
			  RETURNING id, created_at, payload, lease_expires_at`

	msg, err := scanMessage(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, apperrors.Wrap(err, "failed to delete expired message")
	}
	return msg, nil
}

// ListExpiredIDs returns ids with a lapsed lease, greater than afterID, in id order.
func (p *PostgreSQLMessageRepository) ListExpiredIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id FROM messages
			  WHERE id > $1
			    AND lease_expires_at IS NOT NULL
			    AND lease_expires_at <= CURRENT_TIMESTAMP
			  ORDER BY id
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired messages")
	}
	return collectIDs(rows)
}

// ListStaleIDs returns unclaimed ids created at least olderThan ago, greater than afterID.
func (p *PostgreSQLMessageRepository) ListStaleIDs(
	ctx context.Context,
	olderThan time.Duration,
	afterID int64,
	limit int,
) ([]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id FROM messages
			  WHERE id > $1
			    AND lease_expires_at IS NULL
			    AND created_at <= CURRENT_TIMESTAMP - ($2 * INTERVAL '1 microsecond')
			  ORDER BY id
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, afterID, micros(olderThan), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale messages")
	}
	return collectIDs(rows)
}

// ListAvailableIDs returns ids greater than afterID that can be acquired right now.
func (p *PostgreSQLMessageRepository) ListAvailableIDs(
	ctx context.Context,
	afterID int64,
	limit int,
) ([]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id FROM messages
			  WHERE id > $1
			    AND (lease_expires_at IS NULL OR lease_expires_at <= CURRENT_TIMESTAMP)
			  ORDER BY id
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list available messages")
	}
	return collectIDs(rows)
}

// Get retrieves a message by id.
func (p *PostgreSQLMessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, created_at, payload, lease_expires_at FROM messages WHERE id = $1`

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
func (p *PostgreSQLMessageRepository) List(ctx context.Context, offset, limit int) ([]*domain.Message, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, created_at, payload, lease_expires_at FROM messages
			  ORDER BY id
			  LIMIT $1 OFFSET $2`

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
func (p *PostgreSQLMessageRepository) CountByState(ctx context.Context) (map[domain.MessageState]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT
			    COUNT(*) FILTER (WHERE lease_expires_at IS NULL),
			    COUNT(*) FILTER (WHERE lease_expires_at > CURRENT_TIMESTAMP),
			    COUNT(*) FILTER (WHERE lease_expires_at <= CURRENT_TIMESTAMP)
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
func (p *PostgreSQLMessageRepository) DeleteAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

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
