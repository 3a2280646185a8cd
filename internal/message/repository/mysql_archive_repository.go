package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// MySQLArchiveRepository implements the archive store for MySQL.
type MySQLArchiveRepository struct {
	db *sql.DB
}

// NewMySQLArchiveRepository creates a new MySQL archive repository.
func NewMySQLArchiveRepository(db *sql.DB) *MySQLArchiveRepository {
	return &MySQLArchiveRepository{db: db}
}

const mysqlArchiveColumns = `id, created_at, archived_at, payload, outcome, handled_by, details`

// Create inserts the record and fills its database-assigned id and archived_at.
func (m *MySQLArchiveRepository) Create(ctx context.Context, record *domain.ArchiveRecord) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO message_archive (created_at, payload, outcome, handled_by, details)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		record.CreatedAt,
		string(record.Payload),
		string(record.Outcome),
		record.HandledBy,
		record.Details,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create archive record")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to get archive record id")
	}

	err = querier.QueryRowContext(ctx, `SELECT archived_at FROM message_archive WHERE id = ?`, id).
		Scan(&record.ArchivedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to read archive record")
	}

	record.ID = id
	return nil
}

// Get retrieves an archive record by id.
func (m *MySQLArchiveRepository) Get(ctx context.Context, id int64) (*domain.ArchiveRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlArchiveColumns + ` FROM message_archive WHERE id = ?`

	record, err := scanArchiveRecord(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArchiveRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get archive record")
	}
	return record, nil
}

// List returns archive records, newest first, optionally filtered by outcome.
func (m *MySQLArchiveRepository) List(
	ctx context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	querier := database.GetTx(ctx, m.db)

	var rows *sql.Rows
	var err error
	if outcome != nil {
		query := `SELECT ` + mysqlArchiveColumns + ` FROM message_archive
				  WHERE outcome = ?
				  ORDER BY id DESC
				  LIMIT ? OFFSET ?`
		rows, err = querier.QueryContext(ctx, query, string(*outcome), limit, offset)
	} else {
		query := `SELECT ` + mysqlArchiveColumns + ` FROM message_archive
				  ORDER BY id DESC
				  LIMIT ? OFFSET ?`
		rows, err = querier.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list archive records")
	}
	return collectArchiveRecords(rows)
}

// CountByOutcome counts archive records per outcome. Every outcome is present in the result.
func (m *MySQLArchiveRepository) CountByOutcome(ctx context.Context) (map[domain.Outcome]int64, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM message_archive GROUP BY outcome`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count archive records")
	}
	return collectOutcomeCounts(rows)
}

// DeleteAll removes every archive record. Administrative use only.
func (m *MySQLArchiveRepository) DeleteAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM message_archive`)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete archive records")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}
