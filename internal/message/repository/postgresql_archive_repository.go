package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/leasemq/internal/database"
	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// PostgreSQLArchiveRepository implements the archive store for PostgreSQL.
// Records are insert-only; the dead_message trigger fires for every non-success insert.
type PostgreSQLArchiveRepository struct {
	db *sql.DB
}

// NewPostgreSQLArchiveRepository creates a new PostgreSQL archive repository.
func NewPostgreSQLArchiveRepository(db *sql.DB) *PostgreSQLArchiveRepository {
	return &PostgreSQLArchiveRepository{db: db}
}

// Create inserts the record and fills its database-assigned id and archived_at.
func (p *PostgreSQLArchiveRepository) Create(ctx context.Context, record *domain.ArchiveRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO message_archive (created_at, payload, outcome, handled_by, details)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id, archived_at`

	err := querier.QueryRowContext(
		ctx,
		query,
		record.CreatedAt,
		string(record.Payload),
		string(record.Outcome),
		record.HandledBy,
		record.Details,
	).Scan(&record.ID, &record.ArchivedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create archive record")
	}
	return nil
}

// Get retrieves an archive record by id.
func (p *PostgreSQLArchiveRepository) Get(ctx context.Context, id int64) (*domain.ArchiveRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, created_at, archived_at, payload, outcome, handled_by, details
			  FROM message_archive WHERE id = $1`

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
func (p *PostgreSQLArchiveRepository) List(
	ctx context.Context,
	outcome *domain.Outcome,
	offset, limit int,
) ([]*domain.ArchiveRecord, error) {
	querier := database.GetTx(ctx, p.db)

	var rows *sql.Rows
	var err error
	if outcome != nil {
		query := `SELECT id, created_at, archived_at, payload, outcome, handled_by, details
				  FROM message_archive
				  WHERE outcome = $1
				  ORDER BY id DESC
				  LIMIT $2 OFFSET $3`
		rows, err = querier.QueryContext(ctx, query, string(*outcome), limit, offset)
	} else {
		query := `SELECT id, created_at, archived_at, payload, outcome, handled_by, details
				  FROM message_archive
				  ORDER BY id DESC
				  LIMIT $1 OFFSET $2`
		rows, err = querier.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list archive records")
	}
	return collectArchiveRecords(rows)
}

// CountByOutcome counts archive records per outcome. Every outcome is present in the result.
func (p *PostgreSQLArchiveRepository) CountByOutcome(ctx context.Context) (map[domain.Outcome]int64, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM message_archive GROUP BY outcome`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count archive records")
	}
	return collectOutcomeCounts(rows)
}

// DeleteAll removes every archive record. Administrative use only.
func (p *PostgreSQLArchiveRepository) DeleteAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

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

func collectArchiveRecords(rows *sql.Rows) ([]*domain.ArchiveRecord, error) {
	defer rows.Close() //nolint:errcheck

	records := make([]*domain.ArchiveRecord, 0)
	for rows.Next() {
		record, err := scanArchiveRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan archive record")
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate archive records")
	}

	return records, nil
}

func collectOutcomeCounts(rows *sql.Rows) (map[domain.Outcome]int64, error) {
	defer rows.Close() //nolint:errcheck

	counts := make(map[domain.Outcome]int64, len(domain.Outcomes))
	for _, outcome := range domain.Outcomes {
		counts[outcome] = 0
	}

	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan archive count")
		}
		counts[domain.Outcome(outcome)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate archive counts")
	}

	return counts, nil
}
