package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/titanbuild/vistalink/internal/domain"
)

// titanRecordRepository implements TitanRecordRepository on PostgreSQL.
type titanRecordRepository struct {
	db Querier
}

// NewTitanRecordRepository creates a new titan record repository.
func NewTitanRecordRepository(db Querier) TitanRecordRepository {
	return &titanRecordRepository{db: db}
}

func (r *titanRecordRepository) WithTx(tx pgx.Tx) TitanRecordRepository {
	return &titanRecordRepository{db: tx}
}

const titanRecordColumns = `id, kind, number, name, amount, location, email, phone, start_date, created_from_vista, created_at, updated_at`

const uniqueViolationCode = "23505"

func (r *titanRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.TitanRecord, error) {
	query := `SELECT ` + titanRecordColumns + ` FROM titan_records WHERE id = $1`
	record, err := scanTitanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TitanRecord{}, domain.NewNotFoundError("titan record %s not found", id)
		}
		return domain.TitanRecord{}, fmt.Errorf("failed to get titan record: %w", err)
	}
	return record, nil
}

func (r *titanRecordRepository) ListByKind(ctx context.Context, kind domain.TitanKind) ([]domain.TitanRecord, error) {
	query := `SELECT ` + titanRecordColumns + ` FROM titan_records WHERE kind = $1 ORDER BY number, id`

	rows, err := r.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list titan records: %w", err)
	}
	defer rows.Close()

	return collectTitanRecords(rows)
}

func (r *titanRecordRepository) Create(ctx context.Context, record domain.TitanRecord) (domain.TitanRecord, error) {
	query := `
		INSERT INTO titan_records (id, kind, number, name, amount, location, email, phone, start_date, created_from_vista, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + titanRecordColumns

	created, err := scanTitanRecord(r.db.QueryRow(ctx, query,
		record.ID,
		string(record.Kind),
		record.Number,
		record.Name,
		record.Amount,
		record.Location,
		record.Email,
		record.Phone,
		record.StartDate,
		record.CreatedFromVista,
		record.CreatedAt,
		record.UpdatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.TitanRecord{}, domain.NewConstraintError("titan %s record with number %q already exists", record.Kind, record.Number)
		}
		return domain.TitanRecord{}, fmt.Errorf("failed to create titan record: %w", err)
	}
	return created, nil
}

// Orphan checks span every Vista kind that maps to the titan table: a project
// linked from a work-order record is not an orphan when queried via contracts.
func (r *titanRecordRepository) ListUnlinked(ctx context.Context, kind domain.Kind) ([]domain.TitanRecord, error) {
	query := `
		SELECT ` + titanRecordColumns + `
		FROM titan_records t
		WHERE t.kind = $1
		  AND NOT EXISTS (
			SELECT 1 FROM vista_records v
			WHERE v.kind = ANY($2)
			  AND v.titan_id = t.id
			  AND v.link_status IN ('auto_matched', 'manual_matched')
		  )
		ORDER BY t.number, t.id`

	rows, err := r.db.Query(ctx, query, string(kind.TitanKind()), siblingKindValues(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked titan records: %w", err)
	}
	defer rows.Close()

	return collectTitanRecords(rows)
}

func (r *titanRecordRepository) DeleteUnlinked(ctx context.Context, kind domain.Kind) (int64, error) {
	query := `
		DELETE FROM titan_records t
		WHERE t.kind = $1
		  AND NOT EXISTS (
			SELECT 1 FROM vista_records v
			WHERE v.kind = ANY($2)
			  AND v.titan_id = t.id
			  AND v.link_status IN ('auto_matched', 'manual_matched')
		  )`

	tag, err := r.db.Exec(ctx, query, string(kind.TitanKind()), siblingKindValues(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to delete unlinked titan records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// siblingKindValues lists every Vista kind reconciling against the same titan
// table, as SQL parameter values.
func siblingKindValues(kind domain.Kind) []string {
	kinds := kind.TitanKind().VistaKinds()
	values := make([]string, len(kinds))
	for i, k := range kinds {
		values[i] = string(k)
	}
	return values
}

func (r *titanRecordRepository) CountByKind(ctx context.Context) (map[domain.TitanKind]int, error) {
	query := `SELECT kind, COUNT(*) FROM titan_records GROUP BY kind`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count titan records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TitanKind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan titan count: %w", err)
		}
		counts[domain.TitanKind(kind)] = count
	}
	return counts, rows.Err()
}

func collectTitanRecords(rows pgx.Rows) ([]domain.TitanRecord, error) {
	records := make([]domain.TitanRecord, 0)
	for rows.Next() {
		record, err := scanTitanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan titan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanTitanRecord(row pgx.Row) (domain.TitanRecord, error) {
	var (
		record    domain.TitanRecord
		kind      string
		startDate *time.Time
	)

	err := row.Scan(
		&record.ID,
		&kind,
		&record.Number,
		&record.Name,
		&record.Amount,
		&record.Location,
		&record.Email,
		&record.Phone,
		&startDate,
		&record.CreatedFromVista,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.TitanRecord{}, err
	}

	record.Kind = domain.TitanKind(kind)
	record.StartDate = startDate
	return record, nil
}
