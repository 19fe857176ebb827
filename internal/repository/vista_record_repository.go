package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/titanbuild/vistalink/internal/domain"
)

// vistaRecordRepository implements VistaRecordRepository on PostgreSQL.
type vistaRecordRepository struct {
	db Querier
}

// NewVistaRecordRepository creates a new Vista record repository.
func NewVistaRecordRepository(db Querier) VistaRecordRepository {
	return &vistaRecordRepository{db: db}
}

func (r *vistaRecordRepository) WithTx(tx pgx.Tx) VistaRecordRepository {
	return &vistaRecordRepository{db: tx}
}

const vistaRecordColumns = `id, kind, external_id, name, amount, location, email, phone, start_date, attributes, link_status, titan_id, extra_refs, created_at, updated_at`

func (r *vistaRecordRepository) GetByID(ctx context.Context, kind domain.Kind, id uuid.UUID) (domain.VistaRecord, error) {
	query := `SELECT ` + vistaRecordColumns + ` FROM vista_records WHERE kind = $1 AND id = $2`
	record, err := scanVistaRecord(r.db.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VistaRecord{}, domain.NewNotFoundError("vista %s record %s not found", kind, id)
		}
		return domain.VistaRecord{}, fmt.Errorf("failed to get vista record: %w", err)
	}
	return record, nil
}

func (r *vistaRecordRepository) List(ctx context.Context, kind domain.Kind, filter VistaRecordFilter) ([]domain.VistaRecord, error) {
	query := `SELECT ` + vistaRecordColumns + ` FROM vista_records WHERE kind = $1`
	args := []any{string(kind)}

	if filter.LinkStatus != nil {
		args = append(args, string(*filter.LinkStatus))
		query += fmt.Sprintf(" AND link_status = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR external_id ILIKE $%d)", len(args), len(args))
	}

	query += " ORDER BY external_id, id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vista records: %w", err)
	}
	defer rows.Close()

	return collectVistaRecords(rows)
}

func (r *vistaRecordRepository) ListByStatus(ctx context.Context, kind domain.Kind, statuses []domain.LinkStatus) ([]domain.VistaRecord, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}

	query := `SELECT ` + vistaRecordColumns + `
		FROM vista_records
		WHERE kind = $1 AND link_status = ANY($2)
		ORDER BY external_id, id`

	rows, err := r.db.Query(ctx, query, string(kind), values)
	if err != nil {
		return nil, fmt.Errorf("failed to list vista records by status: %w", err)
	}
	defer rows.Close()

	return collectVistaRecords(rows)
}

func (r *vistaRecordRepository) Upsert(ctx context.Context, record domain.VistaRecord) (bool, error) {
	attributes, err := marshalAttributes(record.Attributes)
	if err != nil {
		return false, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	// Link fields are deliberately absent from the conflict update so a
	// re-import never disturbs an existing link.
	query := `
		INSERT INTO vista_records (id, kind, external_id, name, amount, location, email, phone, start_date, attributes, link_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (kind, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			amount = EXCLUDED.amount,
			location = EXCLUDED.location,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			start_date = EXCLUDED.start_date,
			attributes = EXCLUDED.attributes,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err = r.db.QueryRow(ctx, query,
		record.ID,
		string(record.Kind),
		record.ExternalID,
		record.Name,
		record.Amount,
		record.Location,
		record.Email,
		record.Phone,
		record.StartDate,
		attributes,
		string(record.LinkStatus),
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert vista record: %w", err)
	}
	return inserted, nil
}

func (r *vistaRecordRepository) ApplyTransition(ctx context.Context, id uuid.UUID, expect LinkExpectation, next LinkState) (domain.VistaRecord, error) {
	extraRefs, err := marshalExtraRefs(next.ExtraRefs)
	if err != nil {
		return domain.VistaRecord{}, fmt.Errorf("failed to marshal extra refs: %w", err)
	}

	// Optimistic check: the update only applies when the row still carries
	// the state the caller observed. A concurrent writer leaves zero rows
	// matched, which surfaces as a ConflictError.
	query := `
		UPDATE vista_records
		SET link_status = $2, titan_id = $3, extra_refs = $4, updated_at = now()
		WHERE id = $1 AND link_status = $5 AND titan_id IS NOT DISTINCT FROM $6
		RETURNING ` + vistaRecordColumns

	record, err := scanVistaRecord(r.db.QueryRow(ctx, query,
		id,
		string(next.Status),
		next.TitanID,
		extraRefs,
		string(expect.Status),
		expect.TitanID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VistaRecord{}, domain.NewConflictError("record %s changed concurrently, transition to %s not applied", id, next.Status)
		}
		// The partial unique index on (kind, titan_id) backs one-to-one
		// exclusivity; a concurrent link to the same titan loses here even
		// when the pre-check read stale counts.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.VistaRecord{}, domain.NewConflictError("titan record %s is already linked to another record", next.TitanID)
		}
		return domain.VistaRecord{}, fmt.Errorf("failed to apply link transition: %w", err)
	}
	return record, nil
}

func (r *vistaRecordRepository) LinkedTitanIDs(ctx context.Context, kind domain.Kind) (map[uuid.UUID]int, error) {
	query := `
		SELECT titan_id, COUNT(*)
		FROM vista_records
		WHERE kind = $1 AND titan_id IS NOT NULL AND link_status IN ('auto_matched', 'manual_matched')
		GROUP BY titan_id`

	rows, err := r.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to count linked titan ids: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var titanID uuid.UUID
		var count int
		if err := rows.Scan(&titanID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan linked titan count: %w", err)
		}
		counts[titanID] = count
	}
	return counts, rows.Err()
}

func (r *vistaRecordRepository) StatusCounts(ctx context.Context) (map[domain.Kind]map[domain.LinkStatus]int, error) {
	query := `SELECT kind, link_status, COUNT(*) FROM vista_records GROUP BY kind, link_status`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count vista records by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Kind]map[domain.LinkStatus]int)
	for rows.Next() {
		var kind, status string
		var count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		byStatus, ok := counts[domain.Kind(kind)]
		if !ok {
			byStatus = make(map[domain.LinkStatus]int)
			counts[domain.Kind(kind)] = byStatus
		}
		byStatus[domain.LinkStatus(status)] = count
	}
	return counts, rows.Err()
}

func collectVistaRecords(rows pgx.Rows) ([]domain.VistaRecord, error) {
	records := make([]domain.VistaRecord, 0)
	for rows.Next() {
		record, err := scanVistaRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vista record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanVistaRecord(row pgx.Row) (domain.VistaRecord, error) {
	var (
		record         domain.VistaRecord
		kind, status   string
		attributesJSON []byte
		extraRefsJSON  []byte
		startDate      *time.Time
	)

	err := row.Scan(
		&record.ID,
		&kind,
		&record.ExternalID,
		&record.Name,
		&record.Amount,
		&record.Location,
		&record.Email,
		&record.Phone,
		&startDate,
		&attributesJSON,
		&status,
		&record.TitanID,
		&extraRefsJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.VistaRecord{}, err
	}

	record.Kind = domain.Kind(kind)
	record.LinkStatus = domain.LinkStatus(status)
	record.StartDate = startDate

	if len(attributesJSON) > 0 {
		if err := json.Unmarshal(attributesJSON, &record.Attributes); err != nil {
			return domain.VistaRecord{}, fmt.Errorf("failed to decode attributes for record %s: %w", record.ID, err)
		}
	}
	if len(extraRefsJSON) > 0 {
		if err := json.Unmarshal(extraRefsJSON, &record.ExtraRefs); err != nil {
			return domain.VistaRecord{}, fmt.Errorf("failed to decode extra refs for record %s: %w", record.ID, err)
		}
	}
	return record, nil
}

func marshalAttributes(attributes map[string]any) ([]byte, error) {
	if attributes == nil {
		attributes = map[string]any{}
	}
	return json.Marshal(attributes)
}

func marshalExtraRefs(refs map[string]uuid.UUID) ([]byte, error) {
	if refs == nil {
		refs = map[string]uuid.UUID{}
	}
	return json.Marshal(refs)
}
