package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/titanbuild/vistalink/internal/domain"
)

// importBatchRepository implements ImportBatchRepository on PostgreSQL.
type importBatchRepository struct {
	db Querier
}

// NewImportBatchRepository creates a new import batch repository.
func NewImportBatchRepository(db Querier) ImportBatchRepository {
	return &importBatchRepository{db: db}
}

func (r *importBatchRepository) Record(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error) {
	countsJSON, err := json.Marshal(batch.KindCounts)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to marshal kind counts: %w", err)
	}

	query := `
		INSERT INTO import_batches (id, file_name, imported_by, kind_counts, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query, batch.ID, batch.FileName, batch.ImportedBy, countsJSON, batch.CreatedAt); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to record import batch: %w", err)
	}
	return batch, nil
}

func (r *importBatchRepository) List(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, file_name, imported_by, kind_counts, created_at
		FROM import_batches
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	batches := make([]domain.ImportBatch, 0)
	for rows.Next() {
		var batch domain.ImportBatch
		var countsJSON []byte
		if err := rows.Scan(&batch.ID, &batch.FileName, &batch.ImportedBy, &countsJSON, &batch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", err)
		}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &batch.KindCounts); err != nil {
				return nil, fmt.Errorf("failed to decode kind counts for batch %s: %w", batch.ID, err)
			}
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}
