package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportKindCount breaks an upload down per kind.
type ImportKindCount struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// ImportBatch is the append-only audit record of one ERP export upload.
type ImportBatch struct {
	ID         uuid.UUID                `json:"id"`
	FileName   string                   `json:"file_name"`
	ImportedBy string                   `json:"imported_by"`
	KindCounts map[Kind]ImportKindCount `json:"kind_counts"`
	CreatedAt  time.Time                `json:"created_at"`
}

// NewImportBatch builds a batch record for a completed upload.
func NewImportBatch(fileName, importedBy string, counts map[Kind]ImportKindCount) ImportBatch {
	return ImportBatch{
		ID:         uuid.New(),
		FileName:   fileName,
		ImportedBy: importedBy,
		KindCounts: counts,
		CreatedAt:  time.Now(),
	}
}

// TotalNew sums freshly inserted rows across kinds.
func (b ImportBatch) TotalNew() int {
	total := 0
	for _, c := range b.KindCounts {
		total += c.New
	}
	return total
}

// TotalUpdated sums re-imported rows across kinds.
func (b ImportBatch) TotalUpdated() int {
	total := 0
	for _, c := range b.KindCounts {
		total += c.Updated
	}
	return total
}
