package domain

import (
	"time"

	"github.com/google/uuid"
)

// VistaRecord is a row imported from a Vista ERP export. The comparison
// fields are immutable between imports; only the link fields change through
// the reconciliation operations. Re-import upserts by (kind, external_id) and
// refreshes the comparison fields while preserving the link.
type VistaRecord struct {
	ID         uuid.UUID      `json:"id"`
	Kind       Kind           `json:"kind"`
	ExternalID string         `json:"external_id"`
	Name       string         `json:"name"`
	Amount     *float64       `json:"amount,omitempty"`
	Location   string         `json:"location,omitempty"`
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`

	LinkStatus LinkStatus           `json:"link_status"`
	TitanID    *uuid.UUID           `json:"titan_id,omitempty"`
	ExtraRefs  map[string]uuid.UUID `json:"extra_refs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewVistaRecord builds an unmatched record for a freshly imported row.
func NewVistaRecord(kind Kind, externalID, name string) VistaRecord {
	now := time.Now()
	return VistaRecord{
		ID:         uuid.New(),
		Kind:       kind,
		ExternalID: externalID,
		Name:       name,
		LinkStatus: LinkStatusUnmatched,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// LinkedTo reports whether the record currently holds an active link to the
// given titan record.
func (v VistaRecord) LinkedTo(titanID uuid.UUID) bool {
	return v.LinkStatus.Linked() && v.TitanID != nil && *v.TitanID == titanID
}
