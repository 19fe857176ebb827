package domain

import "github.com/google/uuid"

// MatchCandidate is a computed pairing between a Vista record and a titan
// record. Candidates are never persisted; they are recomputed on demand.
type MatchCandidate struct {
	VistaID       uuid.UUID `json:"vista_id"`
	TitanID       uuid.UUID `json:"titan_id"`
	TitanNumber   string    `json:"titan_number"`
	TitanName     string    `json:"titan_name"`
	Similarity    float64   `json:"similarity"`
	MatchedFields []string  `json:"matched_fields"`
}

// DuplicateGroup pairs an unlinked Vista record with its ranked titan
// candidates, as surfaced by the duplicates endpoint.
type DuplicateGroup struct {
	Record           VistaRecord      `json:"record"`
	PotentialMatches []MatchCandidate `json:"potential_matches"`
}
