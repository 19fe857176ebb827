package domain

import (
	"time"

	"github.com/google/uuid"
)

// TitanRecord is a first-party entity owned by the surrounding application.
// The reconciliation engine reads these for matching and creates new ones when
// promoting unmatched Vista rows; CreatedFromVista marks the promoted rows.
type TitanRecord struct {
	ID               uuid.UUID  `json:"id"`
	Kind             TitanKind  `json:"kind"`
	Number           string     `json:"number"`
	Name             string     `json:"name"`
	Amount           *float64   `json:"amount,omitempty"`
	Location         string     `json:"location,omitempty"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	CreatedFromVista bool       `json:"created_from_vista"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TitanFromVista maps a Vista record's fields onto a new titan record. The
// import act itself is the linking decision, so the caller links the result
// immediately after creation.
func TitanFromVista(v VistaRecord) TitanRecord {
	now := time.Now()
	return TitanRecord{
		ID:               uuid.New(),
		Kind:             v.Kind.TitanKind(),
		Number:           v.ExternalID,
		Name:             v.Name,
		Amount:           v.Amount,
		Location:         v.Location,
		Email:            v.Email,
		Phone:            v.Phone,
		StartDate:        v.StartDate,
		CreatedFromVista: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
