package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/titanbuild/vistalink/internal/domain"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx the repositories run
// queries through, so the same repository code works inside and outside a
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VistaRecordFilter narrows List results.
type VistaRecordFilter struct {
	LinkStatus *domain.LinkStatus
	Search     string
	Limit      int
}

// LinkState is the target of a link transition: the status plus the titan
// reference and secondary refs that go with it.
type LinkState struct {
	Status    domain.LinkStatus
	TitanID   *uuid.UUID
	ExtraRefs map[string]uuid.UUID
}

// LinkExpectation is the state the caller observed before deciding on a
// transition. ApplyTransition re-verifies it inside the update so concurrent
// writers lose with a ConflictError instead of silently overwriting.
type LinkExpectation struct {
	Status  domain.LinkStatus
	TitanID *uuid.UUID
}

// VistaRecordRepository persists Vista export rows and their link state.
type VistaRecordRepository interface {
	GetByID(ctx context.Context, kind domain.Kind, id uuid.UUID) (domain.VistaRecord, error)
	List(ctx context.Context, kind domain.Kind, filter VistaRecordFilter) ([]domain.VistaRecord, error)
	ListByStatus(ctx context.Context, kind domain.Kind, statuses []domain.LinkStatus) ([]domain.VistaRecord, error)

	// Upsert inserts or refreshes a row by (kind, external_id). Refreshing
	// updates the comparison fields only; link fields survive re-import.
	Upsert(ctx context.Context, record domain.VistaRecord) (created bool, err error)

	// ApplyTransition performs the optimistic compare-and-set link update.
	// Zero rows matched means a concurrent writer won; the caller receives a
	// ConflictError.
	ApplyTransition(ctx context.Context, id uuid.UUID, expect LinkExpectation, next LinkState) (domain.VistaRecord, error)

	// LinkedTitanIDs returns, per titan id, how many records of the kind hold
	// an active link to it.
	LinkedTitanIDs(ctx context.Context, kind domain.Kind) (map[uuid.UUID]int, error)

	// StatusCounts groups record counts by kind and link status. Stats are
	// always derived from this query, never cached.
	StatusCounts(ctx context.Context) (map[domain.Kind]map[domain.LinkStatus]int, error)

	// WithTx returns a copy of the repository bound to the transaction.
	WithTx(tx pgx.Tx) VistaRecordRepository
}

// TitanRecordRepository reads the application's own entities and creates the
// rows promoted from unmatched Vista records.
type TitanRecordRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.TitanRecord, error)
	ListByKind(ctx context.Context, kind domain.TitanKind) ([]domain.TitanRecord, error)

	// Create returns a ConstraintError when the titan store's own invariants
	// reject the row (duplicate natural key on import-promoted rows).
	Create(ctx context.Context, record domain.TitanRecord) (domain.TitanRecord, error)

	// ListUnlinked returns titan records of the kind's native table with no
	// active link from any Vista kind sharing that table. Projects linked by a
	// work-order record are not orphans when asked about through contracts.
	ListUnlinked(ctx context.Context, kind domain.Kind) ([]domain.TitanRecord, error)
	DeleteUnlinked(ctx context.Context, kind domain.Kind) (int64, error)

	CountByKind(ctx context.Context) (map[domain.TitanKind]int, error)

	// WithTx returns a copy of the repository bound to the transaction.
	WithTx(tx pgx.Tx) TitanRecordRepository
}

// ImportBatchRepository stores the append-only upload audit trail.
type ImportBatchRepository interface {
	Record(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error)
	List(ctx context.Context, limit int) ([]domain.ImportBatch, error)
}
