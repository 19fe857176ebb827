package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/titanbuild/vistalink/internal/domain"
	"github.com/titanbuild/vistalink/internal/matching"
	"github.com/titanbuild/vistalink/internal/repository"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// db.Connection.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Service drives the reconciliation workflow between Vista export records and
// titan entities: manual linking, deterministic auto-linking, promotion of
// unmatched records, duplicate surfacing and derived stats.
type Service struct {
	vistaRepo     repository.VistaRecordRepository
	titanRepo     repository.TitanRecordRepository
	tx            TxRunner
	minSimilarity float64
}

// NewService creates a reconciliation service. minSimilarity is the default
// duplicate threshold used when a caller does not supply one.
func NewService(
	vistaRepo repository.VistaRecordRepository,
	titanRepo repository.TitanRecordRepository,
	tx TxRunner,
	minSimilarity float64,
) *Service {
	if minSimilarity <= 0 || minSimilarity > 1 {
		minSimilarity = matching.DefaultMinSimilarity
	}
	return &Service{
		vistaRepo:     vistaRepo,
		titanRepo:     titanRepo,
		tx:            tx,
		minSimilarity: minSimilarity,
	}
}

// AutoLinkResult reports one auto-link run.
type AutoLinkResult struct {
	LinkedCount  int `json:"linked_count"`
	SkippedCount int `json:"skipped_count"`
}

// ImportFailure records one rejected row of an import-to-titan batch.
type ImportFailure struct {
	VistaID    uuid.UUID `json:"vista_id"`
	ExternalID string    `json:"external_id"`
	Error      string    `json:"error"`
}

// ImportResult reports one import-to-titan batch.
type ImportResult struct {
	ImportedCount   int             `json:"imported_count"`
	CreatedTitanIDs []uuid.UUID     `json:"created_titan_ids"`
	Failures        []ImportFailure `json:"failures,omitempty"`
}

// KindStats aggregates record counts for one kind.
type KindStats struct {
	VistaTotal int `json:"vista_total"`
	TitanTotal int `json:"titan_total"`
	Linked     int `json:"linked"`
	Unmatched  int `json:"unmatched"`
	Ignored    int `json:"ignored"`
}

// Stats is the derived per-kind aggregation. It is recomputed from the link
// store on every call, never cached.
type Stats struct {
	Kinds       map[domain.Kind]KindStats `json:"kinds"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// List returns Vista records of a kind with optional status/search filters.
func (s *Service) List(ctx context.Context, kind domain.Kind, filter repository.VistaRecordFilter) ([]domain.VistaRecord, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return s.vistaRepo.List(ctx, kind, filter)
}

// Status returns the link status of a single record.
func (s *Service) Status(ctx context.Context, kind domain.Kind, vistaID uuid.UUID) (domain.LinkStatus, error) {
	record, err := s.vistaRepo.GetByID(ctx, kind, vistaID)
	if err != nil {
		return "", err
	}
	return record.LinkStatus, nil
}

// Link attaches a Vista record to a titan record as manual_matched. Linking
// to the record's current target is a no-op; linking while attached to a
// different target fails with a ConflictError, and for one-to-one kinds so
// does linking to a titan already consumed by another record.
func (s *Service) Link(ctx context.Context, kind domain.Kind, vistaID, titanID uuid.UUID, extraRefs map[string]uuid.UUID) (domain.VistaRecord, error) {
	if titanID == uuid.Nil {
		return domain.VistaRecord{}, domain.NewValidationError("titan_id is required")
	}

	record, err := s.vistaRepo.GetByID(ctx, kind, vistaID)
	if err != nil {
		return domain.VistaRecord{}, err
	}

	if record.LinkedTo(titanID) {
		return record, nil
	}
	if record.LinkStatus.Linked() {
		return domain.VistaRecord{}, domain.NewConflictError(
			"record %s is already linked to titan %s, unlink it first", vistaID, *record.TitanID)
	}
	if !record.LinkStatus.CanTransitionTo(domain.LinkStatusManualMatched) {
		return domain.VistaRecord{}, domain.NewConflictError(
			"record %s cannot move from %s to %s", vistaID, record.LinkStatus, domain.LinkStatusManualMatched)
	}

	titan, err := s.titanRepo.GetByID(ctx, titanID)
	if err != nil {
		return domain.VistaRecord{}, err
	}
	if titan.Kind != kind.TitanKind() {
		return domain.VistaRecord{}, domain.NewValidationError(
			"titan record %s is a %s, expected %s", titanID, titan.Kind, kind.TitanKind())
	}

	if kind.OneToOne() {
		if err := s.ensureTitanFree(ctx, kind, titanID); err != nil {
			return domain.VistaRecord{}, err
		}
	}

	return s.vistaRepo.ApplyTransition(ctx, vistaID,
		repository.LinkExpectation{Status: record.LinkStatus, TitanID: record.TitanID},
		repository.LinkState{Status: domain.LinkStatusManualMatched, TitanID: &titanID, ExtraRefs: extraRefs},
	)
}

// Unlink clears the titan reference and returns the record to unmatched.
// This is also the re-activation path for ignored records. Unlinking an
// unmatched record fails with a NotLinkedError.
func (s *Service) Unlink(ctx context.Context, kind domain.Kind, vistaID uuid.UUID) (domain.VistaRecord, error) {
	record, err := s.vistaRepo.GetByID(ctx, kind, vistaID)
	if err != nil {
		return domain.VistaRecord{}, err
	}

	if record.LinkStatus == domain.LinkStatusUnmatched {
		return domain.VistaRecord{}, domain.NewNotLinkedError("record %s has no active link", vistaID)
	}

	return s.vistaRepo.ApplyTransition(ctx, vistaID,
		repository.LinkExpectation{Status: record.LinkStatus, TitanID: record.TitanID},
		repository.LinkState{Status: domain.LinkStatusUnmatched},
	)
}

// Ignore marks a record as having no titan counterpart, clearing any
// reference. Ignoring an ignored record is a no-op; Unlink reverses it.
func (s *Service) Ignore(ctx context.Context, kind domain.Kind, vistaID uuid.UUID) (domain.VistaRecord, error) {
	record, err := s.vistaRepo.GetByID(ctx, kind, vistaID)
	if err != nil {
		return domain.VistaRecord{}, err
	}

	if record.LinkStatus == domain.LinkStatusIgnored {
		return record, nil
	}

	return s.vistaRepo.ApplyTransition(ctx, vistaID,
		repository.LinkExpectation{Status: record.LinkStatus, TitanID: record.TitanID},
		repository.LinkState{Status: domain.LinkStatusIgnored},
	)
}

// Duplicates ranks unmatched records of a kind against every titan candidate
// at or above the threshold. Results are recomputed on every call.
func (s *Service) Duplicates(ctx context.Context, kind domain.Kind, threshold float64) ([]domain.DuplicateGroup, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.minSimilarity
	}
	if threshold > 1 {
		return nil, domain.NewValidationError("threshold %v is out of range (0,1]", threshold)
	}

	vistas, err := s.vistaRepo.ListByStatus(ctx, kind, []domain.LinkStatus{domain.LinkStatusUnmatched})
	if err != nil {
		return nil, err
	}
	titans, err := s.titanRepo.ListByKind(ctx, kind.TitanKind())
	if err != nil {
		return nil, err
	}
	consumed, err := s.consumedTitans(ctx, kind)
	if err != nil {
		return nil, err
	}

	ranked := matching.Rank(vistas, titans, matching.ProfileFor(kind), threshold, consumed)

	groups := make([]domain.DuplicateGroup, 0)
	for _, v := range vistas {
		candidates := ranked[v.ID]
		if len(candidates) == 0 {
			continue
		}
		groups = append(groups, domain.DuplicateGroup{Record: v, PotentialMatches: candidates})
	}
	return groups, nil
}

// AutoLink creates auto_matched links for every record of the kind whose
// external identifier matches exactly one titan record. Ambiguous matches and
// already-consumed targets are skipped and counted, never resolved silently.
// Running twice with no data change links zero records the second time.
func (s *Service) AutoLink(ctx context.Context, kind domain.Kind) (AutoLinkResult, error) {
	result := AutoLinkResult{}
	if err := kind.Validate(); err != nil {
		return result, err
	}

	candidates, err := s.vistaRepo.ListByStatus(ctx, kind,
		[]domain.LinkStatus{domain.LinkStatusUnmatched, domain.LinkStatusAutoMatched})
	if err != nil {
		return result, err
	}
	titans, err := s.titanRepo.ListByKind(ctx, kind.TitanKind())
	if err != nil {
		return result, err
	}

	linkedCounts, err := s.vistaRepo.LinkedTitanIDs(ctx, kind)
	if err != nil {
		return result, err
	}

	oneToOne := kind.OneToOne()

	for _, v := range candidates {
		matches := matching.ExactMatches(v, titans)
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			result.SkippedCount++
			continue
		}

		titan := matches[0]
		if v.LinkedTo(titan.ID) {
			continue
		}
		if v.LinkStatus == domain.LinkStatusAutoMatched {
			// An earlier run linked this record to a titan that no longer
			// matches its identifier. Never silently re-target.
			result.SkippedCount++
			continue
		}
		if oneToOne && linkedCounts[titan.ID] > 0 {
			result.SkippedCount++
			continue
		}

		_, err := s.vistaRepo.ApplyTransition(ctx, v.ID,
			repository.LinkExpectation{Status: v.LinkStatus, TitanID: v.TitanID},
			repository.LinkState{Status: domain.LinkStatusAutoMatched, TitanID: &titan.ID, ExtraRefs: v.ExtraRefs},
		)
		if err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				result.SkippedCount++
				continue
			}
			return result, fmt.Errorf("auto-link %s record %s: %w", kind, v.ID, err)
		}

		result.LinkedCount++
		if oneToOne {
			linkedCounts[titan.ID]++
		}
	}

	log.Printf("[RECONCILE] auto-link %s: linked=%d skipped=%d", kind, result.LinkedCount, result.SkippedCount)
	return result, nil
}

// ImportToTitan promotes unmatched records into new titan records and links
// each one manual_matched; the import act is the linking decision. Each record
// is promoted in its own transaction, so a failed link rolls back the titan
// row instead of leaving it orphaned. Records rejected by the titan store are
// reported individually and the batch continues.
func (s *Service) ImportToTitan(ctx context.Context, kind domain.Kind, vistaIDs []uuid.UUID) (ImportResult, error) {
	result := ImportResult{CreatedTitanIDs: []uuid.UUID{}}
	if err := kind.Validate(); err != nil {
		return result, err
	}

	var records []domain.VistaRecord
	if len(vistaIDs) > 0 {
		for _, id := range vistaIDs {
			record, err := s.vistaRepo.GetByID(ctx, kind, id)
			if err != nil {
				var notFound *domain.NotFoundError
				if errors.As(err, &notFound) {
					result.Failures = append(result.Failures, ImportFailure{VistaID: id, Error: err.Error()})
					continue
				}
				return result, err
			}
			records = append(records, record)
		}
	} else {
		unmatched, err := s.vistaRepo.ListByStatus(ctx, kind, []domain.LinkStatus{domain.LinkStatusUnmatched})
		if err != nil {
			return result, err
		}
		records = unmatched
	}

	for _, v := range records {
		if v.LinkStatus.Linked() {
			result.Failures = append(result.Failures, ImportFailure{
				VistaID:    v.ID,
				ExternalID: v.ExternalID,
				Error:      fmt.Sprintf("record is already linked (%s)", v.LinkStatus),
			})
			continue
		}

		var titanID uuid.UUID
		err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			titan, err := s.titanRepo.WithTx(tx).Create(ctx, domain.TitanFromVista(v))
			if err != nil {
				return err
			}
			if _, err := s.vistaRepo.WithTx(tx).ApplyTransition(ctx, v.ID,
				repository.LinkExpectation{Status: v.LinkStatus, TitanID: v.TitanID},
				repository.LinkState{Status: domain.LinkStatusManualMatched, TitanID: &titan.ID, ExtraRefs: v.ExtraRefs},
			); err != nil {
				return err
			}
			titanID = titan.ID
			return nil
		})
		if err != nil {
			var constraint *domain.ConstraintError
			var conflict *domain.ConflictError
			if errors.As(err, &constraint) || errors.As(err, &conflict) {
				result.Failures = append(result.Failures, ImportFailure{
					VistaID:    v.ID,
					ExternalID: v.ExternalID,
					Error:      err.Error(),
				})
				continue
			}
			return result, fmt.Errorf("import %s record %s: %w", kind, v.ID, err)
		}

		result.ImportedCount++
		result.CreatedTitanIDs = append(result.CreatedTitanIDs, titanID)
	}

	log.Printf("[RECONCILE] import %s: imported=%d failed=%d", kind, result.ImportedCount, len(result.Failures))
	return result, nil
}

// NativeOnly lists titan records of the kind with no active Vista link.
func (s *Service) NativeOnly(ctx context.Context, kind domain.Kind) ([]domain.TitanRecord, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return s.titanRepo.ListUnlinked(ctx, kind)
}

// DeleteNativeOnly removes titan records of the kind with no active Vista
// link and returns how many were deleted.
func (s *Service) DeleteNativeOnly(ctx context.Context, kind domain.Kind) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	deleted, err := s.titanRepo.DeleteUnlinked(ctx, kind)
	if err != nil {
		return 0, err
	}
	log.Printf("[RECONCILE] delete native-only %s: deleted=%d", kind, deleted)
	return deleted, nil
}

// Stats derives per-kind totals from the link store.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	statusCounts, err := s.vistaRepo.StatusCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	titanCounts, err := s.titanRepo.CountByKind(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Kinds: make(map[domain.Kind]KindStats), GeneratedAt: time.Now()}
	for _, kind := range domain.AllKinds() {
		byStatus := statusCounts[kind]
		ks := KindStats{
			TitanTotal: titanCounts[kind.TitanKind()],
			Linked:     byStatus[domain.LinkStatusAutoMatched] + byStatus[domain.LinkStatusManualMatched],
			Unmatched:  byStatus[domain.LinkStatusUnmatched],
			Ignored:    byStatus[domain.LinkStatusIgnored],
		}
		ks.VistaTotal = ks.Linked + ks.Unmatched + ks.Ignored
		stats.Kinds[kind] = ks
	}
	return stats, nil
}

func (s *Service) ensureTitanFree(ctx context.Context, kind domain.Kind, titanID uuid.UUID) error {
	linkedCounts, err := s.vistaRepo.LinkedTitanIDs(ctx, kind)
	if err != nil {
		return err
	}
	if linkedCounts[titanID] > 0 {
		return domain.NewConflictError("titan record %s is already linked to another %s record", titanID, kind)
	}
	return nil
}

func (s *Service) consumedTitans(ctx context.Context, kind domain.Kind) (map[uuid.UUID]bool, error) {
	linkedCounts, err := s.vistaRepo.LinkedTitanIDs(ctx, kind)
	if err != nil {
		return nil, err
	}
	consumed := make(map[uuid.UUID]bool, len(linkedCounts))
	for id, count := range linkedCounts {
		if count > 0 {
			consumed[id] = true
		}
	}
	return consumed, nil
}
