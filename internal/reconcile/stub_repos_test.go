package reconcile

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/titanbuild/vistalink/internal/domain"
	"github.com/titanbuild/vistalink/internal/repository"
)

// stubTxRunner runs the function directly; the stub repos have no real
// transactions to bind to.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

// stubVistaRepo is an in-memory VistaRecordRepository that mirrors the
// optimistic transition semantics of the real store.
type stubVistaRepo struct {
	records map[uuid.UUID]domain.VistaRecord
}

func newStubVistaRepo(records ...domain.VistaRecord) *stubVistaRepo {
	repo := &stubVistaRepo{records: make(map[uuid.UUID]domain.VistaRecord)}
	for _, r := range records {
		repo.records[r.ID] = r
	}
	return repo
}

func (s *stubVistaRepo) GetByID(_ context.Context, kind domain.Kind, id uuid.UUID) (domain.VistaRecord, error) {
	record, ok := s.records[id]
	if !ok || record.Kind != kind {
		return domain.VistaRecord{}, domain.NewNotFoundError("vista %s record %s not found", kind, id)
	}
	return record, nil
}

func (s *stubVistaRepo) List(_ context.Context, kind domain.Kind, filter repository.VistaRecordFilter) ([]domain.VistaRecord, error) {
	var out []domain.VistaRecord
	for _, r := range s.records {
		if r.Kind != kind {
			continue
		}
		if filter.LinkStatus != nil && r.LinkStatus != *filter.LinkStatus {
			continue
		}
		out = append(out, r)
	}
	sortVistaRecords(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *stubVistaRepo) ListByStatus(_ context.Context, kind domain.Kind, statuses []domain.LinkStatus) ([]domain.VistaRecord, error) {
	wanted := make(map[domain.LinkStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}
	var out []domain.VistaRecord
	for _, r := range s.records {
		if r.Kind == kind && wanted[r.LinkStatus] {
			out = append(out, r)
		}
	}
	sortVistaRecords(out)
	return out, nil
}

func (s *stubVistaRepo) Upsert(_ context.Context, record domain.VistaRecord) (bool, error) {
	for id, existing := range s.records {
		if existing.Kind == record.Kind && existing.ExternalID == record.ExternalID {
			existing.Name = record.Name
			existing.Amount = record.Amount
			existing.Location = record.Location
			existing.Email = record.Email
			existing.Phone = record.Phone
			existing.StartDate = record.StartDate
			existing.Attributes = record.Attributes
			s.records[id] = existing
			return false, nil
		}
	}
	s.records[record.ID] = record
	return true, nil
}

func (s *stubVistaRepo) ApplyTransition(_ context.Context, id uuid.UUID, expect repository.LinkExpectation, next repository.LinkState) (domain.VistaRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return domain.VistaRecord{}, domain.NewConflictError("record %s changed concurrently", id)
	}
	if record.LinkStatus != expect.Status || !sameTitanRef(record.TitanID, expect.TitanID) {
		return domain.VistaRecord{}, domain.NewConflictError("record %s changed concurrently", id)
	}

	// Mirrors the partial unique index on (kind, titan_id): a second active
	// link to the same titan is rejected for one-to-one kinds.
	if next.Status.Linked() && next.TitanID != nil && record.Kind.OneToOne() {
		for _, other := range s.records {
			if other.ID != id && other.Kind == record.Kind && other.LinkStatus.Linked() &&
				other.TitanID != nil && *other.TitanID == *next.TitanID {
				return domain.VistaRecord{}, domain.NewConflictError(
					"titan record %s is already linked to another record", *next.TitanID)
			}
		}
	}

	record.LinkStatus = next.Status
	record.TitanID = next.TitanID
	record.ExtraRefs = next.ExtraRefs
	s.records[id] = record
	return record, nil
}

func (s *stubVistaRepo) LinkedTitanIDs(_ context.Context, kind domain.Kind) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int)
	for _, r := range s.records {
		if r.Kind == kind && r.LinkStatus.Linked() && r.TitanID != nil {
			counts[*r.TitanID]++
		}
	}
	return counts, nil
}

func (s *stubVistaRepo) WithTx(_ pgx.Tx) repository.VistaRecordRepository {
	return s
}

func (s *stubVistaRepo) StatusCounts(_ context.Context) (map[domain.Kind]map[domain.LinkStatus]int, error) {
	counts := make(map[domain.Kind]map[domain.LinkStatus]int)
	for _, r := range s.records {
		byStatus, ok := counts[r.Kind]
		if !ok {
			byStatus = make(map[domain.LinkStatus]int)
			counts[r.Kind] = byStatus
		}
		byStatus[r.LinkStatus]++
	}
	return counts, nil
}

// stubTitanRepo is an in-memory TitanRecordRepository. It rejects duplicate
// (kind, number) pairs among promoted rows the way the real store's partial
// unique index does.
type stubTitanRepo struct {
	records map[uuid.UUID]domain.TitanRecord
	vista   *stubVistaRepo
}

func newStubTitanRepo(vista *stubVistaRepo, records ...domain.TitanRecord) *stubTitanRepo {
	repo := &stubTitanRepo{records: make(map[uuid.UUID]domain.TitanRecord), vista: vista}
	for _, r := range records {
		repo.records[r.ID] = r
	}
	return repo
}

func (s *stubTitanRepo) GetByID(_ context.Context, id uuid.UUID) (domain.TitanRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return domain.TitanRecord{}, domain.NewNotFoundError("titan record %s not found", id)
	}
	return record, nil
}

func (s *stubTitanRepo) ListByKind(_ context.Context, kind domain.TitanKind) ([]domain.TitanRecord, error) {
	var out []domain.TitanRecord
	for _, r := range s.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sortTitanRecords(out)
	return out, nil
}

func (s *stubTitanRepo) Create(_ context.Context, record domain.TitanRecord) (domain.TitanRecord, error) {
	if record.CreatedFromVista {
		for _, existing := range s.records {
			if existing.Kind == record.Kind && existing.Number == record.Number && existing.CreatedFromVista {
				return domain.TitanRecord{}, domain.NewConstraintError(
					"titan %s record with number %q already exists", record.Kind, record.Number)
			}
		}
	}
	s.records[record.ID] = record
	return record, nil
}

func (s *stubTitanRepo) ListUnlinked(ctx context.Context, kind domain.Kind) ([]domain.TitanRecord, error) {
	// Links from every Vista kind sharing the titan table count; a project
	// linked by a work-order record is not an orphan of contracts.
	linked := make(map[uuid.UUID]int)
	for _, sibling := range kind.TitanKind().VistaKinds() {
		counts, err := s.vista.LinkedTitanIDs(ctx, sibling)
		if err != nil {
			return nil, err
		}
		for id, n := range counts {
			linked[id] += n
		}
	}
	var out []domain.TitanRecord
	for _, r := range s.records {
		if r.Kind == kind.TitanKind() && linked[r.ID] == 0 {
			out = append(out, r)
		}
	}
	sortTitanRecords(out)
	return out, nil
}

func (s *stubTitanRepo) DeleteUnlinked(ctx context.Context, kind domain.Kind) (int64, error) {
	unlinked, err := s.ListUnlinked(ctx, kind)
	if err != nil {
		return 0, err
	}
	for _, r := range unlinked {
		delete(s.records, r.ID)
	}
	return int64(len(unlinked)), nil
}

func (s *stubTitanRepo) WithTx(_ pgx.Tx) repository.TitanRecordRepository {
	return s
}

func (s *stubTitanRepo) CountByKind(_ context.Context) (map[domain.TitanKind]int, error) {
	counts := make(map[domain.TitanKind]int)
	for _, r := range s.records {
		counts[r.Kind]++
	}
	return counts, nil
}

func sortVistaRecords(records []domain.VistaRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].ExternalID != records[j].ExternalID {
			return records[i].ExternalID < records[j].ExternalID
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

func sortTitanRecords(records []domain.TitanRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Number != records[j].Number {
			return records[i].Number < records[j].Number
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

func sameTitanRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
