package reconcile

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/titanbuild/vistalink/internal/domain"
)

func newTestHandler(vista *stubVistaRepo, titan *stubTitanRepo) *Handler {
	return NewHTTPHandler(newTestService(vista, titan))
}

func TestHandlerStats(t *testing.T) {
	v := domain.NewVistaRecord(domain.KindContracts, "C-1", "Bridge Works")
	vistaRepo := newStubVistaRepo(v)
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vista-data/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Kinds map[string]struct {
			VistaTotal int `json:"vista_total"`
		} `json:"kinds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid stats payload: %v", err)
	}
	if payload.Kinds["contracts"].VistaTotal != 1 {
		t.Fatalf("expected 1 contract, got %+v", payload.Kinds)
	}
}

func TestHandlerRejectsUnknownKind(t *testing.T) {
	vistaRepo := newStubVistaRepo()
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vista-data/invoices", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestHandlerListFiltersByStatus(t *testing.T) {
	open := domain.NewVistaRecord(domain.KindVendors, "V-1", "Granite Supply")
	skipped := domain.NewVistaRecord(domain.KindVendors, "V-2", "Old Vendor")
	skipped.LinkStatus = domain.LinkStatusIgnored

	vistaRepo := newStubVistaRepo(open, skipped)
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vista-data/vendors?link_status=unmatched", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Records []domain.VistaRecord `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid list payload: %v", err)
	}
	if len(payload.Records) != 1 || payload.Records[0].ExternalID != "V-1" {
		t.Fatalf("unexpected records: %+v", payload.Records)
	}
}

func TestHandlerLinkAndConflictStatuses(t *testing.T) {
	v := domain.NewVistaRecord(domain.KindContracts, "C-1", "Bridge Works")
	titan := domain.TitanRecord{ID: uuid.New(), Kind: domain.TitanKindProjects, Number: "P-1", Name: "Bridge Works"}
	other := domain.TitanRecord{ID: uuid.New(), Kind: domain.TitanKindProjects, Number: "P-2", Name: "Other"}

	vistaRepo := newStubVistaRepo(v)
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo, titan, other))

	link := func(titanID uuid.UUID) *httptest.ResponseRecorder {
		body := strings.NewReader(fmt.Sprintf(`{"titan_id":%q}`, titanID))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/vista-data/contracts/"+v.ID.String()+"/link", body)
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := link(titan.ID); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on link, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := link(other.ID); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when linked elsewhere, got %d", rec.Code)
	}
}

func TestHandlerUnlinkUnmatchedReturnsConflict(t *testing.T) {
	v := domain.NewVistaRecord(domain.KindCustomers, "CUST-1", "Acme Corp")
	vistaRepo := newStubVistaRepo(v)
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vista-data/customers/"+v.ID.String()+"/unlink", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unlink of unmatched record, got %d", rec.Code)
	}
}

func TestHandlerRecordActionRejectsBadID(t *testing.T) {
	vistaRepo := newStubVistaRepo()
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vista-data/customers/not-a-uuid/link", strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestHandlerAutoLinkEndpoint(t *testing.T) {
	v := domain.NewVistaRecord(domain.KindEmployees, "EMP-1", "Sam Doe")
	titan := domain.TitanRecord{ID: uuid.New(), Kind: domain.TitanKindEmployees, Number: "EMP-1", Name: "Sam Doe"}

	vistaRepo := newStubVistaRepo(v)
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo, titan))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vista-data/employees/auto-link", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result AutoLinkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid auto-link payload: %v", err)
	}
	if result.LinkedCount != 1 {
		t.Fatalf("expected 1 linked, got %+v", result)
	}
}

func TestHandlerNativeOnlyDelete(t *testing.T) {
	orphan := domain.TitanRecord{ID: uuid.New(), Kind: domain.TitanKindVendors, Number: "V-1", Name: "Orphan"}
	vistaRepo := newStubVistaRepo()
	handler := newTestHandler(vistaRepo, newStubTitanRepo(vistaRepo, orphan))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/vista-data/vendors/native-only", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid delete payload: %v", err)
	}
	if payload.DeletedCount != 1 {
		t.Fatalf("expected 1 deleted, got %d", payload.DeletedCount)
	}
}
