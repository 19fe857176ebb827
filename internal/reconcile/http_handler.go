package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/titanbuild/vistalink/internal/domain"
	"github.com/titanbuild/vistalink/internal/repository"
)

// Handler exposes the reconciliation workflow under /vista-data.
//
//	GET    /vista-data/stats
//	GET    /vista-data/{kind}
//	GET    /vista-data/{kind}/duplicates
//	POST   /vista-data/{kind}/auto-link
//	POST   /vista-data/{kind}/import-to-native
//	GET    /vista-data/{kind}/native-only
//	DELETE /vista-data/{kind}/native-only
//	POST   /vista-data/{kind}/{id}/link
//	POST   /vista-data/{kind}/{id}/unlink
//	POST   /vista-data/{kind}/{id}/ignore
type Handler struct {
	service *Service
	prefix  string
}

// NewHTTPHandler wraps the service with the /vista-data routes.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service, prefix: "/vista-data/"}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, h.prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	segments := strings.Split(rest, "/")

	if segments[0] == "stats" {
		h.handleStats(w, r)
		return
	}

	kind, err := domain.ParseKind(segments[0])
	if err != nil {
		writeError(w, err)
		return
	}

	switch len(segments) {
	case 1:
		h.handleList(w, r, kind)
	case 2:
		h.handleKindAction(w, r, kind, segments[1])
	case 3:
		h.handleRecordAction(w, r, kind, segments[1], segments[2])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := repository.VistaRecordFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("link_status")); raw != "" {
		status, err := domain.ParseLinkStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.LinkStatus = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, domain.NewValidationError("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}

	records, err := h.service.List(r.Context(), kind, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleKindAction(w http.ResponseWriter, r *http.Request, kind domain.Kind, action string) {
	switch action {
	case "duplicates":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		threshold := 0.0
		if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, domain.NewValidationError("invalid threshold %q", raw))
				return
			}
			threshold = parsed
		}
		groups, err := h.service.Duplicates(r.Context(), kind, threshold)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"groups": groups})

	case "auto-link":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := h.service.AutoLink(r.Context(), kind)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "import-to-native":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			VistaIDs []uuid.UUID `json:"vista_ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		result, err := h.service.ImportToTitan(r.Context(), kind, body.VistaIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "native-only":
		switch r.Method {
		case http.MethodGet:
			records, err := h.service.NativeOnly(r.Context(), kind)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"records": records})
		case http.MethodDelete:
			deleted, err := h.service.DeleteNativeOnly(r.Context(), kind)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted_count": deleted})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleRecordAction(w http.ResponseWriter, r *http.Request, kind domain.Kind, rawID, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vistaID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, domain.NewValidationError("invalid record id %q", rawID))
		return
	}

	switch action {
	case "link":
		var body struct {
			TitanID   uuid.UUID            `json:"titan_id"`
			ExtraRefs map[string]uuid.UUID `json:"extra_refs"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		record, err := h.service.Link(r.Context(), kind, vistaID, body.TitanID, body.ExtraRefs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)

	case "unlink":
		record, err := h.service.Unlink(r.Context(), kind, vistaID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)

	case "ignore":
		record, err := h.service.Ignore(r.Context(), kind, vistaID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// decodeBody decodes an optional JSON body; an empty body is accepted so the
// action endpoints can be called without one.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.NewValidationError("invalid request body: %v", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// writeError maps domain error types onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		notLinkedErr  *domain.NotLinkedError
		conflictErr   *domain.ConflictError
		constraintErr *domain.ConstraintError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &notLinkedErr), errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &constraintErr):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
