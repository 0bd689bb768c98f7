package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/internal/access"
	"intake/internal/audit"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
)

// Service defines the audit operations the handler exposes.
type Service interface {
	List(ctx context.Context, q audit.Query) ([]audit.Entry, error)
}

// Handler exposes the audit trail to admins, read-only.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the audit endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
}

// EntryResponse is one audit trail entry.
type EntryResponse struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id,omitempty"`
	ApplicantID string    `json:"applicant_id,omitempty"`
	Action      string    `json:"action"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromEntry converts a domain entry to an HTTP response.
func FromEntry(e audit.Entry) EntryResponse {
	resp := EntryResponse{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		Details:   e.Details,
		Timestamp: e.Timestamp,
	}
	if e.ActorID != nil {
		resp.ActorID = e.ActorID.String()
	}
	if e.ApplicantID != nil {
		resp.ApplicantID = e.ApplicantID.String()
	}
	return resp
}

// HandleList handles GET /audit requests. Filters: actor, applicant, from,
// to (RFC3339).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := access.FromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := access.CheckAdmin(actor); err != nil {
		httputil.WriteError(w, err)
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.List(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit trail"))
		return
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func parseQuery(r *http.Request) (audit.Query, error) {
	var q audit.Query
	params := r.URL.Query()

	if raw := params.Get("actor"); raw != "" {
		staffID, err := id.ParseStaffID(raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeInvalidInput, "malformed actor id")
		}
		q.ActorID = &staffID
	}
	if raw := params.Get("applicant"); raw != "" {
		applicantID, err := id.ParseApplicantID(raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeInvalidInput, "malformed applicant id")
		}
		q.ApplicantID = &applicantID
	}
	if raw := params.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC3339")
		}
		q.From = from
	}
	if raw := params.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC3339")
		}
		q.To = to
	}
	return q, nil
}
