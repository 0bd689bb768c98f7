package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"intake/internal/access"
	"intake/internal/applicant"
	"intake/internal/platform/middleware"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
)

// Service defines the applicant operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, sub applicant.Submission) (applicant.Summary, error)
	Get(ctx context.Context, actor access.Actor, applicantID id.ApplicantID) (*applicant.View, error)
	List(ctx context.Context, actor access.Actor, f applicant.Filter) ([]applicant.Summary, error)
	Search(ctx context.Context, actor access.Actor, query string) ([]applicant.Summary, error)
	UpdateStatus(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, to applicant.Status) (applicant.Summary, error)
	AddNote(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, text string) (applicant.Summary, error)
	SetCustomFields(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, fields map[string]any) (applicant.Summary, error)
	Purge(ctx context.Context, actor access.Actor, applicantID id.ApplicantID) error
}

// QueueService defines the assignment operations the handler exposes.
type QueueService interface {
	ClaimNext(ctx context.Context, reviewer access.Actor) (applicant.Summary, error)
	ManualAssign(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, reviewerID id.StaffID) (applicant.Summary, error)
	ReclaimStale(ctx context.Context, actor access.Actor) (int, error)
}

// Handler wires applicant and queue endpoints to their services.
type Handler struct {
	service Service
	queue   QueueService
	logger  *slog.Logger
}

// New constructs an applicant handler with its dependencies.
func New(service Service, queue QueueService, logger *slog.Logger) *Handler {
	return &Handler{service: service, queue: queue, logger: logger}
}

// RegisterPublic mounts the unauthenticated intake endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/public/apply", h.HandleSubmit)
}

// Register mounts the authenticated applicant endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/applicants", h.HandleList)
	r.Get("/applicants/search", h.HandleSearch)
	r.Get("/applicants/{id}", h.HandleGet)
	r.Patch("/applicants/{id}/status", h.HandleUpdateStatus)
	r.Post("/applicants/{id}/notes", h.HandleAddNote)
	r.Put("/applicants/{id}/custom-fields", h.HandleSetCustomFields)
	r.Post("/applicants/next", h.HandleClaimNext)
	r.Post("/applicants/{id}/assign", h.HandleManualAssign)
	r.Post("/applicants/reclaim-stale", h.HandleReclaimStale)
	r.Delete("/applicants/{id}", h.HandlePurge)
}

// HandleSubmit handles POST /public/apply requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	summary, err := h.service.Submit(ctx, req.Submission())
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeDuplicate) {
			h.logger.ErrorContext(ctx, "submission failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSummary(summary))
}

// HandleGet handles GET /applicants/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(ctx, actor, applicantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleList handles GET /applicants requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var f applicant.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := applicant.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown status filter"))
			return
		}
		f.Status = &status
	}

	summaries, err := h.service.List(ctx, actor, f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummaries(summaries))
}

// HandleSearch handles GET /applicants/search?q= requests.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.Search(ctx, actor, r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummaries(summaries))
}

// HandleUpdateStatus handles PATCH /applicants/{id}/status requests.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	summary, err := h.service.UpdateStatus(ctx, actor, applicantID, req.ParsedStatus())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleAddNote handles POST /applicants/{id}/notes requests.
func (h *Handler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	summary, err := h.service.AddNote(ctx, actor, applicantID, req.Text)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleSetCustomFields handles PUT /applicants/{id}/custom-fields requests.
func (h *Handler) HandleSetCustomFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CustomFieldsRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	summary, err := h.service.SetCustomFields(ctx, actor, applicantID, req.Fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleClaimNext handles POST /applicants/next requests. An empty queue is
// 204, not an error.
func (h *Handler) HandleClaimNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	summary, err := h.queue.ClaimNext(ctx, actor)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleManualAssign handles POST /applicants/{id}/assign requests.
func (h *Handler) HandleManualAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	reviewerID, err := id.ParseStaffID(req.ReviewerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.queue.ManualAssign(ctx, actor, applicantID, reviewerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleReclaimStale handles POST /applicants/reclaim-stale requests.
func (h *Handler) HandleReclaimStale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	count, err := h.queue.ReclaimStale(ctx, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReclaimResponse{Count: count})
}

// HandlePurge handles DELETE /applicants/{id} requests.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, applicantID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Purge(ctx, actor, applicantID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, err := access.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return access.Actor{}, false
	}
	return actor, true
}

// actorAndID parses the path id before touching the store. A malformed id
// gets the same denial a reviewer would see for any other unknown record.
func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (access.Actor, id.ApplicantID, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return access.Actor{}, id.ApplicantID{}, false
	}
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "id"))
	if err != nil {
		if actor.IsAdmin() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed applicant id"))
		} else {
			httputil.WriteError(w, access.Denied())
		}
		return access.Actor{}, id.ApplicantID{}, false
	}
	return actor, applicantID, true
}
