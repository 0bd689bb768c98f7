package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/internal/access"
	"intake/internal/platform/middleware"
	"intake/internal/staff"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
)

// Service defines the staff operations the handler exposes.
type Service interface {
	Create(ctx context.Context, actor id.StaffID, username, password string, role id.Role, displayName string) (*staff.Account, error)
	Get(ctx context.Context, staffID id.StaffID) (*staff.Account, error)
	List(ctx context.Context) ([]*staff.Account, error)
	Update(ctx context.Context, actor id.StaffID, staffID id.StaffID, upd staff.Update) (*staff.Account, error)
	Delete(ctx context.Context, actor id.StaffID, staffID id.StaffID) error
}

// Handler wires staff account endpoints to the staff service. Management
// routes sit behind RequireAdmin; the self read is open to any authenticated
// actor. The handlers only parse and delegate.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a staff handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin management endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/staff", h.HandleCreate)
	r.Get("/staff", h.HandleList)
	r.Get("/staff/{id}", h.HandleGet)
	r.Patch("/staff/{id}", h.HandleUpdate)
	r.Delete("/staff/{id}", h.HandleDelete)
}

// RegisterSelf mounts the self read outside the admin group, so reviewers
// can see their own account.
func (h *Handler) RegisterSelf(r chi.Router) {
	r.Get("/staff/me", h.HandleGetSelf)
}

// CreateRequest is the HTTP request body for POST /staff.
type CreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`

	parsedRole id.Role
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	role, err := id.ParseRole(strings.ToUpper(strings.TrimSpace(r.Role)))
	if err != nil {
		return err
	}
	r.parsedRole = role
	return nil
}

// UpdateRequest is the HTTP request body for PATCH /staff/{id}. Absent
// fields stay untouched; role and username are not accepted at all.
type UpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	Active      *bool   `json:"active"`
}

// AccountResponse is the password-free account projection.
type AccountResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromAccount converts a domain account to an HTTP response.
func FromAccount(a *staff.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID.String(),
		Username:    a.Username,
		Role:        string(a.Role),
		DisplayName: a.DisplayName,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// HandleCreate handles POST /staff requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	account, err := h.service.Create(ctx, actor.ID, req.Username, req.Password, req.parsedRole, req.DisplayName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromAccount(account))
}

// HandleList handles GET /staff requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.actor(w, r); !ok {
		return
	}

	accounts, err := h.service.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, FromAccount(a))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /staff/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, staffID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	account, err := h.service.Get(ctx, staffID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// HandleGetSelf handles GET /staff/me requests. The record returned is the
// caller's own, so no further authorization applies.
func (h *Handler) HandleGetSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	account, err := h.service.Get(ctx, actor.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// HandleUpdate handles PATCH /staff/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, staffID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	account, err := h.service.Update(ctx, actor.ID, staffID, staff.Update{
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Active:      req.Active,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// HandleDelete handles DELETE /staff/{id} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, staffID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, actor.ID, staffID); err != nil {
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

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (access.Actor, id.StaffID, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return access.Actor{}, id.StaffID{}, false
	}
	staffID, err := id.ParseStaffID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return access.Actor{}, id.StaffID{}, false
	}
	return actor, staffID, true
}
