package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/internal/auth"
	"intake/internal/platform/middleware"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
)

// Service defines the auth operations the handler exposes.
type Service interface {
	Login(ctx context.Context, username, password, userAgent string) (*auth.LoginResult, error)
	Logout(ctx context.Context, jti string) error
}

// TokenValidator extracts claims from the presented token for logout.
type TokenValidator interface {
	ValidateToken(tokenString string) (*middleware.TokenClaims, error)
}

// Handler wires login and logout endpoints to the auth service.
type Handler struct {
	service Service
	tokens  TokenValidator
	logger  *slog.Logger
}

// New constructs an auth handler with its dependencies.
func New(service Service, tokens TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// RegisterPublic mounts the login endpoint outside the auth middleware.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the authenticated logout endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
}

// LoginRequest is the HTTP request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "username and password are required")
	}
	return nil
}

// LoginResponse is the HTTP response for POST /auth/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	StaffID   string    `json:"staff_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// HandleLogin handles POST /auth/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Login(ctx, req.Username, req.Password, r.UserAgent())
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.logger.ErrorContext(ctx, "login failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		StaffID:   result.StaffID.String(),
		Username:  result.Username,
		Role:      string(result.Role),
	})
}

// HandleLogout handles POST /auth/logout requests. The middleware already
// validated the token; the claims are re-read here for the jti.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Logout(ctx, claims.JTI); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
