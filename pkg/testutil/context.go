package testutil

import (
	"context"
	"net/http"

	"intake/internal/platform/middleware"
	id "intake/pkg/domain"
)

// WithActor stamps the request context the way the auth middleware would for
// an authenticated staff member, so handlers can be tested without minting
// real tokens.
func WithActor(req *http.Request, staffID id.StaffID, role id.Role, username string) *http.Request {
	ctx := req.Context()
	ctx = context.WithValue(ctx, middleware.ContextKeyStaffID, staffID.String())
	ctx = context.WithValue(ctx, middleware.ContextKeyRole, string(role))
	ctx = context.WithValue(ctx, middleware.ContextKeyUsername, username)
	return req.WithContext(ctx)
}

// WithRequestID stamps a request ID into the context, matching what the
// request ID middleware does.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyRequestID, requestID)
	return req.WithContext(ctx)
}
