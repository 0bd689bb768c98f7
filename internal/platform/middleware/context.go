package middleware

import "context"

// Context keys for request-scoped values set by this package.
type contextKeyStaffID struct{}
type contextKeyRole struct{}
type contextKeyUsername struct{}
type contextKeyRequestID struct{}

var (
	ContextKeyStaffID   = contextKeyStaffID{}
	ContextKeyRole      = contextKeyRole{}
	ContextKeyUsername  = contextKeyUsername{}
	ContextKeyRequestID = contextKeyRequestID{}
)

// GetStaffID retrieves the authenticated staff ID from the context.
func GetStaffID(ctx context.Context) string {
	v, ok := ctx.Value(ContextKeyStaffID).(string)
	if !ok {
		return ""
	}
	return v
}

// GetRole retrieves the authenticated role claim from the context.
func GetRole(ctx context.Context) string {
	v, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return v
}

// GetUsername retrieves the authenticated username claim from the context.
func GetUsername(ctx context.Context) string {
	v, ok := ctx.Value(ContextKeyUsername).(string)
	if !ok {
		return ""
	}
	return v
}

// GetRequestID retrieves the request correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	v, ok := ctx.Value(ContextKeyRequestID).(string)
	if !ok {
		return ""
	}
	return v
}
