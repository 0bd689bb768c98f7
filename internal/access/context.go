package access

import (
	"context"

	"intake/internal/platform/middleware"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// FromContext rebuilds the actor from the claims the auth middleware put on
// the request context.
func FromContext(ctx context.Context) (Actor, error) {
	staffID, err := id.ParseStaffID(middleware.GetStaffID(ctx))
	if err != nil {
		return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	role, err := id.ParseRole(middleware.GetRole(ctx))
	if err != nil {
		return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return Actor{
		ID:       staffID,
		Role:     role,
		Username: middleware.GetUsername(ctx),
	}, nil
}
