package staff

import (
	"context"

	id "intake/pkg/domain"
)

// Store is pure I/O for staff accounts; business rules live in the service.
// Implementations return sentinel.ErrNotFound for missing accounts and
// sentinel.ErrConflict for username collisions.
type Store interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, staffID id.StaffID) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, staffID id.StaffID) error
	Count(ctx context.Context) (int, error)
}
