package medication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medication administration not found")

type Repository interface {
	Create(ctx context.Context, a *Administration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Administration, error)
	Update(ctx context.Context, a *Administration) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByClient returns the client's doses scheduled in [from, to),
	// earliest first.
	ListByClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]*Administration, error)
}
