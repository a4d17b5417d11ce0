package news2

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("observation not found")

type Repository interface {
	Create(ctx context.Context, o *Observation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Observation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Observation, int, error)
	// LatestPerClient returns the most recent observation of every client
	// that has one.
	LatestPerClient(ctx context.Context) ([]*DashboardEntry, error)
}
