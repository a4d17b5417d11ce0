package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("event not found")

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns the matching page ordered by occurred_at, newest first,
	// and the total number of matches.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error)
}
