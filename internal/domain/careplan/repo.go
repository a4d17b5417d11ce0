package careplan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("care plan not found")

type ListFilter struct {
	ClientID        *uuid.UUID
	Status          Status
	ReviewDueBefore *time.Time
}

type CarePlanRepository interface {
	Create(ctx context.Context, cp *CarePlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*CarePlan, error)
	Update(ctx context.Context, cp *CarePlan) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*CarePlan, int, error)
}
