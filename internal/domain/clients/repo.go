package clients

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("client not found")
	ErrAgreementNotFound = errors.New("agreement not found")
	ErrDuplicateNHS      = errors.New("a client with this NHS number already exists")
)

// ListFilter narrows the client list. Search matches names and the NHS
// number.
type ListFilter struct {
	Status   Status
	BranchID string
	Search   string
}

type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Client, int, error)
}

type AgreementRepository interface {
	Create(ctx context.Context, a *Agreement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agreement, error)
	Update(ctx context.Context, a *Agreement) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Agreement, error)
}
