package forms

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("form not found")
	ErrSubmissionNotFound = errors.New("form submission not found")
)

type SchemaRepository interface {
	Create(ctx context.Context, s *Schema) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schema, error)
	Update(ctx context.Context, s *Schema) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns schemas newest first; publishedOnly hides drafts.
	List(ctx context.Context, publishedOnly bool, limit, offset int) ([]*Schema, int, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, sub *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	Update(ctx context.Context, sub *Submission) error
	ListByForm(ctx context.Context, formID uuid.UUID, limit, offset int) ([]*Submission, int, error)
}
