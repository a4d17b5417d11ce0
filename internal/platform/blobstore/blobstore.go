// Package blobstore stores uploaded files (event attachments, tenancy
// agreements) behind a small interface with in-memory and Google Cloud
// Storage backends.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// Metadata describes a stored blob. Owner and OwnerID link it to the
// record it was attached to, e.g. "event" and the event id.
type Metadata struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"-"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Owner       string    `json:"owner"`
	OwnerID     string    `json:"ownerId"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`
}

// Store is implemented by every backend. All lookups are scoped to a
// tenant; a blob of another tenant reports ErrBlobNotFound.
type Store interface {
	Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Get(ctx context.Context, tenantID, id string) (io.ReadCloser, *Metadata, error)
	Stat(ctx context.Context, tenantID, id string) (*Metadata, error)
	Delete(ctx context.Context, tenantID, id string) error
	ListByOwner(ctx context.Context, tenantID, owner, ownerID string) ([]*Metadata, error)
}
