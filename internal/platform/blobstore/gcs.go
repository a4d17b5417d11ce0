package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket. Objects are named
// "<tenant>/<id>" and carry the remaining metadata as object metadata.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func objectName(tenantID, id string) string {
	return tenantID + "/" + id
}

func (s *GCSStore) Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	meta.ID = uuid.New().String()
	meta.CreatedAt = time.Now().UTC()

	w := s.client.Bucket(s.bucket).Object(objectName(meta.TenantID, meta.ID)).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.CacheControl = "private, no-store"
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", meta.FileName)

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(w, h), content)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	meta.Size = size
	meta.Hash = fmt.Sprintf("%x", h.Sum(nil))
	// metadata must be set before Close commits the object
	w.Metadata = map[string]string{
		"file_name":  meta.FileName,
		"owner":      meta.Owner,
		"owner_id":   meta.OwnerID,
		"created_by": meta.CreatedBy,
		"sha256":     meta.Hash,
		"size":       strconv.FormatInt(size, 10),
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}
	return &meta, nil
}

func (s *GCSStore) Get(ctx context.Context, tenantID, id string) (io.ReadCloser, *Metadata, error) {
	meta, err := s.Stat(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(objectName(tenantID, id)).NewReader(ctx)
	if err != nil {
		return nil, nil, mapGCSError(err)
	}
	return r, meta, nil
}

func (s *GCSStore) Stat(ctx context.Context, tenantID, id string) (*Metadata, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(objectName(tenantID, id)).Attrs(ctx)
	if err != nil {
		return nil, mapGCSError(err)
	}
	return metadataFromAttrs(tenantID, id, attrs), nil
}

func (s *GCSStore) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.client.Bucket(s.bucket).Object(objectName(tenantID, id)).Delete(ctx); err != nil {
		return mapGCSError(err)
	}
	return nil
}

func (s *GCSStore) ListByOwner(ctx context.Context, tenantID, owner, ownerID string) ([]*Metadata, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: tenantID + "/"})
	var out []*Metadata
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if attrs.Metadata["owner"] != owner || attrs.Metadata["owner_id"] != ownerID {
			continue
		}
		id := attrs.Name[len(tenantID)+1:]
		out = append(out, metadataFromAttrs(tenantID, id, attrs))
	}
	return out, nil
}

func metadataFromAttrs(tenantID, id string, attrs *storage.ObjectAttrs) *Metadata {
	return &Metadata{
		ID:          id,
		TenantID:    tenantID,
		FileName:    attrs.Metadata["file_name"],
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Owner:       attrs.Metadata["owner"],
		OwnerID:     attrs.Metadata["owner_id"],
		Hash:        attrs.Metadata["sha256"],
		CreatedAt:   attrs.Created,
		CreatedBy:   attrs.Metadata["created_by"],
	}
}

func mapGCSError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrBlobNotFound
	}
	return err
}
