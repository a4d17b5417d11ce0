package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedBlob struct {
	metadata Metadata
	content  []byte
}

// MemoryStore keeps blobs in process memory. Development and tests only.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
	// MaxSize bounds any single blob regardless of policy.
	MaxSize int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[string]*storedBlob),
		MaxSize: AgreementMaxSize,
	}
}

func (s *MemoryStore) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}

	data, err := io.ReadAll(io.LimitReader(content, s.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > s.MaxSize {
		return nil, ErrFileTooLarge
	}

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	meta.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) lookup(tenantID, id string) (*storedBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok || blob.metadata.TenantID != tenantID {
		return nil, ErrBlobNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (io.ReadCloser, *Metadata, error) {
	blob, err := s.lookup(tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *MemoryStore) Stat(_ context.Context, tenantID, id string) (*Metadata, error) {
	blob, err := s.lookup(tenantID, id)
	if err != nil {
		return nil, err
	}
	meta := blob.metadata
	return &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, tenantID, id string) error {
	if _, err := s.lookup(tenantID, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, tenantID, owner, ownerID string) ([]*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Metadata
	for _, b := range s.blobs {
		m := b.metadata
		if m.TenantID == tenantID && m.Owner == owner && m.OwnerID == ownerID {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
