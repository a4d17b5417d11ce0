package blobstore

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"strings"
)

const (
	MB = 1 << 20

	EventAttachmentMaxSize = 10 * MB
	AgreementMaxSize       = 20 * MB
)

// DefaultContentTypes is the upload allow-list shared by all attachment kinds.
var DefaultContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

// Policy is checked before a backend sees any bytes.
type Policy struct {
	MaxSize      int64
	ContentTypes []string
}

var (
	EventAttachmentPolicy = Policy{MaxSize: EventAttachmentMaxSize, ContentTypes: DefaultContentTypes}
	AgreementPolicy       = Policy{MaxSize: AgreementMaxSize, ContentTypes: DefaultContentTypes}
)

// Check validates a declared upload.
func (p Policy) Check(fileName, contentType string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return ErrMissingFileName
	}
	if size > p.MaxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, fileName, size, p.MaxSize)
	}
	if !p.allows(contentType) {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	return nil
}

func (p Policy) allows(contentType string) bool {
	mt := NormalizeContentType(contentType)
	for _, ct := range p.ContentTypes {
		if ct == mt {
			return true
		}
	}
	return false
}

// NormalizeContentType strips parameters and lowercases the media type.
func NormalizeContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// PutFile checks fh against the policy and stores it.
func PutFile(ctx context.Context, store Store, p Policy, meta Metadata, fh *multipart.FileHeader) (*Metadata, error) {
	contentType := fh.Header.Get("Content-Type")
	if err := p.Check(fh.Filename, contentType, fh.Size); err != nil {
		return nil, err
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	meta.FileName = fh.Filename
	meta.ContentType = NormalizeContentType(contentType)
	return store.Put(ctx, meta, src)
}
