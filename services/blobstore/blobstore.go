package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTooLarge     = errors.New("payload exceeds upload limit")
	ErrSizeMismatch = errors.New("declared size does not match received bytes")
	ErrNotCommitted = errors.New("object not retrievable after upload")
)

// Object is one blob headed for storage. Name is assigned by the
// uploader and never reused.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store is a durable blob backend. Put is create-only: the generated
// names make collisions astronomically unlikely, so backends never need
// a check-then-write.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// ObjectName builds a collision-resistant name from the upload time and
// a random suffix, keeping the original extension so the URL stays
// recognizable to browsers.
func ObjectName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("post_%d_%s%s", time.Now().UnixMilli(), suffix, ext)
}

// Uploader enforces the payload contract in front of whichever backend
// is configured.
type Uploader struct {
	store    Store
	maxBytes int64
}

func NewUploader(store Store, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes}
}

// Upload writes the payload and returns its public URL together with
// the generated object name. Size violations fail before any bytes
// move. After the backend reports success the uploader verifies the
// object is retrievable, so a partial write never yields a URL.
func (u *Uploader) Upload(ctx context.Context, filename, contentType string, declaredSize int64, data []byte) (string, string, error) {
	if u.maxBytes > 0 {
		if declaredSize > u.maxBytes || int64(len(data)) > u.maxBytes {
			return "", "", ErrTooLarge
		}
	}
	if declaredSize >= 0 && declaredSize != int64(len(data)) {
		return "", "", ErrSizeMismatch
	}

	name := ObjectName(filename)
	url, err := u.store.Put(ctx, Object{Name: name, ContentType: contentType, Data: data})
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", name, err)
	}

	ok, err := u.store.Exists(ctx, name)
	if err != nil {
		return "", "", fmt.Errorf("verify %s: %w", name, err)
	}
	if !ok {
		return "", "", ErrNotCommitted
	}
	return url, name, nil
}

// Remove is the best-effort orphan cleanup used when a metadata insert
// fails after a successful upload. Errors are the caller's to log, not
// to surface.
func (u *Uploader) Remove(ctx context.Context, name string) error {
	return u.store.Delete(ctx, name)
}
