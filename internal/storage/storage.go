// Package storage keeps user avatar images in an object store, behind a
// backend-agnostic interface with MinIO and GCS implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lucas6028/silver-server/config"
)

// ErrUnsupportedImage is returned for avatar uploads with a content type
// outside the allowed set.
var ErrUnsupportedImage = errors.New("storage: unsupported image type")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// avatarExtensions maps accepted upload content types to stored file
// extensions.
var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// Avatars stores profile pictures keyed by user id. One object per user;
// a new upload replaces the previous one.
type Avatars struct {
	backend ObjectStorage
}

// NewAvatars wraps a backend for avatar use.
func NewAvatars(backend ObjectStorage) *Avatars {
	return &Avatars{backend: backend}
}

// NewBackendFromConfig constructs the configured object storage backend.
func NewBackendFromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "minio":
		return NewMinioClient(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", cfg.Provider)
	}
}

// EnsureBucket ensures the avatar bucket exists.
func (a *Avatars) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// Put stores an avatar image for uid and returns the object key.
func (a *Avatars) Put(ctx context.Context, uid string, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedImage
	}
	key := avatarKey(uid, ext)
	if err := a.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for a stored avatar object.
func (a *Avatars) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return a.backend.Get(ctx, key)
}

// Remove deletes a stored avatar object.
func (a *Avatars) Remove(ctx context.Context, key string) error {
	return a.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (a *Avatars) Bucket() string {
	return a.backend.Bucket()
}

func avatarKey(uid, ext string) string {
	return fmt.Sprintf("avatars/%s.%s", uid, ext)
}
