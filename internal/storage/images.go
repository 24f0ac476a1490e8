package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"soil-backend/internal/core"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrInvalidReference = errors.New("invalid image reference")
)

const imagePrefix = "images/"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore saves finalized images and resolves references to them. References
// have the form <scheme>://<bucket>/<key>.
type ImageStore struct {
	provider Provider
	scheme   string
	bucket   string
}

var _ core.ImageLoader = (*ImageStore)(nil)

func NewImageStore(provider Provider, scheme, bucket string) *ImageStore {
	return &ImageStore{provider: provider, scheme: scheme, bucket: bucket}
}

func (s *ImageStore) Init(ctx context.Context) error {
	return s.provider.CreateBucket(ctx, s.bucket)
}

func (s *ImageStore) Save(ctx context.Context, data []byte) (core.ImageReference, error) {
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	key := imagePrefix + uuid.New().String() + ext
	if err := s.provider.PutObject(ctx, s.bucket, key, bytes.NewReader(data)); err != nil {
		slog.Error("error saving image", "bucket", s.bucket, "key", key, "error", err)
		return "", fmt.Errorf("error saving image: %w", err)
	}

	return s.reference(key), nil
}

func (s *ImageStore) Load(ctx context.Context, ref core.ImageReference) ([]byte, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, err
	}
	return s.provider.GetObject(ctx, s.bucket, key)
}

func (s *ImageStore) Delete(ctx context.Context, ref core.ImageReference) error {
	key, err := s.key(ref)
	if err != nil {
		return err
	}
	return s.provider.DeleteObject(ctx, s.bucket, key)
}

func (s *ImageStore) Exists(ctx context.Context, ref core.ImageReference) (bool, error) {
	key, err := s.key(ref)
	if err != nil {
		return false, err
	}
	objects, err := s.provider.ListObjects(ctx, s.bucket, key)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Name == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *ImageStore) reference(key string) core.ImageReference {
	return core.ImageReference(fmt.Sprintf("%s://%s/%s", s.scheme, s.bucket, key))
}

func (s *ImageStore) key(ref core.ImageReference) (string, error) {
	u, err := url.Parse(ref.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if u.Scheme != s.scheme || u.Host != s.bucket {
		return "", fmt.Errorf("%w: %s is not in %s://%s", ErrInvalidReference, ref, s.scheme, s.bucket)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(key, imagePrefix) {
		return "", fmt.Errorf("%w: %s", ErrInvalidReference, ref)
	}
	return key, nil
}
