package imagestore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/msomdec/virtual-tourist/internal/domain"
)

// JPEGQuality is the encoder quality used for every stored image.
const JPEGQuality = 100

// JPEGStore implements domain.ImageStore on top of a domain.FileStore. Every
// image is decoded and stored as a maximum-quality JPEG.
type JPEGStore struct {
	files domain.FileStore
}

// NewJPEGStore creates a JPEGStore writing to files.
func NewJPEGStore(files domain.FileStore) *JPEGStore {
	return &JPEGStore{files: files}
}

func (s *JPEGStore) Read(ctx context.Context, imageID string) ([]byte, error) {
	if imageID == "" {
		return nil, fmt.Errorf("%w: image id is required", domain.ErrInvalidInput)
	}
	data, err := s.files.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Exists reports whether an image is stored under imageID without loading it.
func (s *JPEGStore) Exists(ctx context.Context, imageID string) (bool, error) {
	if imageID == "" {
		return false, nil
	}
	ok, err := s.files.Exists(ctx, imageID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return ok, nil
}

// Write re-encodes data as JPEG and stores it under imageID. Empty data is
// rejected; use Delete to remove an image.
func (s *JPEGStore) Write(ctx context.Context, imageID string, data []byte) error {
	if imageID == "" {
		return fmt.Errorf("%w: image id is required", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: image data is empty", domain.ErrInvalidInput)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", domain.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("%w: encode jpeg: %v", domain.ErrStorage, err)
	}

	if err := s.files.Save(ctx, imageID, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *JPEGStore) Delete(ctx context.Context, imageID string) error {
	if imageID == "" {
		return nil
	}
	if err := s.files.Delete(ctx, imageID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}
