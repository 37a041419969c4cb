package domain

import "context"

// ImageStore persists downloaded image bytes keyed by a photo's ImageID.
// Read returns ErrNotFound for unknown IDs; Delete of an unknown ID is not
// an error.
type ImageStore interface {
	Read(ctx context.Context, imageID string) ([]byte, error)
	Exists(ctx context.Context, imageID string) (bool, error)
	Write(ctx context.Context, imageID string, data []byte) error
	Delete(ctx context.Context, imageID string) error
}

// FileStore abstracts raw byte storage under opaque keys. Backends exist for
// SQLite BLOBs, a local directory and S3-compatible object storage.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
