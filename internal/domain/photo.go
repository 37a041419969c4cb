package domain

import (
	"context"
	"time"
)

// Photo is one search result attached to a pin. SourceURL never changes once
// set. ImageID is the opaque key of the photo's bytes in the ImageStore and is
// minted per photo, so two photos with the same URL never share an entry.
type Photo struct {
	ID        int64
	PinID     int64
	SourceURL string
	ImageID   string
	CreatedAt time.Time
}

// PhotoRepository defines persistence operations for photos.
// Lists are ordered by SourceURL ascending.
type PhotoRepository interface {
	ListByPin(ctx context.Context, pinID int64) ([]Photo, error)
	GetByImageID(ctx context.Context, imageID string) (*Photo, error)

	// InsertIfEmpty stores photos for the pin only when it has none yet. It
	// reports whether the photos were inserted and returns the pin's album
	// either way.
	InsertIfEmpty(ctx context.Context, pinID int64, photos []Photo) ([]Photo, bool, error)

	// Replace swaps the pin's whole photo set in one transaction.
	Replace(ctx context.Context, pinID int64, photos []Photo) ([]Photo, error)

	// DeleteByImageIDs removes the listed photos of a pin in one transaction
	// and returns how many rows went away.
	DeleteByImageIDs(ctx context.Context, pinID int64, imageIDs []string) (int, error)
}
