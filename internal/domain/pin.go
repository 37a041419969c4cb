package domain

import (
	"context"
	"time"
)

// Pin is a map location a user dropped. Its photos belong to it exclusively.
type Pin struct {
	ID        int64
	UserID    int64
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// PinRepository defines persistence operations for pins.
type PinRepository interface {
	Create(ctx context.Context, pin *Pin) error
	GetByID(ctx context.Context, id int64) (*Pin, error)
	ListByUser(ctx context.Context, userID int64) ([]Pin, error)
	// Delete removes the pin and all of its photos in one transaction.
	Delete(ctx context.Context, id int64) error
}
