package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/geo"
	"github.com/msomdec/virtual-tourist/internal/metrics"
)

// DefaultAlbumSize is how many photos a new album is filled with.
const DefaultAlbumSize = 12

// Searcher finds photo URLs around a coordinate.
type Searcher interface {
	Search(ctx context.Context, lat, lon float64, count int) ([]string, error)
}

// PinService manages a user's pins and the photo albums attached to them.
type PinService struct {
	pins      domain.PinRepository
	photos    domain.PhotoRepository
	cache     *PhotoCache
	search    Searcher
	albumSize int
	metrics   *metrics.Metrics
}

// NewPinService creates a new PinService. albumSize <= 0 selects DefaultAlbumSize.
func NewPinService(pins domain.PinRepository, photos domain.PhotoRepository, cache *PhotoCache, search Searcher, albumSize int, m *metrics.Metrics) *PinService {
	if albumSize <= 0 {
		albumSize = DefaultAlbumSize
	}
	if m == nil {
		m = metrics.New()
	}
	return &PinService{
		pins:      pins,
		photos:    photos,
		cache:     cache,
		search:    search,
		albumSize: albumSize,
		metrics:   m,
	}
}

// Create drops a new pin for the user.
func (s *PinService) Create(ctx context.Context, userID int64, lat, lon float64) (*domain.Pin, error) {
	if !geo.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: coordinate out of range", domain.ErrInvalidInput)
	}

	pin := &domain.Pin{UserID: userID, Latitude: lat, Longitude: lon}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, fmt.Errorf("create pin: %w", err)
	}
	return pin, nil
}

// List returns the user's pins.
func (s *PinService) List(ctx context.Context, userID int64) ([]domain.Pin, error) {
	pins, err := s.pins.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	return pins, nil
}

// Get returns a pin the user owns. Pins of other users are reported as not found.
func (s *PinService) Get(ctx context.Context, userID, pinID int64) (*domain.Pin, error) {
	pin, err := s.pins.GetByID(ctx, pinID)
	if err != nil {
		return nil, err
	}
	if pin.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return pin, nil
}

// Delete removes the pin together with its photos and their stored images.
func (s *PinService) Delete(ctx context.Context, userID, pinID int64) error {
	if _, err := s.Get(ctx, userID, pinID); err != nil {
		return err
	}

	photos, err := s.photos.ListByPin(ctx, pinID)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	ids := imageIDs(photos)

	if err := s.cache.Evict(ctx, ids...); err != nil {
		return fmt.Errorf("evict images: %w", err)
	}
	if err := s.pins.Delete(ctx, pinID); err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	s.cache.evictAfterCommit(ctx, ids)
	return nil
}

// Album returns the pin and its photos ordered by source URL. A pin without
// photos gets a fresh search first; a pin that already has photos is never
// searched again here.
func (s *PinService) Album(ctx context.Context, userID, pinID int64) (*domain.Pin, []domain.Photo, error) {
	pin, err := s.Get(ctx, userID, pinID)
	if err != nil {
		return nil, nil, err
	}

	photos, err := s.photos.ListByPin(ctx, pinID)
	if err != nil {
		return nil, nil, fmt.Errorf("list photos: %w", err)
	}
	if len(photos) > 0 {
		return pin, photos, nil
	}

	urls, err := s.searchAround(ctx, pin)
	if err != nil {
		return nil, nil, err
	}
	if len(urls) == 0 {
		return pin, photos, nil
	}

	album, inserted, err := s.cache.Materialize(ctx, pinID, urls)
	if err != nil {
		return nil, nil, err
	}
	if !inserted {
		slog.Debug("album filled concurrently", "pin_id", pinID)
	}
	return pin, album, nil
}

// NewCollection replaces the pin's photos with a fresh search. The old album
// stays untouched if the search fails.
func (s *PinService) NewCollection(ctx context.Context, userID, pinID int64) ([]domain.Photo, error) {
	pin, err := s.Get(ctx, userID, pinID)
	if err != nil {
		return nil, err
	}

	urls, err := s.searchAround(ctx, pin)
	if err != nil {
		return nil, err
	}
	return s.cache.ReplaceAll(ctx, pinID, urls)
}

// DeletePhotos removes the selected photos from the pin's album.
func (s *PinService) DeletePhotos(ctx context.Context, userID, pinID int64, imageIDs []string) (int, error) {
	if _, err := s.Get(ctx, userID, pinID); err != nil {
		return 0, err
	}
	return s.cache.DeleteSelected(ctx, pinID, imageIDs)
}

// Photo returns the photo stored under imageID if its pin belongs to the user.
func (s *PinService) Photo(ctx context.Context, userID int64, imageID string) (*domain.Photo, error) {
	photo, err := s.photos.GetByImageID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, userID, photo.PinID); err != nil {
		return nil, err
	}
	return photo, nil
}

func (s *PinService) searchAround(ctx context.Context, pin *domain.Pin) ([]string, error) {
	urls, err := s.search.Search(ctx, pin.Latitude, pin.Longitude, s.albumSize)
	if err != nil {
		s.metrics.Searches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search photos: %w", err)
	}
	s.metrics.Searches.WithLabelValues("ok").Inc()
	s.metrics.SearchResults.Observe(float64(len(urls)))
	slog.Info("photo search finished", "pin_id", pin.ID, "urls", len(urls))
	return urls, nil
}
