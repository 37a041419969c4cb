package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/metrics"
)

// PhotoState is where a photo's image is in the download pipeline.
type PhotoState int

const (
	StateAbsent PhotoState = iota
	StateDownloading
	StateCached
	StateFailed
)

func (s PhotoState) String() string {
	switch s {
	case StateDownloading:
		return "downloading"
	case StateCached:
		return "cached"
	case StateFailed:
		return "failed"
	default:
		return "absent"
	}
}

func (s PhotoState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrImageEvicted is reported to waiters whose download finished after the
// image was deleted. The downloaded bytes are discarded.
var ErrImageEvicted = errors.New("image evicted during download")

// Downloader fetches raw bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ImageResult is delivered once a download settles.
type ImageResult struct {
	ImageID string
	Data    []byte
	Err     error
}

type download struct {
	waiters []func(ImageResult)
	evicted bool
}

// PhotoCache makes sure each photo's image is downloaded at most once at a
// time and persisted under the photo's ImageID. Callers that ask for an image
// while its download runs attach to that download instead of starting another.
type PhotoCache struct {
	store      domain.ImageStore
	photos     domain.PhotoRepository
	downloader Downloader
	events     *Events
	metrics    *metrics.Metrics
	newID      func() string

	mu       sync.Mutex
	inflight map[string]*download
	failed   map[string]error
	wg       sync.WaitGroup
}

// NewPhotoCache creates a PhotoCache. events may be nil.
func NewPhotoCache(store domain.ImageStore, photos domain.PhotoRepository, downloader Downloader, events *Events, m *metrics.Metrics) *PhotoCache {
	if m == nil {
		m = metrics.New()
	}
	return &PhotoCache{
		store:      store,
		photos:     photos,
		downloader: downloader,
		events:     events,
		metrics:    m,
		newID:      uuid.NewString,
		inflight:   make(map[string]*download),
		failed:     make(map[string]error),
	}
}

// EnsureImage returns the stored bytes when the image is cached. Otherwise it
// starts a download, or joins the one already running, and returns
// cached=false; onDone is then called exactly once with the outcome. onDone is
// not called on a cache hit.
func (c *PhotoCache) EnsureImage(ctx context.Context, photo domain.Photo, onDone func(ImageResult)) ([]byte, bool, error) {
	if photo.ImageID == "" || photo.SourceURL == "" {
		return nil, false, fmt.Errorf("%w: photo has no image id or source url", domain.ErrInvalidInput)
	}

	data, err := c.store.Read(ctx, photo.ImageID)
	if err == nil {
		c.metrics.CacheHits.Inc()
		return data, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("read image: %w", err)
	}

	c.metrics.CacheMisses.Inc()
	c.start(ctx, photo, onDone)
	return nil, false, nil
}

// Fetch is EnsureImage for callers that want to wait for the bytes.
func (c *PhotoCache) Fetch(ctx context.Context, photo domain.Photo) ([]byte, error) {
	results := make(chan ImageResult, 1)
	data, cached, err := c.EnsureImage(ctx, photo, func(r ImageResult) { results <- r })
	if err != nil {
		return nil, err
	}
	if cached {
		return data, nil
	}

	select {
	case r := <-results:
		return r.Data, r.Err
	case <-ctx.Done():
		// The download keeps running; only this caller stops waiting.
		return nil, ctx.Err()
	}
}

// State reports where the image for imageID currently is.
func (c *PhotoCache) State(ctx context.Context, imageID string) (PhotoState, error) {
	c.mu.Lock()
	_, downloading := c.inflight[imageID]
	_, failed := c.failed[imageID]
	c.mu.Unlock()

	switch {
	case downloading:
		return StateDownloading, nil
	case failed:
		return StateFailed, nil
	}

	stored, err := c.store.Exists(ctx, imageID)
	if err != nil {
		return StateAbsent, fmt.Errorf("check image: %w", err)
	}
	if !stored {
		return StateAbsent, nil
	}
	return StateCached, nil
}

// LastError returns the error of the image's most recent failed download.
func (c *PhotoCache) LastError(imageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[imageID]
}

func (c *PhotoCache) start(ctx context.Context, photo domain.Photo, onDone func(ImageResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.inflight[photo.ImageID]; ok {
		c.metrics.DownloadJoins.Inc()
		if onDone != nil {
			d.waiters = append(d.waiters, onDone)
		}
		return
	}

	d := &download{}
	if onDone != nil {
		d.waiters = append(d.waiters, onDone)
	}
	c.inflight[photo.ImageID] = d
	delete(c.failed, photo.ImageID)

	c.events.Publish(PhotoEvent{PinID: photo.PinID, ImageID: photo.ImageID, State: StateDownloading})

	c.wg.Add(1)
	go c.run(context.WithoutCancel(ctx), photo, d)
}

func (c *PhotoCache) run(ctx context.Context, photo domain.Photo, d *download) {
	defer c.wg.Done()

	c.metrics.DownloadsActive.Inc()
	defer c.metrics.DownloadsActive.Dec()
	started := time.Now()

	data, err := c.downloadAndStore(ctx, photo, d)

	c.mu.Lock()
	delete(c.inflight, photo.ImageID)
	if err != nil && !errors.Is(err, ErrImageEvicted) {
		c.failed[photo.ImageID] = err
	}
	waiters := d.waiters
	c.mu.Unlock()

	ev := PhotoEvent{PinID: photo.PinID, ImageID: photo.ImageID, State: StateCached}
	switch {
	case err == nil:
		c.metrics.Downloads.WithLabelValues("ok").Inc()
		c.metrics.DownloadDuration.Observe(time.Since(started).Seconds())
	case errors.Is(err, ErrImageEvicted):
		c.metrics.Downloads.WithLabelValues("evicted").Inc()
		ev.State = StateAbsent
	default:
		c.metrics.Downloads.WithLabelValues("error").Inc()
		slog.Warn("image download failed", "pin_id", photo.PinID, "image_id", photo.ImageID, "url", photo.SourceURL, "error", err)
		ev.State = StateFailed
		ev.Error = err.Error()
	}
	c.events.Publish(ev)

	res := ImageResult{ImageID: photo.ImageID, Data: data, Err: err}
	for _, w := range waiters {
		w(res)
	}
}

func (c *PhotoCache) downloadAndStore(ctx context.Context, photo domain.Photo, d *download) ([]byte, error) {
	// The caller may hold a photo whose row was deleted after it was looked up.
	if err := c.checkReferenced(ctx, photo); err != nil {
		return nil, err
	}

	// A download that finished between the caller's miss and start may
	// already have stored the image.
	if data, err := c.store.Read(ctx, photo.ImageID); err == nil {
		return data, nil
	}

	raw, err := c.downloader.Download(ctx, photo.SourceURL)
	if err != nil {
		return nil, err
	}
	if c.isEvicted(d) {
		return nil, ErrImageEvicted
	}

	if err := c.store.Write(ctx, photo.ImageID, raw); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	evicted := c.isEvicted(d)
	if !evicted {
		// A row removed without going through Evict leaves no tombstone.
		if err := c.checkReferenced(ctx, photo); errors.Is(err, ErrImageEvicted) {
			evicted = true
		} else if err != nil {
			return nil, err
		}
	}
	if evicted {
		if err := c.store.Delete(ctx, photo.ImageID); err != nil {
			slog.Error("remove image evicted during download", "image_id", photo.ImageID, "error", err)
		}
		return nil, ErrImageEvicted
	}

	data, err := c.store.Read(ctx, photo.ImageID)
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}
	return data, nil
}

// checkReferenced returns ErrImageEvicted when no photo row points at the
// image any more.
func (c *PhotoCache) checkReferenced(ctx context.Context, photo domain.Photo) error {
	if _, err := c.photos.GetByImageID(ctx, photo.ImageID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrImageEvicted
		}
		return fmt.Errorf("look up photo: %w", err)
	}
	return nil
}

func (c *PhotoCache) isEvicted(d *download) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return d.evicted
}

// Evict deletes the images from the store. Downloads still running for any of
// them will discard their bytes instead of storing them.
func (c *PhotoCache) Evict(ctx context.Context, imageIDs ...string) error {
	c.mu.Lock()
	for _, id := range imageIDs {
		if d, ok := c.inflight[id]; ok {
			d.evicted = true
		}
		delete(c.failed, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range imageIDs {
		if err := c.store.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete image %s: %w", id, err))
			continue
		}
		c.metrics.ImagesEvicted.Inc()
	}
	return errors.Join(errs...)
}

// Materialize stores one photo per URL for the pin unless the pin already has
// photos. It reports whether the new photos were stored.
func (c *PhotoCache) Materialize(ctx context.Context, pinID int64, urls []string) ([]domain.Photo, bool, error) {
	album, inserted, err := c.photos.InsertIfEmpty(ctx, pinID, c.newPhotos(pinID, urls))
	if err != nil {
		return nil, false, fmt.Errorf("insert photos: %w", err)
	}
	return album, inserted, nil
}

// ReplaceAll swaps the pin's photos for one new photo per URL, deleting the
// images of the old ones.
func (c *PhotoCache) ReplaceAll(ctx context.Context, pinID int64, urls []string) ([]domain.Photo, error) {
	existing, err := c.photos.ListByPin(ctx, pinID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	oldIDs := imageIDs(existing)

	if err := c.Evict(ctx, oldIDs...); err != nil {
		return nil, fmt.Errorf("evict images: %w", err)
	}

	album, err := c.photos.Replace(ctx, pinID, c.newPhotos(pinID, urls))
	if err != nil {
		return nil, fmt.Errorf("replace photos: %w", err)
	}

	c.evictAfterCommit(ctx, oldIDs)
	return album, nil
}

// DeleteSelected removes the listed photos of a pin and their images. IDs
// that do not belong to the pin are ignored. It returns how many photos were
// removed.
func (c *PhotoCache) DeleteSelected(ctx context.Context, pinID int64, ids []string) (int, error) {
	existing, err := c.photos.ListByPin(ctx, pinID)
	if err != nil {
		return 0, fmt.Errorf("list photos: %w", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var selected []string
	for _, p := range existing {
		if wanted[p.ImageID] {
			selected = append(selected, p.ImageID)
		}
	}
	if len(selected) == 0 {
		return 0, nil
	}

	if err := c.Evict(ctx, selected...); err != nil {
		return 0, fmt.Errorf("evict images: %w", err)
	}

	n, err := c.photos.DeleteByImageIDs(ctx, pinID, selected)
	if err != nil {
		return 0, fmt.Errorf("delete photos: %w", err)
	}

	c.evictAfterCommit(ctx, selected)
	return n, nil
}

// evictAfterCommit catches images a request stored between the first
// eviction and the row deletion. Failures only leave unreferenced bytes.
func (c *PhotoCache) evictAfterCommit(ctx context.Context, ids []string) {
	if err := c.Evict(ctx, ids...); err != nil {
		slog.Warn("evict images after delete", "count", len(ids), "error", err)
	}
}

// Wait blocks until every running download has settled.
func (c *PhotoCache) Wait() {
	c.wg.Wait()
}

func (c *PhotoCache) newPhotos(pinID int64, urls []string) []domain.Photo {
	photos := make([]domain.Photo, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, domain.Photo{PinID: pinID, SourceURL: u, ImageID: c.newID()})
	}
	return photos
}

func imageIDs(photos []domain.Photo) []string {
	ids := make([]string, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ImageID)
	}
	return ids
}
