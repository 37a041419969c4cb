package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/imagestore"
	"github.com/msomdec/virtual-tourist/internal/metrics"
	"github.com/msomdec/virtual-tourist/internal/repository/sqlite"
	"github.com/msomdec/virtual-tourist/internal/service"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 40), B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var errBoom = errors.New("boom")

// fakeDownloader counts calls per URL. When gate is set, every download
// blocks until it is closed.
type fakeDownloader struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	gate     chan struct{}
	payload  []byte
}

func newFakeDownloader(payload []byte) *fakeDownloader {
	return &fakeDownloader{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		payload:  payload,
	}
}

func (f *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	fail := f.failures[url] > 0
	if fail {
		f.failures[url]--
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, errBoom
	}
	return f.payload, nil
}

func (f *fakeDownloader) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeDownloader) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type cacheFixture struct {
	db         *sqlite.DB
	store      *imagestore.JPEGStore
	downloader *fakeDownloader
	events     *service.Events
	cache      *service.PhotoCache
	user       *domain.User
	pin        *domain.Pin
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	db := newTestDB(t)
	store := imagestore.NewJPEGStore(db.FileStore())
	dl := newFakeDownloader(testPNG(t))
	events := service.NewEvents()
	cache := service.NewPhotoCache(store, db.Photos(), dl, events, metrics.New())
	t.Cleanup(cache.Wait)

	ctx := context.Background()
	user := &domain.User{Username: "tester", PasswordHash: "x"}
	if err := db.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	pin := &domain.Pin{UserID: user.ID, Latitude: 48.85, Longitude: 2.35}
	if err := db.Pins().Create(ctx, pin); err != nil {
		t.Fatalf("create pin: %v", err)
	}

	return &cacheFixture{db: db, store: store, downloader: dl, events: events, cache: cache, user: user, pin: pin}
}

func (f *cacheFixture) album(t *testing.T, urls ...string) []domain.Photo {
	t.Helper()
	photos, err := f.cache.ReplaceAll(context.Background(), f.pin.ID, urls)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	return photos
}
