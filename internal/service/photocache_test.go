package service_test

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/service"
)

func TestPhotoCache_MissDownloadsAndStores(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/1")[0]
	ctx := context.Background()

	results := make(chan service.ImageResult, 1)
	data, cached, err := f.cache.EnsureImage(ctx, photo, func(r service.ImageResult) { results <- r })
	if err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if cached || data != nil {
		t.Fatal("expected a miss on first request")
	}

	r := <-results
	if r.Err != nil {
		t.Fatalf("download failed: %v", r.Err)
	}
	if r.ImageID != photo.ImageID {
		t.Fatalf("expected image id %s, got %s", photo.ImageID, r.ImageID)
	}
	if _, err := jpeg.Decode(bytes.NewReader(r.Data)); err != nil {
		t.Fatalf("result is not the stored JPEG: %v", err)
	}

	f.cache.Wait()
	state, err := f.cache.State(ctx, photo.ImageID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != service.StateCached {
		t.Fatalf("expected cached, got %s", state)
	}
}

func TestPhotoCache_HitSkipsNetworkAndCallback(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/1")[0]
	ctx := context.Background()

	if err := f.store.Write(ctx, photo.ImageID, testPNG(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	called := false
	data, cached, err := f.cache.EnsureImage(ctx, photo, func(service.ImageResult) { called = true })
	if err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if !cached || len(data) == 0 {
		t.Fatal("expected a cache hit with data")
	}
	f.cache.Wait()
	if called {
		t.Fatal("callback must not run on a cache hit")
	}
	if f.downloader.totalCalls() != 0 {
		t.Fatalf("expected no downloads, got %d", f.downloader.totalCalls())
	}
}

func TestPhotoCache_ConcurrentRequestsShareOneDownload(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/shared")[0]
	f.downloader.gate = make(chan struct{})
	ctx := context.Background()

	const callers = 10
	var delivered atomic.Int32
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.cache.EnsureImage(ctx, photo, func(r service.ImageResult) {
				if r.Err == nil {
					delivered.Add(1)
				}
			}); err != nil {
				t.Errorf("EnsureImage: %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := f.cache.State(ctx, photo.ImageID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != service.StateDownloading {
		t.Fatalf("expected downloading while gated, got %s", state)
	}

	close(f.downloader.gate)
	f.cache.Wait()

	if n := f.downloader.callsFor(photo.SourceURL); n != 1 {
		t.Fatalf("expected exactly one download, got %d", n)
	}
	if n := delivered.Load(); n != callers {
		t.Fatalf("expected %d callbacks, got %d", callers, n)
	}
}

func TestPhotoCache_SameURLDistinctPhotosDownloadSeparately(t *testing.T) {
	f := newCacheFixture(t)
	photos := f.album(t, "https://img/dup", "https://img/dup")
	ctx := context.Background()

	if photos[0].ImageID == photos[1].ImageID {
		t.Fatal("photos with the same URL must get distinct image ids")
	}
	for _, p := range photos {
		if _, err := f.cache.Fetch(ctx, p); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if n := f.downloader.callsFor("https://img/dup"); n != 2 {
		t.Fatalf("expected two downloads, got %d", n)
	}
}

func TestPhotoCache_FailureThenRetry(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/flaky")[0]
	f.downloader.failures[photo.SourceURL] = 1
	ctx := context.Background()

	if _, err := f.cache.Fetch(ctx, photo); !errors.Is(err, errBoom) {
		t.Fatalf("expected download error, got %v", err)
	}

	state, err := f.cache.State(ctx, photo.ImageID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != service.StateFailed {
		t.Fatalf("expected failed, got %s", state)
	}
	if !errors.Is(f.cache.LastError(photo.ImageID), errBoom) {
		t.Fatalf("expected last error to be recorded, got %v", f.cache.LastError(photo.ImageID))
	}
	if _, err := f.store.Read(ctx, photo.ImageID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failed download must not store anything, got %v", err)
	}

	if _, err := f.cache.Fetch(ctx, photo); err != nil {
		t.Fatalf("retry Fetch: %v", err)
	}
	state, _ = f.cache.State(ctx, photo.ImageID)
	if state != service.StateCached {
		t.Fatalf("expected cached after retry, got %s", state)
	}
	if n := f.downloader.callsFor(photo.SourceURL); n != 2 {
		t.Fatalf("expected two download attempts, got %d", n)
	}
}

func TestPhotoCache_FailureDoesNotAffectSiblings(t *testing.T) {
	f := newCacheFixture(t)
	photos := f.album(t, "https://img/a", "https://img/b")
	f.downloader.failures["https://img/a"] = 1
	ctx := context.Background()

	if _, err := f.cache.Fetch(ctx, photos[0]); err == nil {
		t.Fatal("expected first photo to fail")
	}
	if _, err := f.cache.Fetch(ctx, photos[1]); err != nil {
		t.Fatalf("sibling Fetch: %v", err)
	}
}

func TestPhotoCache_CallerCancellationDoesNotStopDownload(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/slow")[0]
	f.downloader.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan service.ImageResult, 1)
	if _, _, err := f.cache.EnsureImage(ctx, photo, func(r service.ImageResult) { results <- r }); err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	cancel()
	close(f.downloader.gate)

	if r := <-results; r.Err != nil {
		t.Fatalf("download should survive caller cancellation, got %v", r.Err)
	}
}

func TestPhotoCache_FetchHonoursWaiterContext(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/slow")[0]
	f.downloader.gate = make(chan struct{})
	defer close(f.downloader.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.cache.Fetch(ctx, photo); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPhotoCache_EvictDuringDownloadDiscardsBytes(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/evicted")[0]
	f.downloader.gate = make(chan struct{})
	ctx := context.Background()

	results := make(chan service.ImageResult, 1)
	if _, _, err := f.cache.EnsureImage(ctx, photo, func(r service.ImageResult) { results <- r }); err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if err := f.cache.Evict(ctx, photo.ImageID); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	close(f.downloader.gate)

	if r := <-results; !errors.Is(r.Err, service.ErrImageEvicted) {
		t.Fatalf("expected ErrImageEvicted, got %v", r.Err)
	}
	f.cache.Wait()

	if _, err := f.store.Read(ctx, photo.ImageID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("evicted image must not be stored, got %v", err)
	}
	state, _ := f.cache.State(ctx, photo.ImageID)
	if state != service.StateAbsent {
		t.Fatalf("expected absent, got %s", state)
	}
}

func TestPhotoCache_RejectsPhotoWithoutIdentifiers(t *testing.T) {
	f := newCacheFixture(t)
	_, _, err := f.cache.EnsureImage(context.Background(), domain.Photo{SourceURL: "https://x"}, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPhotoCache_ReplaceAllEvictsOldImages(t *testing.T) {
	f := newCacheFixture(t)
	old := f.album(t, "https://img/old1", "https://img/old2")
	ctx := context.Background()

	for _, p := range old {
		if _, err := f.cache.Fetch(ctx, p); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}

	fresh, err := f.cache.ReplaceAll(ctx, f.pin.ID, []string{"https://img/new3", "https://img/new1", "https://img/new2"})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if len(fresh) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(fresh))
	}
	if fresh[0].SourceURL != "https://img/new1" || fresh[2].SourceURL != "https://img/new3" {
		t.Fatalf("expected album ordered by source url, got %+v", fresh)
	}

	for _, p := range old {
		if _, err := f.store.Read(ctx, p.ImageID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("old image %s should be gone, got %v", p.ImageID, err)
		}
		if _, err := f.db.Photos().GetByImageID(ctx, p.ImageID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("old photo %s should be gone, got %v", p.ImageID, err)
		}
	}
}

func TestPhotoCache_DeleteSelected(t *testing.T) {
	f := newCacheFixture(t)
	photos := f.album(t, "https://img/a", "https://img/b", "https://img/c")
	ctx := context.Background()

	for _, p := range photos {
		if _, err := f.cache.Fetch(ctx, p); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}

	// A second pin whose image must survive even if its id is passed in.
	otherPin := &domain.Pin{UserID: f.user.ID, Latitude: 1, Longitude: 1}
	if err := f.db.Pins().Create(ctx, otherPin); err != nil {
		t.Fatalf("create pin: %v", err)
	}
	other, err := f.cache.ReplaceAll(ctx, otherPin.ID, []string{"https://img/z"})
	if err != nil {
		t.Fatalf("ReplaceAll other: %v", err)
	}
	if _, err := f.cache.Fetch(ctx, other[0]); err != nil {
		t.Fatalf("Fetch other: %v", err)
	}

	n, err := f.cache.DeleteSelected(ctx, f.pin.ID, []string{photos[0].ImageID, photos[2].ImageID, other[0].ImageID})
	if err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	remaining, err := f.db.Photos().ListByPin(ctx, f.pin.ID)
	if err != nil {
		t.Fatalf("ListByPin: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ImageID != photos[1].ImageID {
		t.Fatalf("expected only b left, got %+v", remaining)
	}
	if _, err := f.store.Read(ctx, photos[0].ImageID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted image should be gone, got %v", err)
	}
	if _, err := f.store.Read(ctx, other[0].ImageID); err != nil {
		t.Fatalf("other pin's image must survive: %v", err)
	}
}

func TestPhotoCache_PublishesStateEvents(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/evented")[0]

	events, unsubscribe := f.events.Subscribe(f.pin.ID)
	defer unsubscribe()

	if _, err := f.cache.Fetch(context.Background(), photo); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	f.cache.Wait()

	var states []service.PhotoState
	for len(states) < 2 {
		select {
		case ev := <-events:
			if ev.ImageID != photo.ImageID {
				t.Fatalf("unexpected image id %s", ev.ImageID)
			}
			states = append(states, ev.State)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", states)
		}
	}
	if states[0] != service.StateDownloading || states[1] != service.StateCached {
		t.Fatalf("expected downloading then cached, got %v", states)
	}
}

func TestPhotoCache_StalePhotoIsNotDownloaded(t *testing.T) {
	f := newCacheFixture(t)
	stale := f.album(t, "https://img/gone")[0]
	ctx := context.Background()

	if _, err := f.cache.DeleteSelected(ctx, f.pin.ID, []string{stale.ImageID}); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}

	if _, err := f.cache.Fetch(ctx, stale); !errors.Is(err, service.ErrImageEvicted) {
		t.Fatalf("expected ErrImageEvicted, got %v", err)
	}
	f.cache.Wait()

	if n := f.downloader.callsFor(stale.SourceURL); n != 0 {
		t.Fatalf("expected no download for a deleted photo, got %d", n)
	}
	if _, err := f.store.Read(ctx, stale.ImageID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted photo must leave no image, got %v", err)
	}
}

func TestPhotoCache_RowDeletedDuringDownloadDiscardsBytes(t *testing.T) {
	f := newCacheFixture(t)
	photo := f.album(t, "https://img/racing")[0]
	f.downloader.gate = make(chan struct{})
	ctx := context.Background()

	results := make(chan service.ImageResult, 1)
	if _, _, err := f.cache.EnsureImage(ctx, photo, func(r service.ImageResult) { results <- r }); err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}

	// Remove the row behind the coordinator's back, so no tombstone is set.
	if _, err := f.db.Photos().DeleteByImageIDs(ctx, f.pin.ID, []string{photo.ImageID}); err != nil {
		t.Fatalf("DeleteByImageIDs: %v", err)
	}
	close(f.downloader.gate)

	if r := <-results; !errors.Is(r.Err, service.ErrImageEvicted) {
		t.Fatalf("expected ErrImageEvicted, got %v", r.Err)
	}
	f.cache.Wait()

	if _, err := f.store.Read(ctx, photo.ImageID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unreferenced image must not be stored, got %v", err)
	}
	if err := f.cache.LastError(photo.ImageID); err != nil {
		t.Fatalf("eviction is not a failure, got %v", err)
	}
}
