package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/virtual-tourist/internal/domain"
)

func TestPhotoRepository_ListOrderedBySourceURL(t *testing.T) {
	db := newTestDB(t)
	pin := createTestPin(t, db, createTestUser(t, db, "u").ID)
	ctx := context.Background()

	if _, err := db.Photos().Replace(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://c", ImageID: "3"},
		{SourceURL: "https://a", ImageID: "1"},
		{SourceURL: "https://b", ImageID: "2"},
	}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	photos, err := db.Photos().ListByPin(ctx, pin.ID)
	if err != nil {
		t.Fatalf("ListByPin: %v", err)
	}
	want := []string{"https://a", "https://b", "https://c"}
	if len(photos) != len(want) {
		t.Fatalf("expected %d photos, got %d", len(want), len(photos))
	}
	for i, p := range photos {
		if p.SourceURL != want[i] {
			t.Fatalf("photo %d: expected %s, got %s", i, want[i], p.SourceURL)
		}
		if p.PinID != pin.ID {
			t.Fatalf("photo %d: expected pin %d, got %d", i, pin.ID, p.PinID)
		}
	}
}

func TestPhotoRepository_ListEmptyPin(t *testing.T) {
	db := newTestDB(t)
	pin := createTestPin(t, db, createTestUser(t, db, "u").ID)

	photos, err := db.Photos().ListByPin(context.Background(), pin.ID)
	if err != nil {
		t.Fatalf("ListByPin: %v", err)
	}
	if photos == nil || len(photos) != 0 {
		t.Fatalf("expected empty album, got %#v", photos)
	}
}

func TestPhotoRepository_SameURLDistinctImageIDs(t *testing.T) {
	db := newTestDB(t)
	pin := createTestPin(t, db, createTestUser(t, db, "u").ID)
	ctx := context.Background()

	photos, err := db.Photos().Replace(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://same", ImageID: "x"},
		{SourceURL: "https://same", ImageID: "y"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected both photos kept, got %d", len(photos))
	}

	_, err = db.Photos().Replace(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://1", ImageID: "dup"},
		{SourceURL: "https://2", ImageID: "dup"},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate image id, got %v", err)
	}

	// The failed replace rolled back; the previous album is intact.
	photos, err = db.Photos().ListByPin(ctx, pin.ID)
	if err != nil {
		t.Fatalf("ListByPin: %v", err)
	}
	if len(photos) != 2 || photos[0].ImageID == "dup" {
		t.Fatalf("expected original album after rollback, got %+v", photos)
	}
}

func TestPhotoRepository_InsertIfEmpty(t *testing.T) {
	db := newTestDB(t)
	pin := createTestPin(t, db, createTestUser(t, db, "u").ID)
	ctx := context.Background()

	album, inserted, err := db.Photos().InsertIfEmpty(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://a", ImageID: "a"},
	})
	if err != nil {
		t.Fatalf("InsertIfEmpty: %v", err)
	}
	if !inserted || len(album) != 1 {
		t.Fatalf("expected first insert to land, inserted=%v album=%d", inserted, len(album))
	}

	album, inserted, err = db.Photos().InsertIfEmpty(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://b", ImageID: "b"},
		{SourceURL: "https://c", ImageID: "c"},
	})
	if err != nil {
		t.Fatalf("InsertIfEmpty second: %v", err)
	}
	if inserted {
		t.Fatal("expected second insert to be skipped")
	}
	if len(album) != 1 || album[0].ImageID != "a" {
		t.Fatalf("expected existing album returned, got %+v", album)
	}

	if _, _, err := db.Photos().InsertIfEmpty(ctx, 9999, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown pin, got %v", err)
	}
}

func TestPhotoRepository_DeleteByImageIDs(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "u")
	pin := createTestPin(t, db, user.ID)
	other := createTestPin(t, db, user.ID)
	ctx := context.Background()

	if _, err := db.Photos().Replace(ctx, pin.ID, []domain.Photo{
		{SourceURL: "https://a", ImageID: "a"},
		{SourceURL: "https://b", ImageID: "b"},
		{SourceURL: "https://c", ImageID: "c"},
	}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := db.Photos().Replace(ctx, other.ID, []domain.Photo{
		{SourceURL: "https://d", ImageID: "d"},
	}); err != nil {
		t.Fatalf("Replace other: %v", err)
	}

	n, err := db.Photos().DeleteByImageIDs(ctx, pin.ID, []string{"a", "c", "d", "missing"})
	if err != nil {
		t.Fatalf("DeleteByImageIDs: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}

	photos, err := db.Photos().ListByPin(ctx, pin.ID)
	if err != nil {
		t.Fatalf("ListByPin: %v", err)
	}
	if len(photos) != 1 || photos[0].ImageID != "b" {
		t.Fatalf("expected only b left, got %+v", photos)
	}
	if _, err := db.Photos().GetByImageID(ctx, "d"); err != nil {
		t.Fatalf("photo of other pin must not be deleted: %v", err)
	}

	if n, err := db.Photos().DeleteByImageIDs(ctx, pin.ID, nil); err != nil || n != 0 {
		t.Fatalf("empty delete: n=%d err=%v", n, err)
	}
}
