package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
)

// photoRepo implements domain.PhotoRepository using SQLite.
type photoRepo struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *photoRepo) ListByPin(ctx context.Context, pinID int64) ([]domain.Photo, error) {
	return listPhotos(ctx, r.db, pinID)
}

func listPhotos(ctx context.Context, q querier, pinID int64) ([]domain.Photo, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, pin_id, source_url, image_id, created_at FROM photos
		 WHERE pin_id = ? ORDER BY source_url, id`, pinID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []domain.Photo{}
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.PinID, &p.SourceURL, &p.ImageID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *photoRepo) GetByImageID(ctx context.Context, imageID string) (*domain.Photo, error) {
	p := &domain.Photo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, pin_id, source_url, image_id, created_at FROM photos WHERE image_id = ?`, imageID,
	).Scan(&p.ID, &p.PinID, &p.SourceURL, &p.ImageID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (r *photoRepo) InsertIfEmpty(ctx context.Context, pinID int64, photos []domain.Photo) ([]domain.Photo, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := pinExists(ctx, tx, pinID); err != nil {
		return nil, false, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos WHERE pin_id = ?", pinID).Scan(&count); err != nil {
		return nil, false, fmt.Errorf("count photos: %w", err)
	}

	inserted := count == 0
	if inserted {
		if err := insertPhotos(ctx, tx, pinID, photos); err != nil {
			return nil, false, err
		}
	}

	album, err := listPhotos(ctx, tx, pinID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return album, inserted, nil
}

func (r *photoRepo) Replace(ctx context.Context, pinID int64, photos []domain.Photo) ([]domain.Photo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := pinExists(ctx, tx, pinID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE pin_id = ?", pinID); err != nil {
		return nil, fmt.Errorf("delete photos: %w", err)
	}
	if err := insertPhotos(ctx, tx, pinID, photos); err != nil {
		return nil, err
	}

	album, err := listPhotos(ctx, tx, pinID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return album, nil
}

func (r *photoRepo) DeleteByImageIDs(ctx context.Context, pinID int64, imageIDs []string) (int, error) {
	if len(imageIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	args := make([]any, 0, len(imageIDs)+1)
	args = append(args, pinID)
	for _, id := range imageIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(imageIDs)), ",")

	result, err := tx.ExecContext(ctx,
		`DELETE FROM photos WHERE pin_id = ? AND image_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete photos: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(rows), nil
}

func pinExists(ctx context.Context, tx *sql.Tx, pinID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM pins WHERE id = ?", pinID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get pin: %w", err)
	}
	return nil
}

func insertPhotos(ctx context.Context, tx *sql.Tx, pinID int64, photos []domain.Photo) error {
	now := time.Now().UTC()
	for _, p := range photos {
		if p.SourceURL == "" || p.ImageID == "" {
			return fmt.Errorf("%w: photo needs a source url and image id", domain.ErrInvalidInput)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photos (pin_id, source_url, image_id, created_at) VALUES (?, ?, ?, ?)`,
			pinID, p.SourceURL, p.ImageID, now,
		); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: duplicate image id %s", domain.ErrInvalidInput, p.ImageID)
			}
			return fmt.Errorf("insert photo: %w", err)
		}
	}
	return nil
}
