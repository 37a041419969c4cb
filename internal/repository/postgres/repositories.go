package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	m := userModel{Username: user.Username, PasswordHash: user.PasswordHash, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = m.ID
	user.CreatedAt = m.CreatedAt
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepo) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &domain.User{ID: m.ID, Username: m.Username, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt}, nil
}

type pinRepo struct {
	db *gorm.DB
}

func (r *pinRepo) Create(ctx context.Context, pin *domain.Pin) error {
	m := pinModel{UserID: pin.UserID, Latitude: pin.Latitude, Longitude: pin.Longitude, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert pin: %w", err)
	}
	pin.ID = m.ID
	pin.CreatedAt = m.CreatedAt
	return nil
}

func (r *pinRepo) GetByID(ctx context.Context, id int64) (*domain.Pin, error) {
	var m pinModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get pin: %w", err)
	}
	p := toPin(m)
	return &p, nil
}

func (r *pinRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Pin, error) {
	var ms []pinModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	pins := make([]domain.Pin, 0, len(ms))
	for _, m := range ms {
		pins = append(pins, toPin(m))
	}
	return pins, nil
}

func (r *pinRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pin_id = ?", id).Delete(&photoModel{}).Error; err != nil {
			return fmt.Errorf("delete pin photos: %w", err)
		}
		res := tx.Delete(&pinModel{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete pin: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func toPin(m pinModel) domain.Pin {
	return domain.Pin{ID: m.ID, UserID: m.UserID, Latitude: m.Latitude, Longitude: m.Longitude, CreatedAt: m.CreatedAt}
}

type photoRepo struct {
	db *gorm.DB
}

func (r *photoRepo) ListByPin(ctx context.Context, pinID int64) ([]domain.Photo, error) {
	return listPhotos(r.db.WithContext(ctx), pinID)
}

func listPhotos(db *gorm.DB, pinID int64) ([]domain.Photo, error) {
	var ms []photoModel
	if err := db.Where("pin_id = ?", pinID).Order("source_url, id").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	photos := make([]domain.Photo, 0, len(ms))
	for _, m := range ms {
		photos = append(photos, toPhoto(m))
	}
	return photos, nil
}

func (r *photoRepo) GetByImageID(ctx context.Context, imageID string) (*domain.Photo, error) {
	var m photoModel
	if err := r.db.WithContext(ctx).First(&m, "image_id = ?", imageID).Error; err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	p := toPhoto(m)
	return &p, nil
}

func (r *photoRepo) InsertIfEmpty(ctx context.Context, pinID int64, photos []domain.Photo) ([]domain.Photo, bool, error) {
	var album []domain.Photo
	var inserted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the pin row so concurrent first visits serialize.
		var pin pinModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pin, "id = ?", pinID).Error; err != nil {
			if notFound(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get pin: %w", err)
		}

		var count int64
		if err := tx.Model(&photoModel{}).Where("pin_id = ?", pinID).Count(&count).Error; err != nil {
			return fmt.Errorf("count photos: %w", err)
		}
		if count == 0 {
			if err := insertPhotos(tx, pinID, photos); err != nil {
				return err
			}
			inserted = true
		}

		var err error
		album, err = listPhotos(tx, pinID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return album, inserted, nil
}

func (r *photoRepo) Replace(ctx context.Context, pinID int64, photos []domain.Photo) ([]domain.Photo, error) {
	var album []domain.Photo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pin pinModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pin, "id = ?", pinID).Error; err != nil {
			if notFound(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get pin: %w", err)
		}
		if err := tx.Where("pin_id = ?", pinID).Delete(&photoModel{}).Error; err != nil {
			return fmt.Errorf("delete photos: %w", err)
		}
		if err := insertPhotos(tx, pinID, photos); err != nil {
			return err
		}

		var err error
		album, err = listPhotos(tx, pinID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

func (r *photoRepo) DeleteByImageIDs(ctx context.Context, pinID int64, imageIDs []string) (int, error) {
	if len(imageIDs) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("pin_id = ? AND image_id IN ?", pinID, imageIDs).Delete(&photoModel{})
		if res.Error != nil {
			return fmt.Errorf("delete photos: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func insertPhotos(tx *gorm.DB, pinID int64, photos []domain.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ms := make([]photoModel, 0, len(photos))
	for _, p := range photos {
		if p.SourceURL == "" || p.ImageID == "" {
			return fmt.Errorf("%w: photo needs a source url and image id", domain.ErrInvalidInput)
		}
		ms = append(ms, photoModel{PinID: pinID, SourceURL: p.SourceURL, ImageID: p.ImageID, CreatedAt: now})
	}
	if err := tx.Create(&ms).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: duplicate image id", domain.ErrInvalidInput)
		}
		return fmt.Errorf("insert photos: %w", err)
	}
	return nil
}

func toPhoto(m photoModel) domain.Photo {
	return domain.Photo{ID: m.ID, PinID: m.PinID, SourceURL: m.SourceURL, ImageID: m.ImageID, CreatedAt: m.CreatedAt}
}

type fileStore struct {
	db *gorm.DB
}

func (s *fileStore) Save(ctx context.Context, key string, data []byte) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&fileBlobModel{StorageKey: key, Data: data}).Error
	if err != nil {
		return fmt.Errorf("save file blob: %w", err)
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	var m fileBlobModel
	if err := s.db.WithContext(ctx).First(&m, "storage_key = ?", key).Error; err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get file blob: %w", err)
	}
	return m.Data, nil
}

func (s *fileStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&fileBlobModel{}).Where("storage_key = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check file blob: %w", err)
	}
	return n > 0, nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&fileBlobModel{}, "storage_key = ?", key).Error; err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	return nil
}
