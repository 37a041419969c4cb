package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userModel struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type pinModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index;not null"`
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

func (pinModel) TableName() string { return "pins" }

type photoModel struct {
	ID        int64  `gorm:"primaryKey"`
	PinID     int64  `gorm:"index:idx_photos_pin_source,priority:1;not null"`
	SourceURL string `gorm:"index:idx_photos_pin_source,priority:2;not null"`
	ImageID   string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (photoModel) TableName() string { return "photos" }

type fileBlobModel struct {
	StorageKey string `gorm:"primaryKey"`
	Data       []byte `gorm:"not null"`
}

func (fileBlobModel) TableName() string { return "file_blobs" }

// DB is a Postgres-backed alternative to the SQLite database, built on GORM.
type DB struct {
	gorm *gorm.DB
}

// Open connects to Postgres using the given DSN.
func Open(dsn string) (*DB, error) {
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &DB{gorm: g}, nil
}

// Migrate creates or updates the schema.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.gorm.WithContext(ctx).AutoMigrate(&userModel{}, &pinModel{}, &photoModel{}, &fileBlobModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *DB) Users() domain.UserRepository   { return &userRepo{db: d.gorm} }
func (d *DB) Pins() domain.PinRepository     { return &pinRepo{db: d.gorm} }
func (d *DB) Photos() domain.PhotoRepository { return &photoRepo{db: d.gorm} }
func (d *DB) FileStore() domain.FileStore    { return &fileStore{db: d.gorm} }

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
