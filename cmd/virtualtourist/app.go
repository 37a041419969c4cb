package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/msomdec/virtual-tourist/internal/config"
	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/flickr"
	"github.com/msomdec/virtual-tourist/internal/imagestore"
	"github.com/msomdec/virtual-tourist/internal/repository/postgres"
	"github.com/msomdec/virtual-tourist/internal/repository/sqlite"
)

// database is what both the SQLite and the Postgres backends provide.
type database interface {
	domain.Database
	Users() domain.UserRepository
	Pins() domain.PinRepository
	Photos() domain.PhotoRepository
	FileStore() domain.FileStore
}

func openDatabase(cfg config.Database) (database, error) {
	if cfg.Driver == "postgres" {
		db, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	db, err := sqlite.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openImageStore builds the JPEG image store on the configured byte backend.
func openImageStore(ctx context.Context, cfg config.Images, db database) (*imagestore.JPEGStore, error) {
	var files domain.FileStore
	switch cfg.Backend {
	case "disk":
		d, err := imagestore.NewDisk(cfg.Dir)
		if err != nil {
			return nil, err
		}
		files = d
	case "minio":
		m, err := imagestore.NewMinio(ctx, imagestore.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		files = m
	default:
		files = db.FileStore()
	}
	slog.Info("image store ready", "backend", cfg.Backend)
	return imagestore.NewJPEGStore(files), nil
}

func newFlickrClient(cfg config.Flickr) *flickr.Client {
	return flickr.NewClient(cfg.APIKey,
		flickr.WithBaseURL(cfg.BaseURL),
		flickr.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		flickr.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)
}

// openMigrated opens the database and brings its schema up to date.
func openMigrated(ctx context.Context, cfg config.Database) (database, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "driver", cfg.Driver)
	return db, nil
}
