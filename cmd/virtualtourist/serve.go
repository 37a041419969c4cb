package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msomdec/virtual-tourist/internal/config"
	"github.com/msomdec/virtual-tourist/internal/handler"
	"github.com/msomdec/virtual-tourist/internal/metrics"
	"github.com/msomdec/virtual-tourist/internal/service"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("images-backend", "database", "image store: disk, database or minio")
	cmd.Flags().String("images-dir", "images", "directory for the disk image store")
	cmd.Flags().Int("album-size", service.DefaultAlbumSize, "photos per new album")
	cobra.CheckErr(config.BindFlags(viper.GetViper(), cmd.Flags(), nil))
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openMigrated(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	images, err := openImageStore(ctx, cfg.Images, db)
	if err != nil {
		return err
	}

	m := metrics.New()
	client := newFlickrClient(cfg.Flickr)
	events := service.NewEvents()
	cache := service.NewPhotoCache(images, db.Photos(), client, events, m)
	pins := service.NewPinService(db.Pins(), db.Photos(), cache, client, cfg.Album.Size, m)
	auth := service.NewAuthService(db.Users(), cfg.Auth.JWTSecret, cfg.Auth.BcryptCost)

	limiter := service.NewTokenBucket(cfg.Auth.LoginRate, float64(cfg.Auth.LoginBurst))
	defer limiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:         auth,
		Pins:         pins,
		Cache:        cache,
		Events:       events,
		Metrics:      m,
		LoginLimiter: limiter,
		Ping:         db.Ping,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.LogRequests(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Event streams only end when their client leaves, so Shutdown may time
	// out on them; the downloads below still get to finish.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
		srv.Close()
	}

	slog.Info("waiting for downloads to settle")
	cache.Wait()
	slog.Info("server stopped")
	return nil
}
