package handler

import (
	"context"
	"net/http"

	"github.com/msomdec/virtual-tourist/internal/metrics"
	"github.com/msomdec/virtual-tourist/internal/service"
)

// Deps carries everything the routes need.
type Deps struct {
	Auth   *service.AuthService
	Pins   *service.PinService
	Cache  *service.PhotoCache
	Events *service.Events

	// Metrics is served on /metrics when set.
	Metrics *metrics.Metrics
	// LoginLimiter throttles login and registration per client IP when set.
	LoginLimiter *service.TokenBucket
	// Ping backs /healthz.
	Ping         func(context.Context) error
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	authHandler := NewAuthHandler(d.Auth, d.CookieSecure)
	pinHandler := NewPinHandler(d.Pins)
	photoHandler := NewPhotoHandler(d.Pins, d.Cache, d.Events)

	requireAuth := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(d.Auth, h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		if d.LoginLimiter == nil {
			return h
		}
		return RateLimit(d.LoginLimiter, h)
	}

	// Health check.
	mux.HandleFunc("GET /healthz", HandleHealthz(d.Ping))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Auth routes.
	mux.Handle("POST /api/auth/register", limited(authHandler.HandleRegister))
	mux.Handle("POST /api/auth/login", limited(authHandler.HandleLogin))
	mux.HandleFunc("POST /api/auth/logout", authHandler.HandleLogout)
	mux.Handle("GET /api/auth/me", requireAuth(authHandler.HandleMe))

	// Pin routes.
	mux.Handle("GET /api/pins", requireAuth(pinHandler.HandleList))
	mux.Handle("POST /api/pins", requireAuth(pinHandler.HandleCreate))
	mux.Handle("GET /api/pins/{id}", requireAuth(pinHandler.HandleGet))
	mux.Handle("DELETE /api/pins/{id}", requireAuth(pinHandler.HandleDelete))

	// Photo routes.
	mux.Handle("GET /api/pins/{id}/photos", requireAuth(photoHandler.HandleAlbum))
	mux.Handle("POST /api/pins/{id}/photos/new-collection", requireAuth(photoHandler.HandleNewCollection))
	mux.Handle("POST /api/pins/{id}/photos/delete", requireAuth(photoHandler.HandleDeletePhotos))
	mux.Handle("GET /api/pins/{id}/photos/events", requireAuth(photoHandler.HandleEvents))
	mux.Handle("GET /api/photos/{imageID}/image", requireAuth(photoHandler.HandleImage))
}
