package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/service"
)

// imageWaitTimeout bounds how long ?wait=1 holds a request open.
const imageWaitTimeout = 30 * time.Second

// PhotoHandler serves pin albums and the images behind them.
type PhotoHandler struct {
	pins   *service.PinService
	cache  *service.PhotoCache
	events *service.Events
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(pins *service.PinService, cache *service.PhotoCache, events *service.Events) *PhotoHandler {
	return &PhotoHandler{pins: pins, cache: cache, events: events}
}

// HandleAlbum returns the pin's photos, searching for a first album if the
// pin has none.
// GET /api/pins/{id}/photos
func (h *PhotoHandler) HandleAlbum(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	pin, photos, err := h.pins.Album(r.Context(), user.ID, pinID)
	if err != nil {
		writeServiceError(w, err, "load album")
		return
	}

	dtos, err := h.photoDTOs(r.Context(), photos)
	if err != nil {
		writeServiceError(w, err, "photo state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pin":    toPinDTO(pin),
		"photos": dtos,
	})
}

// HandleNewCollection replaces the album with a fresh search.
// POST /api/pins/{id}/photos/new-collection
func (h *PhotoHandler) HandleNewCollection(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	photos, err := h.pins.NewCollection(r.Context(), user.ID, pinID)
	if err != nil {
		writeServiceError(w, err, "new collection")
		return
	}

	dtos, err := h.photoDTOs(r.Context(), photos)
	if err != nil {
		writeServiceError(w, err, "photo state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"photos": dtos})
}

// HandleDeletePhotos removes selected photos from the album.
// POST /api/pins/{id}/photos/delete
// Request: {"imageIds": ["..."]}
func (h *PhotoHandler) HandleDeletePhotos(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	var req struct {
		ImageIDs []string `json:"imageIds"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	n, err := h.pins.DeletePhotos(r.Context(), user.ID, pinID, req.ImageIDs)
	if err != nil {
		writeServiceError(w, err, "delete photos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

// HandleImage serves a photo's JPEG bytes. On a miss the download is started
// and 202 is returned, unless ?wait=1 asks to block until it settles.
// GET /api/photos/{imageID}/image
func (h *PhotoHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	imageID := r.PathValue("imageID")

	photo, err := h.pins.Photo(r.Context(), user.ID, imageID)
	if err != nil {
		writeServiceError(w, err, "get photo")
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), imageWaitTimeout)
		defer cancel()

		data, err := h.cache.Fetch(ctx, *photo)
		switch {
		case err == nil:
			writeImage(w, data)
		case errors.Is(err, service.ErrImageEvicted):
			writeError(w, http.StatusNotFound, "Not found.")
		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusAccepted, map[string]string{"state": service.StateDownloading.String()})
		case errors.Is(err, context.Canceled):
			// Client went away.
		default:
			writeServiceError(w, err, "fetch image")
		}
		return
	}

	data, cached, err := h.cache.EnsureImage(r.Context(), *photo, nil)
	if err != nil {
		writeServiceError(w, err, "ensure image")
		return
	}
	if !cached {
		writeJSON(w, http.StatusAccepted, map[string]string{"state": service.StateDownloading.String()})
		return
	}
	writeImage(w, data)
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *PhotoHandler) photoDTOs(ctx context.Context, photos []domain.Photo) ([]PhotoDTO, error) {
	dtos := make([]PhotoDTO, 0, len(photos))
	for _, p := range photos {
		state, err := h.cache.State(ctx, p.ImageID)
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, toPhotoDTO(p, state.String(), h.cache.LastError(p.ImageID)))
	}
	return dtos, nil
}
