package handler

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"
)

// HandleEvents streams photo state changes for a pin as Datastar signal
// patches. The first patch carries the state of every photo in the album.
// GET /api/pins/{id}/photos/events
func (h *PhotoHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	if _, err := h.pins.Get(r.Context(), user.ID, pinID); err != nil {
		writeServiceError(w, err, "get pin")
		return
	}

	// Subscribe before the snapshot so no change falls between the two.
	events, unsubscribe := h.events.Subscribe(pinID)
	defer unsubscribe()

	_, photos, err := h.pins.Album(r.Context(), user.ID, pinID)
	if err != nil {
		writeServiceError(w, err, "load album")
		return
	}
	snapshot := make(map[string]photoSignal, len(photos))
	for _, p := range photos {
		state, err := h.cache.State(r.Context(), p.ImageID)
		if err != nil {
			writeServiceError(w, err, "photo state")
			return
		}
		sig := photoSignal{State: state.String()}
		if lastErr := h.cache.LastError(p.ImageID); lastErr != nil {
			sig.Error = lastErr.Error()
		}
		snapshot[p.ImageID] = sig
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.MarshalAndPatchSignals(map[string]any{"photos": snapshot}); err != nil {
		slog.Debug("send photo snapshot", "pin_id", pinID, "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			patch := map[string]any{
				"photos": map[string]photoSignal{
					ev.ImageID: {State: ev.State.String(), Error: ev.Error},
				},
			}
			if err := sse.MarshalAndPatchSignals(patch); err != nil {
				slog.Debug("send photo event", "pin_id", pinID, "error", err)
				return
			}
		}
	}
}
