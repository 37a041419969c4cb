package handler

import (
	"net/http"

	"github.com/msomdec/virtual-tourist/internal/service"
)

// PinHandler handles pin CRUD requests.
type PinHandler struct {
	pins *service.PinService
}

// NewPinHandler creates a new PinHandler.
func NewPinHandler(pins *service.PinService) *PinHandler {
	return &PinHandler{pins: pins}
}

// HandleList returns the user's pins.
// GET /api/pins
func (h *PinHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	pins, err := h.pins.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "list pins")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pins": toPinDTOs(pins)})
}

// HandleCreate drops a new pin.
// POST /api/pins
// Request: {"latitude":..., "longitude":...}
func (h *PinHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusUnprocessableEntity, "latitude and longitude are required")
		return
	}

	pin, err := h.pins.Create(r.Context(), user.ID, *req.Latitude, *req.Longitude)
	if err != nil {
		writeServiceError(w, err, "create pin")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pin": toPinDTO(pin)})
}

// HandleGet returns one pin.
// GET /api/pins/{id}
func (h *PinHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	pin, err := h.pins.Get(r.Context(), user.ID, pinID)
	if err != nil {
		writeServiceError(w, err, "get pin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pin": toPinDTO(pin)})
}

// HandleDelete removes a pin with its photos and images.
// DELETE /api/pins/{id}
func (h *PinHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	pinID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pin id.")
		return
	}

	if err := h.pins.Delete(r.Context(), user.ID, pinID); err != nil {
		writeServiceError(w, err, "delete pin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
