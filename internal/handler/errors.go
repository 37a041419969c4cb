package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/virtual-tourist/internal/domain"
	"github.com/msomdec/virtual-tourist/internal/flickr"
)

var upstreamErrors = []error{
	flickr.ErrTransport,
	flickr.ErrHTTPStatus,
	flickr.ErrEmptyBody,
	flickr.ErrBodyTooLarge,
	flickr.ErrMalformedJSON,
	flickr.ErrAPI,
	flickr.ErrMissingPhotosField,
	flickr.ErrMissingPhotoListField,
}

func isUpstreamError(err error) bool {
	for _, target := range upstreamErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeServiceError maps a service error onto an HTTP response. op names the
// failed operation in logs.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case isUpstreamError(err):
		slog.Warn(op, "error", err)
		writeError(w, http.StatusBadGateway, "The photo service is unavailable. Please try again.")
	default:
		slog.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}
