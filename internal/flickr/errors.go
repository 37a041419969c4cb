package flickr

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyRequested      = errors.New("flickr: at most 200 photos may be requested")
	ErrInvalidCount          = errors.New("flickr: photo count must be at least 1")
	ErrTransport             = errors.New("flickr: transport error")
	ErrHTTPStatus            = errors.New("flickr: unexpected HTTP status")
	ErrEmptyBody             = errors.New("flickr: empty response body")
	ErrBodyTooLarge          = errors.New("flickr: response body too large")
	ErrMalformedJSON         = errors.New("flickr: malformed JSON")
	ErrAPI                   = errors.New("flickr: API error")
	ErrMissingPhotosField    = errors.New("flickr: response has no photos field")
	ErrMissingPhotoListField = errors.New("flickr: response has no photo list")
)

// StatusError reports a non-2xx response. It matches ErrHTTPStatus.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flickr: unexpected HTTP status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// APIError is returned when the API answers with a stat other than "ok".
// It matches ErrAPI.
type APIError struct {
	Stat    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("flickr: API returned stat %q", e.Stat)
	}
	return fmt.Sprintf("flickr: API returned stat %q: %d %s", e.Stat, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrAPI }
