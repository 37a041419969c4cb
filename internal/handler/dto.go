package handler

import (
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// PinDTO is the JSON representation of a pin.
type PinDTO struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CreatedAt string  `json:"createdAt"`
}

func toPinDTO(p *domain.Pin) PinDTO {
	return PinDTO{
		ID:        p.ID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toPinDTOs(pins []domain.Pin) []PinDTO {
	dtos := make([]PinDTO, len(pins))
	for i := range pins {
		dtos[i] = toPinDTO(&pins[i])
	}
	return dtos
}

// PhotoDTO is the JSON representation of a photo and its image state.
type PhotoDTO struct {
	ImageID   string `json:"imageId"`
	SourceURL string `json:"sourceUrl"`
	ImageURL  string `json:"imageUrl"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

func toPhotoDTO(p domain.Photo, state string, lastErr error) PhotoDTO {
	dto := PhotoDTO{
		ImageID:   p.ImageID,
		SourceURL: p.SourceURL,
		ImageURL:  imageURL(p.ImageID),
		State:     state,
	}
	if lastErr != nil {
		dto.Error = lastErr.Error()
	}
	return dto
}

func imageURL(imageID string) string {
	return "/api/photos/" + imageID + "/image"
}

// photoSignal is the per-photo payload pushed over the event stream.
type photoSignal struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
