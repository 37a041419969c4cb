package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/msomdec/virtual-tourist/internal/geo"
)

// MaxPhotos is the most photos a single search may ask for.
const MaxPhotos = 200

type searchResponse struct {
	Stat    string        `json:"stat"`
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Photos  *searchPhotos `json:"photos"`
}

type searchPhotos struct {
	Photo *[]searchPhoto `json:"photo"`
}

type searchPhoto struct {
	ID   string `json:"id"`
	URLM string `json:"url_m"`
}

// SearchURL builds the photo search request URL for a coordinate.
func (c *Client) SearchURL(lat, lon float64, count int) string {
	q := url.Values{}
	q.Set("method", "flickr.photos.search")
	q.Set("api_key", c.apiKey)
	q.Set("bbox", geo.BoundingBoxFor(lat, lon).String())
	q.Set("safe_search", "1")
	q.Set("extras", "url_m")
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")
	q.Set("per_page", strconv.Itoa(count))
	q.Set("sort", "interestingness-desc")
	return c.baseURL + "?" + q.Encode()
}

// Search returns up to count photo URLs found around the coordinate, sampled
// at random from one page of results. An empty result is not an error.
func (c *Client) Search(ctx context.Context, lat, lon float64, count int) ([]string, error) {
	if count > MaxPhotos {
		return nil, fmt.Errorf("%w: requested %d", ErrTooManyRequested, count)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: requested %d", ErrInvalidCount, count)
	}

	body, err := c.getAPI(ctx, c.SearchURL(lat, lon, count))
	if err != nil {
		return nil, fmt.Errorf("search photos: %w", err)
	}

	photos, err := parseSearchResponse(body)
	if err != nil {
		return nil, fmt.Errorf("search photos: %w", err)
	}
	return c.sample(photos, count), nil
}

func parseSearchResponse(body []byte) ([]searchPhoto, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if resp.Stat != "ok" {
		return nil, &APIError{Stat: resp.Stat, Code: resp.Code, Message: resp.Message}
	}
	if resp.Photos == nil {
		return nil, ErrMissingPhotosField
	}
	if resp.Photos.Photo == nil {
		return nil, ErrMissingPhotoListField
	}
	return *resp.Photos.Photo, nil
}

// sample picks up to n entries without replacement using a partial
// Fisher-Yates shuffle. Picks without a url_m are dropped, not replaced.
func (c *Client) sample(photos []searchPhoto, n int) []string {
	if len(photos) == 0 {
		return []string{}
	}

	idx := make([]int, len(photos))
	for i := range idx {
		idx[i] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	urls := make([]string, 0, min(n, len(photos)))
	for i := 0; i < len(idx) && i < n; i++ {
		j := i + c.rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		if u := photos[idx[i]].URLM; u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
