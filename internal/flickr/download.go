package flickr

import (
	"context"
	"fmt"
)

// Download fetches the raw bytes at rawURL. The body is not inspected.
// A failing photo URL never affects other downloads or searches.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := c.roundTrip(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	return data, nil
}
