package flickr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// DefaultBaseURL is the Flickr REST endpoint.
	DefaultBaseURL = "https://api.flickr.com/services/rest"

	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 20 << 20 // 20MB
)

// Client talks to the Flickr REST API and downloads the photos it returns.
// Search and Download are safe for concurrent use. Only searches go through
// the circuit breaker; photo downloads hit many hosts and fail one by one.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	maxBodyBytes int64

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the search endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRand sets the random source used to sample search results.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rng = r }
}

// WithSeed is shorthand for WithRand with a PCG source seeded from seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBodyBytes = n }
}

// NewClient creates a Client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "flickr",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUpstreamFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// isUpstreamFailure reports errors that say something about the health of
// the remote side: transport failures and 5xx responses.
func isUpstreamFailure(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= http.StatusInternalServerError
}

// getAPI performs a GET against the API endpoint through the circuit breaker.
func (c *Client) getAPI(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, rawURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil, err
	}
	return res.([]byte), nil
}

// roundTrip performs a GET and returns the body. Transport failures, non-2xx
// statuses and empty bodies are errors.
func (c *Client) roundTrip(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}
