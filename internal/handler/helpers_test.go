package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/msomdec/virtual-tourist/internal/flickr"
	"github.com/msomdec/virtual-tourist/internal/handler"
	"github.com/msomdec/virtual-tourist/internal/imagestore"
	"github.com/msomdec/virtual-tourist/internal/metrics"
	"github.com/msomdec/virtual-tourist/internal/repository/sqlite"
	"github.com/msomdec/virtual-tourist/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	return service.NewAuthService(newTestDB(t).Users(), testJWTSecret, 4)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 120, B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fakeFlickr serves a search endpoint at /rest and the images it links to
// under /img/.
type fakeFlickr struct {
	srv *httptest.Server

	searches  atomic.Int64
	downloads atomic.Int64

	mu        sync.Mutex
	page      int
	photos    int
	searchErr string
}

func newFakeFlickr(t *testing.T, photos int) *fakeFlickr {
	t.Helper()
	f := &fakeFlickr{photos: photos}
	img := pngBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		f.mu.Lock()
		f.page++
		page, n, failure := f.page, f.photos, f.searchErr
		f.mu.Unlock()

		if failure != "" {
			fmt.Fprint(w, failure)
			return
		}
		var entries []string
		for i := range n {
			entries = append(entries, fmt.Sprintf(`{"id":"%d","url_m":"%s/img/%d-%02d.jpg"}`, i, f.srv.URL, page, i))
		}
		fmt.Fprintf(w, `{"stat":"ok","photos":{"page":1,"photo":[%s]}}`, strings.Join(entries, ","))
	})
	mux.HandleFunc("GET /img/", func(w http.ResponseWriter, r *http.Request) {
		f.downloads.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFlickr) failSearches(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchErr = body
}

type testApp struct {
	srv    *httptest.Server
	flickr *fakeFlickr
	cache  *service.PhotoCache
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := newTestDB(t)
	fl := newFakeFlickr(t, 20)

	m := metrics.New()
	client := flickr.NewClient("test-key", flickr.WithBaseURL(fl.srv.URL+"/rest"), flickr.WithSeed(7))
	events := service.NewEvents()
	cache := service.NewPhotoCache(imagestore.NewJPEGStore(db.FileStore()), db.Photos(), client, events, m)
	pins := service.NewPinService(db.Pins(), db.Photos(), cache, client, 0, m)
	auth := service.NewAuthService(db.Users(), testJWTSecret, 4)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:    auth,
		Pins:    pins,
		Cache:   cache,
		Events:  events,
		Metrics: m,
		Ping:    db.Ping,
	})

	srv := httptest.NewServer(handler.LogRequests(handler.SecurityHeaders(mux)))
	t.Cleanup(srv.Close)
	t.Cleanup(cache.Wait)

	return &testApp{srv: srv, flickr: fl, cache: cache}
}

// newClient returns an HTTP client with its own cookie jar.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

// signIn registers username and logs the client in.
func (a *testApp) signIn(t *testing.T, client *http.Client, username string) {
	t.Helper()
	resp := a.do(t, client, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "password": "password123", "confirmPassword": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = a.do(t, client, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
}

func (a *testApp) do(t *testing.T, client *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// doJSON performs the request, checks the status and decodes the body into dst.
func (a *testApp) doJSON(t *testing.T, client *http.Client, method, path string, body any, wantStatus int, dst any) {
	t.Helper()
	resp := a.do(t, client, method, path, body)
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, data)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

type pinResponse struct {
	Pin handler.PinDTO `json:"pin"`
}

type albumResponse struct {
	Pin    handler.PinDTO     `json:"pin"`
	Photos []handler.PhotoDTO `json:"photos"`
}

func (a *testApp) createPin(t *testing.T, client *http.Client) handler.PinDTO {
	t.Helper()
	var out pinResponse
	a.doJSON(t, client, http.MethodPost, "/api/pins", map[string]float64{"latitude": 48.8584, "longitude": 2.2945}, http.StatusCreated, &out)
	return out.Pin
}
