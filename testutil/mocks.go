// Package testutil holds fakes shared by package tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Paths served by the fake; they mirror the real Spotify hosts once the host part is rewritten.
const (
	PathToken  = "/api/token"
	PathSearch = "/v1/search"
	PathQueue  = "/v1/me/player/queue"
	PathNext   = "/v1/me/player/next"
)

// MockSpotifyServer creates a test server that mocks the Spotify accounts service and Web API.
// Requests are recorded so tests can assert how many calls were made and with what parameters.
type MockSpotifyServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []*http.Request
	forms    []url.Values
}

// NewMockSpotifyServer creates a new mock Spotify server.
func NewMockSpotifyServer(t *testing.T) *MockSpotifyServer {
	t.Helper()
	m := &MockSpotifyServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		m.mu.Lock()
		m.requests = append(m.requests, r)
		m.forms = append(m.forms, r.Form)
		h, ok := m.Handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle installs a handler for path.
func (m *MockSpotifyServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = h
}

// HTTPClient returns a client that sends every request, whatever its host, to the mock.
func (m *MockSpotifyServer) HTTPClient() *http.Client {
	target, _ := url.Parse(m.URL)
	return &http.Client{Transport: &rewriteTransport{target: target, base: http.DefaultTransport}}
}

// Calls returns how many requests hit path.
func (m *MockSpotifyServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

// LastForm returns the parsed query/form values of the most recent request to path.
func (m *MockSpotifyServer) LastForm(path string) url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].URL.Path == path {
			return m.forms[i]
		}
	}
	return nil
}

// MockTokenResponse answers the token endpoint (code and refresh grants).
func (m *MockSpotifyServer) MockTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handle(PathToken, func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
			"scope":        "user-modify-playback-state",
		}
		if refreshToken != "" {
			response["refresh_token"] = refreshToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}

// MockSearchResponse answers /v1/search with the given track objects (id, uri, name, artists).
func (m *MockSpotifyServer) MockSearchResponse(tracks []map[string]interface{}) {
	if tracks == nil {
		tracks = []map[string]interface{}{}
	}
	m.Handle(PathSearch, func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"tracks": map[string]interface{}{
				"href":  r.URL.String(),
				"items": tracks,
				"limit": 1,
				"total": len(tracks),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}

// MockNoContent answers path with 204, the player endpoints' success status.
func (m *MockSpotifyServer) MockNoContent(path string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// MockError answers path with a Spotify-style error object.
func (m *MockSpotifyServer) MockError(path string, status int, message string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"error": map[string]interface{}{"status": status, "message": message},
		})
	})
}

// Track builds a search result item in the Web API's JSON shape.
func Track(id, name string, artists ...string) map[string]interface{} {
	as := make([]map[string]string, 0, len(artists))
	for _, a := range artists {
		as = append(as, map[string]string{"name": a})
	}
	return map[string]interface{}{
		"id":      id,
		"uri":     "spotify:track:" + id,
		"name":    name,
		"artists": as,
	}
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (rt *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.URL.Scheme = rt.target.Scheme
	r2.URL.Host = rt.target.Host
	r2.Host = rt.target.Host
	return rt.base.RoundTrip(r2)
}
