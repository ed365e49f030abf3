package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mili288/Spotify-Twitch-Song-Request/chat"
	"github.com/mili288/Spotify-Twitch-Song-Request/commands"
	"github.com/mili288/Spotify-Twitch-Song-Request/config"
	"github.com/mili288/Spotify-Twitch-Song-Request/spotifyapi"
	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
	"github.com/mili288/Spotify-Twitch-Song-Request/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		SpotifyClientID:     "test-client-id",
		SpotifyClientSecret: "test-secret",
		SpotifyRedirectURI:  "http://localhost:3000/callback",
		OAuthState:          config.DefaultOAuthState,
		HTTPAddr:            ":0",
	}
}

func newTestSession(t *testing.T, m *testutil.MockSpotifyServer) *spotifyapi.Session {
	t.Helper()
	s := spotifyapi.NewSession(testConfig())
	s.HTTPClient = m.HTTPClient()
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLoginReturnsAuthorizeURL(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	h := NewMux(testConfig(), newTestSession(t, m))

	rr := get(t, h, "/login")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "" {
		t.Errorf("login must not redirect, Location=%q", loc)
	}
	u, err := url.Parse(rr.Body.String())
	if err != nil {
		t.Fatalf("body is not a URL: %v", err)
	}
	q := u.Query()
	for k, want := range map[string]string{
		"client_id":     "test-client-id",
		"response_type": "code",
		"redirect_uri":  "http://localhost:3000/callback",
		"scope":         "user-modify-playback-state",
		"state":         "STATE",
		"show_dialog":   "true",
	} {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if m.Calls(testutil.PathToken) != 0 {
		t.Error("login must not contact the token endpoint")
	}
}

func TestCallbackMissingCode(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockTokenResponse("access-1", "refresh-1", 3600)
	s := newTestSession(t, m)
	h := NewMux(testConfig(), s)

	for _, target := range []string{"/callback", "/callback?state=STATE", "/callback?error=access_denied&state=STATE"} {
		rr := get(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rr.Code)
		}
		if rr.Body.String() != MsgAuthFailed {
			t.Errorf("%s: body = %q", target, rr.Body.String())
		}
	}
	if n := m.Calls(testutil.PathToken); n != 0 {
		t.Errorf("token endpoint called %d times, want 0", n)
	}
	if s.Authenticated() {
		t.Error("session authenticated without a code")
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.Handle(testutil.PathToken, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid authorization code"}`))
	})
	s := newTestSession(t, m)
	h := NewMux(testConfig(), s)

	rr := get(t, h, "/callback?code=stale&state=STATE")
	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rr.Code)
	}
	if rr.Body.String() != MsgAuthFailed {
		t.Errorf("body = %q", rr.Body.String())
	}
	if s.Authenticated() {
		t.Error("session authenticated after a failed exchange")
	}
}

type sink struct {
	mu   sync.Mutex
	said []string
}

func (s *sink) Say(channel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
}

// After a successful callback, chat commands reach the Web API with the stored credential.
func TestCallbackEnablesCommands(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockTokenResponse("access-1", "refresh-1", 3600)
	m.MockSearchResponse([]map[string]interface{}{testutil.Track("4uLU6hMCjMI75M1A2tKUQC", "Never Gonna Give You Up", "Rick Astley")})
	m.MockNoContent(testutil.PathQueue)

	s := newTestSession(t, m)
	c := spotifyapi.NewClient(s)
	c.HTTPClient = m.HTTPClient()
	out := &sink{}
	d := commands.NewDispatcher(c, out)

	// no credential yet
	d.Handle(context.Background(), chat.Message{Channel: "mili28", Text: "?song never gonna give you up"})
	d.Wait()
	if m.Calls(testutil.PathSearch) != 0 {
		t.Fatal("search issued before authentication")
	}

	h := NewMux(testConfig(), s)
	rr := get(t, h, "/callback?code=validcode123&state=STATE")
	if rr.Code != http.StatusOK || rr.Body.String() != MsgAuthSucceeded {
		t.Fatalf("callback = %d %q", rr.Code, rr.Body.String())
	}
	if got := m.LastForm(testutil.PathToken).Get("code"); got != "validcode123" {
		t.Errorf("exchanged code = %q", got)
	}
	if !s.Authenticated() {
		t.Fatal("session not authenticated after callback")
	}

	d.Handle(context.Background(), chat.Message{Channel: "mili28", Text: "?song never gonna give you up"})
	d.Wait()
	if got := m.LastForm(testutil.PathQueue).Get("uri"); got != "spotify:track:4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("queued uri = %q", got)
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.said) != 2 || out.said[0] != commands.ReplyError || out.said[1] != commands.ReplyQueued {
		t.Errorf("replies = %v", out.said)
	}
}

func TestCallbackStateValidation(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockTokenResponse("access-1", "refresh-1", 3600)
	cfg := testConfig()
	cfg.ValidateOAuthState = true
	s := newTestSession(t, m)
	h := NewMux(cfg, s)

	// unknown state is refused before any exchange
	rr := get(t, h, "/callback?code=validcode123&state=STATE")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if m.Calls(testutil.PathToken) != 0 {
		t.Fatal("exchange attempted with unknown state")
	}

	login := get(t, h, "/login")
	u, err := url.Parse(login.Body.String())
	if err != nil {
		t.Fatalf("parse login url: %v", err)
	}
	st := u.Query().Get("state")
	if st == "" || st == config.DefaultOAuthState {
		t.Fatalf("expected random state, got %q", st)
	}

	rr = get(t, h, "/callback?code=validcode123&state="+url.QueryEscape(st))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}

	// states are single use
	rr = get(t, h, "/callback?code=validcode123&state="+url.QueryEscape(st))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("replayed state: expected 400, got %d", rr.Code)
	}
	if n := m.Calls(testutil.PathToken); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestHealthzOK(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	h := NewMux(testConfig(), newTestSession(t, m))

	rr := get(t, h, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation header")
	}
}

func TestReadyzTracksAuthentication(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockTokenResponse("access-1", "refresh-1", 3600)
	s := newTestSession(t, m)
	h := NewMux(testConfig(), s)

	rr := get(t, h, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["failed_check"] != "spotify_session" {
		t.Errorf("failed_check = %q", body["failed_check"])
	}

	if _, err := s.Exchange(context.Background(), "validcode123"); err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	rr = get(t, h, "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCorrelationHeaderReused(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	h := NewMux(testConfig(), newTestSession(t, m))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q, want abc-123", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	telemetry.Init()
	m := testutil.NewMockSpotifyServer(t)
	h := NewMux(testConfig(), newTestSession(t, m))

	get(t, h, "/callback")
	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `songbot_auth_callbacks_total{outcome="missing_code"}`) {
		t.Error("auth callback counter not exported")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	h := NewMux(testConfig(), newTestSession(t, m))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// :0 picks a free port
	done := make(chan error, 1)
	go func() { done <- Start(ctx, testConfig(), newTestSession(t, m)) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
