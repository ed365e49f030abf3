// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mili288/Spotify-Twitch-Song-Request/config"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
	// How long a state issued by /login stays redeemable
	oauthStateTTL = 10 * time.Minute
)

// Authenticator is the Spotify session as seen by the auth endpoint.
type Authenticator interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Authenticated() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg     *config.Config
	session Authenticator

	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, session Authenticator) *Handlers {
	return &Handlers{
		cfg:        cfg,
		session:    session,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Still over the limit after cleanup: drop the state, the callback will fail.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState reports whether state was issued and unexpired, and removes it (single use).
func (h *Handlers) consumeOAuthState(state string) bool {
	if state == "" {
		return false
	}
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
