// Package spotifyapi wraps the Spotify accounts service and Web API for the
// three playback calls the bot needs (search, add to queue, skip) plus the
// authorization-code handshake that makes them possible.
//
// Session is the single authentication context shared by the HTTP auth
// endpoint (writer) and the chat command dispatcher (reader). It holds at
// most one access/refresh token pair, in memory only; a restart forgets it.
package spotifyapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"github.com/mili288/Spotify-Twitch-Song-Request/config"
	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
)

var (
	ErrNotAuthenticated = errors.New("spotify: not authenticated")
	ErrNoRefreshToken   = errors.New("spotify: no refresh token available")
)

// Session holds the active Spotify credential.
//
// No lock guards the token. Writes come only from /callback and the
// refresher, are rare, and replace the pair wholesale through an atomic
// pointer; readers see either the old or the new pair.
type Session struct {
	oauth *oauth2.Config

	// HTTPClient, when set, is used for token endpoint calls.
	HTTPClient *http.Client

	token atomic.Pointer[oauth2.Token]
}

// NewSession builds a session for the configured Spotify app registration.
// The only scope requested is the one needed to modify playback state.
func NewSession(cfg *config.Config) *Session {
	return &Session{
		oauth: &oauth2.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURI,
			Scopes:       []string{spotify.ScopeUserModifyPlaybackState},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotify.AuthURL,
				TokenURL: spotify.TokenURL,
			},
		},
	}
}

// AuthorizeURL returns the URL an operator opens to grant the bot access.
// show_dialog forces Spotify to prompt for account selection and consent.
func (s *Session) AuthorizeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a token pair and makes it the active credential.
func (s *Session) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("spotify: empty authorization code")
	}
	tok, err := s.oauth.Exchange(s.withHTTP(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("spotify code exchange: %w", err)
	}
	s.set(tok)
	return tok, nil
}

// Token implements oauth2.TokenSource over whichever credential was set most recently.
func (s *Session) Token() (*oauth2.Token, error) {
	tok := s.token.Load()
	if tok == nil {
		return nil, ErrNotAuthenticated
	}
	return tok, nil
}

// Authenticated reports whether a credential has been set.
func (s *Session) Authenticated() bool {
	return s.token.Load() != nil
}

// Expiry returns the access token expiry. ok is false when no token is held.
// A zero time means the provider did not report an expiry.
func (s *Session) Expiry() (exp time.Time, ok bool) {
	tok := s.token.Load()
	if tok == nil {
		return time.Time{}, false
	}
	return tok.Expiry, true
}

// Refresh runs a refresh_token grant and replaces the active credential.
// The previous refresh token is kept when Spotify does not issue a new one.
func (s *Session) Refresh(ctx context.Context) error {
	cur := s.token.Load()
	if cur == nil {
		return ErrNotAuthenticated
	}
	if cur.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	stale := &oauth2.Token{RefreshToken: cur.RefreshToken}
	tok, err := s.oauth.TokenSource(s.withHTTP(ctx), stale).Token()
	if err != nil {
		return fmt.Errorf("spotify token refresh: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cur.RefreshToken
	}
	s.set(tok)
	return nil
}

func (s *Session) set(tok *oauth2.Token) {
	s.token.Store(tok)
	telemetry.SetAuthenticated(true)
}

func (s *Session) withHTTP(ctx context.Context) context.Context {
	if s.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
}
