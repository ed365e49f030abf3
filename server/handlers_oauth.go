package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
)

// Response bodies for /callback.
const (
	MsgAuthSucceeded = "Authentication successful!"
	MsgAuthFailed    = "Authentication failed!"
)

var (
	ErrMissingAuthCode     = errors.New("no authorization code provided")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrInvalidState        = errors.New("invalid oauth state")
)

// HandleLogin returns the Spotify authorization URL as a plain-text body (no redirect).
//
// By default the configured fixed state is sent and /callback never checks it.
// With SPOTIFY_VALIDATE_STATE enabled a random single-use state is issued instead.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	st := h.cfg.OAuthState
	if h.cfg.ValidateOAuthState {
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			http.Error(w, "state gen error", http.StatusInternalServerError)
			return
		}
		st = hex.EncodeToString(b)
		h.addOAuthState(st, time.Now().Add(oauthStateTTL))
	}
	writeText(w, http.StatusOK, h.session.AuthorizeURL(st))
}

// HandleCallback finishes the authorization-code grant and stores the tokens in the session.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "auth"))
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		// Spotify reports a denied consent as ?error=access_denied
		log.Error("no authorization code provided", slog.Any("err", ErrMissingAuthCode), slog.String("error_param", q.Get("error")))
		telemetry.IncAuthCallback("missing_code")
		writeText(w, http.StatusBadRequest, MsgAuthFailed)
		return
	}

	if h.cfg.ValidateOAuthState && !h.consumeOAuthState(q.Get("state")) {
		log.Error("rejected oauth callback", slog.Any("err", ErrInvalidState))
		telemetry.IncAuthCallback("invalid_state")
		writeText(w, http.StatusBadRequest, MsgAuthFailed)
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "auth", "spotify.exchange")
	defer span.End()
	if _, err := h.session.Exchange(ctx, code); err != nil {
		err = fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
		telemetry.RecordError(span, err)
		log.Error("error authenticating with spotify api", slog.Any("err", err))
		telemetry.IncAuthCallback(telemetry.OutcomeError)
		writeText(w, http.StatusBadGateway, MsgAuthFailed)
		return
	}
	telemetry.SetSpanSuccess(span)
	telemetry.IncAuthCallback(telemetry.OutcomeSuccess)
	log.Info("authenticated with spotify api")
	writeText(w, http.StatusOK, MsgAuthSucceeded)
}
