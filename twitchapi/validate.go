// Package twitchapi checks the bot's Twitch user token against the identity service.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

const validateURL = "https://id.twitch.tv/oauth2/validate"

// Scopes IRC needs to read and post in chat.
var ChatScopes = []string{"chat:read", "chat:edit"}

var (
	ErrInvalidToken  = errors.New("twitch token invalid or expired")
	ErrMissingScopes = errors.New("twitch token lacks chat scopes")
)

// TokenInfo is what the identity service reports about a user token.
type TokenInfo struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// ExpiresAt converts ExpiresIn to an absolute time. Zero means the token does not expire.
func (ti TokenInfo) ExpiresAt(now time.Time) time.Time {
	if ti.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(ti.ExpiresIn) * time.Second)
}

// Validator calls the token validation endpoint.
// NOTE: This is informational; IRC login itself is the authority on whether the token works.
type Validator struct {
	HTTPClient *http.Client
}

// Validate returns the token's owner and scopes. The "oauth:" IRC prefix is accepted.
func (v *Validator) Validate(ctx context.Context, token string) (*TokenInfo, error) {
	token = strings.TrimPrefix(token, "oauth:")
	if token == "" {
		return nil, ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	hc := v.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var ti TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&ti); err != nil {
		return nil, err
	}
	return &ti, nil
}

// CheckChatToken validates token and confirms it carries the chat scopes.
// The returned info is non-nil whenever the service answered.
func (v *Validator) CheckChatToken(ctx context.Context, token string) (*TokenInfo, error) {
	ti, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, s := range ChatScopes {
		if !slices.Contains(ti.Scopes, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return ti, fmt.Errorf("%w: missing %s", ErrMissingScopes, strings.Join(missing, ","))
	}
	return ti, nil
}
