// Package config loads environment variables and provides a typed Config used across the service.
// The Spotify app registration and the Twitch bot credentials have no defaults; call Validate
// before starting any component that needs them.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBotUsername is the Twitch login the bot announces itself as when TWITCH_BOT_USERNAME is unset.
	DefaultBotUsername = "SongRequestBot"
	// DefaultHTTPAddr is where the auth endpoint listens when HTTP_ADDR is unset.
	DefaultHTTPAddr = ":3000"
	// DefaultOAuthState is the fixed anti-forgery value sent to Spotify when state validation is off.
	DefaultOAuthState = "STATE"
)

type Config struct {
	// Spotify OAuth app registration
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string

	// OAuth state handling
	OAuthState         string
	ValidateOAuthState bool

	// Token refresher
	RefreshInterval time.Duration
	RefreshWindow   time.Duration

	// Twitch bot
	TwitchBotUsername string
	TwitchOAuthToken  string
	TwitchChannel     string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults for optional settings.
// It only fails on values that are present but malformed; missing credentials are reported by Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	// Spotify (legacy names from the original deployment are accepted as fallbacks)
	cfg.SpotifyClientID = envFirst("SPOTIFY_CLIENT_ID", "CLIENT_ID")
	cfg.SpotifyClientSecret = envFirst("SPOTIFY_CLIENT_SECRET", "CLIENT_SECRET")
	cfg.SpotifyRedirectURI = envFirst("SPOTIFY_REDIRECT_URI", "REDIRECT_URI")

	cfg.OAuthState = os.Getenv("SPOTIFY_OAUTH_STATE")
	if cfg.OAuthState == "" {
		cfg.OAuthState = DefaultOAuthState
	}
	switch strings.ToLower(os.Getenv("SPOTIFY_VALIDATE_STATE")) {
	case "1", "true", "yes":
		cfg.ValidateOAuthState = true
	case "", "0", "false", "no":
	default:
		return nil, fmt.Errorf("invalid SPOTIFY_VALIDATE_STATE %q (want 1/0/true/false)", os.Getenv("SPOTIFY_VALIDATE_STATE"))
	}

	var err error
	if cfg.RefreshInterval, err = envDuration("SPOTIFY_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshWindow, err = envDuration("SPOTIFY_REFRESH_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}

	// Twitch
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	if cfg.TwitchBotUsername == "" {
		cfg.TwitchBotUsername = DefaultBotUsername
	}
	cfg.TwitchOAuthToken = envFirst("TWITCH_OAUTH_TOKEN", "PASSWORD")
	cfg.TwitchChannel = strings.TrimPrefix(strings.TrimSpace(os.Getenv("TWITCH_CHANNEL")), "#")

	// HTTP
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}

	return cfg, nil
}

// Validate checks that every required credential is present and names all missing variables at once.
func (c *Config) Validate() error {
	var missing []string
	if c.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.SpotifyRedirectURI == "" {
		missing = append(missing, "SPOTIFY_REDIRECT_URI")
	}
	if c.TwitchOAuthToken == "" {
		missing = append(missing, "TWITCH_OAUTH_TOKEN")
	}
	if c.TwitchChannel == "" {
		missing = append(missing, "TWITCH_CHANNEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
