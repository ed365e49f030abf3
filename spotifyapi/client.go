package spotifyapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
)

const trackURIPrefix = "spotify:track:"

// Track is a single catalog item returned by a search.
type Track struct {
	ID      string
	URI     string // opaque track reference used for queue insertion
	Name    string
	Artists []string
}

func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Name + " – " + strings.Join(t.Artists, ", ")
}

// Client performs Spotify Web API calls authenticated with a Session.
type Client struct {
	Session *Session
	// HTTPClient supplies the base transport; defaults to http.DefaultTransport.
	HTTPClient *http.Client

	once sync.Once
	api  spotify.Client
}

// NewClient returns a client that authenticates every call with s.
func NewClient(s *Session) *Client {
	return &Client{Session: s}
}

func (c *Client) lib() *spotify.Client {
	c.once.Do(func() {
		base := http.DefaultTransport
		if c.HTTPClient != nil && c.HTTPClient.Transport != nil {
			base = c.HTTPClient.Transport
		}
		c.api = spotify.NewClient(&http.Client{Transport: &oauth2.Transport{Source: c.Session, Base: base}})
	})
	return &c.api
}

func (c *Client) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Session == nil || !c.Session.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// SearchTrack returns the first catalog match for query, or nil when there is none.
func (c *Client) SearchTrack(ctx context.Context, query string) (*Track, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	limit := 1
	var (
		res *spotify.SearchResult
		err error
	)
	telemetry.TimeFunc(telemetry.ObserveSpotifyCall("search"), func() {
		res, err = c.lib().SearchOpt(query, spotify.SearchTypeTrack, &spotify.Options{Limit: &limit})
	})
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if res == nil || res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, nil
	}
	ft := res.Tracks.Tracks[0]
	t := &Track{ID: string(ft.ID), URI: string(ft.URI), Name: ft.Name}
	for _, a := range ft.Artists {
		t.Artists = append(t.Artists, a.Name)
	}
	return t, nil
}

// Enqueue adds t to the end of the user's playback queue on the active device.
func (c *Client) Enqueue(ctx context.Context, t Track) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	id := t.ID
	if id == "" {
		id = strings.TrimPrefix(t.URI, trackURIPrefix)
	}
	if id == "" {
		return fmt.Errorf("spotify queue: track has no id or uri")
	}
	var err error
	telemetry.TimeFunc(telemetry.ObserveSpotifyCall("queue"), func() {
		err = c.lib().QueueSong(spotify.ID(id))
	})
	if err != nil {
		return fmt.Errorf("spotify queue %s: %w", id, err)
	}
	return nil
}

// SkipToNext skips the currently playing track.
func (c *Client) SkipToNext(ctx context.Context) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	var err error
	telemetry.TimeFunc(telemetry.ObserveSpotifyCall("next"), func() {
		err = c.lib().Next()
	})
	if err != nil {
		return fmt.Errorf("spotify next: %w", err)
	}
	return nil
}
