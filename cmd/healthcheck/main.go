// Command healthcheck probes the bot's /healthz endpoint and exits non-zero
// when it is unreachable. Intended as a container HEALTHCHECK.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mili288/Spotify-Twitch-Song-Request/config"
)

func main() {
	if err := probe(context.Background(), healthURL(os.Getenv("HTTP_ADDR"))); err != nil {
		log.Printf("healthcheck failed: %v", err)
		os.Exit(1)
	}
}

// healthURL maps a listen address like ":3000" or "0.0.0.0:3000" to a loopback URL.
func healthURL(addr string) string {
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		port = addr
	}
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + port + "/healthz"
}

func probe(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unexpected status " + http.StatusText(e.code) }
