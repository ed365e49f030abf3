// Command songbot is a Twitch chat bot that takes Spotify song requests.
// It:
//   - Loads configuration from the environment (and an optional .env file).
//   - Serves the Spotify OAuth handshake (/login, /callback) plus /healthz,
//     /readyz and /metrics.
//   - Joins the configured Twitch channel and answers ?song and ?skip.
//   - Refreshes the Spotify access token before it expires.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mili288/Spotify-Twitch-Song-Request/chat"
	"github.com/mili288/Spotify-Twitch-Song-Request/commands"
	"github.com/mili288/Spotify-Twitch-Song-Request/config"
	"github.com/mili288/Spotify-Twitch-Song-Request/oauth"
	"github.com/mili288/Spotify-Twitch-Song-Request/server"
	"github.com/mili288/Spotify-Twitch-Song-Request/spotifyapi"
	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
	"github.com/mili288/Spotify-Twitch-Song-Request/twitchapi"
)

const version = "1.0.0"

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		slog.Error("songbot exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "songbot",
		Usage:   "Queue Spotify songs from Twitch chat",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP listen address (overrides HTTP_ADDR)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the chat bot and the auth server (default)",
				Action: serve,
			},
			{
				Name:  "login-url",
				Usage: "Print the Spotify authorization URL for the configured app",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					if cfg.SpotifyClientID == "" || cfg.SpotifyRedirectURI == "" {
						return errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_REDIRECT_URI are required")
					}
					_, err = fmt.Fprintln(stdout, spotifyapi.NewSession(cfg).AuthorizeURL(cfg.OAuthState))
					return err
				},
			},
		},
	}
}

// loadConfig reads the env file (if present) and then the environment.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	// Local dev convenience only; production relies on real env
	if path := cmd.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		return err
	}

	// Metrics / telemetry init
	telemetry.Init()
	telemetry.SetAuthenticated(false)

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("songbot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		return err
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Best-effort: report who the chat token belongs to and whether it can post.
	// IRC login remains the authority; a failure here is only logged.
	ctx2, cancel := context.WithTimeout(ctx, 8*time.Second)
	if ti, err := (&twitchapi.Validator{}).CheckChatToken(ctx2, cfg.TwitchOAuthToken); err != nil {
		slog.Warn("twitch chat token check failed", slog.Any("err", err))
	} else {
		slog.Info("twitch chat token valid", slog.String("login", ti.Login), slog.Time("expires_at", ti.ExpiresAt(time.Now())))
	}
	cancel()

	session := spotifyapi.NewSession(cfg)
	client := spotifyapi.NewClient(session)

	listener, err := chat.NewListener(cfg)
	if err != nil {
		return err
	}
	dispatcher := commands.NewDispatcher(client, listener)
	listener.OnMessage(func(ctx context.Context, msg chat.Message) {
		dispatcher.Handle(ctx, msg)
	})

	oauth.StartRefresher(ctx, session, cfg.RefreshInterval, cfg.RefreshWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx, cfg, session) })
	g.Go(func() error { return listener.Run(gctx) })

	slog.Info("songbot started",
		slog.String("channel", listener.Channel()),
		slog.String("addr", cfg.HTTPAddr),
		slog.String("login", "visit /login to authorize spotify"))

	err = g.Wait()
	dispatcher.Wait()
	if err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
