package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/mili288/Spotify-Twitch-Song-Request/config"
)

// Message is one inbound chat line.
type Message struct {
	ID      string
	Channel string
	User    string
	Text    string
	Time    time.Time
}

// Handler receives chat messages. It is called on the IRC read loop and must not block.
type Handler func(ctx context.Context, msg Message)

// Listener is a Twitch IRC connection bound to one channel.
type Listener struct {
	client   *twitch.Client
	channel  string
	username string

	mu      sync.RWMutex
	handler Handler
}

// NewListener builds a listener from config. It does not connect; call Run.
func NewListener(cfg *config.Config) (*Listener, error) {
	if cfg.TwitchChannel == "" || cfg.TwitchBotUsername == "" || cfg.TwitchOAuthToken == "" {
		return nil, errors.New("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	token := cfg.TwitchOAuthToken
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return &Listener{
		client:   twitch.NewClient(strings.ToLower(cfg.TwitchBotUsername), token),
		channel:  strings.ToLower(cfg.TwitchChannel),
		username: strings.ToLower(cfg.TwitchBotUsername),
	}, nil
}

// Channel returns the joined channel name (lowercase, no leading #).
func (l *Listener) Channel() string { return l.channel }

// OnMessage registers the handler for inbound messages, replacing any previous one.
func (l *Listener) OnMessage(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// Say sends text to channel.
func (l *Listener) Say(channel, text string) {
	l.client.Say(strings.TrimPrefix(channel, "#"), text)
}

// Run joins the channel and blocks reading chat until ctx is cancelled or the connection fails.
func (l *Listener) Run(ctx context.Context) error {
	l.client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("channel", l.channel), slog.String("user", l.username), slog.String("component", "chat"))
	})
	l.client.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		l.dispatch(ctx, toMessage(pm))
	})

	// Handle context cancellation by closing the client
	go func() {
		<-ctx.Done()
		if err := l.client.Disconnect(); err != nil {
			slog.Debug("twitch chat disconnect", slog.Any("err", err), slog.String("component", "chat"))
		}
	}()

	l.client.Join(l.channel)
	err := l.client.Connect()
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	if err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err), slog.String("component", "chat"))
	}
	return err
}

func (l *Listener) dispatch(ctx context.Context, msg Message) {
	// our own replies are never commands
	if strings.EqualFold(msg.User, l.username) {
		return
	}
	l.mu.RLock()
	h := l.handler
	l.mu.RUnlock()
	if h == nil {
		return
	}
	h(ctx, msg)
}

func toMessage(pm twitch.PrivateMessage) Message {
	return Message{
		ID:      pm.ID,
		Channel: pm.Channel,
		User:    pm.User.Name,
		Text:    pm.Message,
		Time:    pm.Time,
	}
}
