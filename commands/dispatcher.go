package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mili288/Spotify-Twitch-Song-Request/chat"
	"github.com/mili288/Spotify-Twitch-Song-Request/spotifyapi"
	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
)

// Chat replies. Failures of every kind collapse to ReplyError.
const (
	ReplyQueued   = "Song requested and added to queue"
	ReplyNotFound = "Song not found"
	ReplySkipped  = "Skipped the current song"
	ReplyError    = "An error occurred"
	ReplyUsage    = "Usage: ?song <song name>"
)

var (
	ErrSearchFailed  = errors.New("search failed")
	ErrEnqueueFailed = errors.New("enqueue failed")
	ErrSkipFailed    = errors.New("skip failed")
)

// Player is the subset of the Spotify client the dispatcher drives.
type Player interface {
	SearchTrack(ctx context.Context, query string) (*spotifyapi.Track, error)
	Enqueue(ctx context.Context, t spotifyapi.Track) error
	SkipToNext(ctx context.Context) error
}

// Replier sends a chat message to a channel.
type Replier interface {
	Say(channel, text string)
}

// Dispatcher maps one inbound chat message to at most one Spotify side effect and one reply.
type Dispatcher struct {
	player Player
	out    Replier

	wg sync.WaitGroup
}

func NewDispatcher(player Player, out Replier) *Dispatcher {
	return &Dispatcher{player: player, out: out}
}

// Handle inspects msg and, if it is a command, starts executing it in the
// background. It never waits for Spotify; overlapping commands complete in
// any order. The return value reports whether msg was a command.
func (d *Dispatcher) Handle(ctx context.Context, msg chat.Message) bool {
	cmd, ok := Parse(msg.Text)
	if !ok {
		return false
	}
	corr := msg.ID
	if corr == "" {
		corr = uuid.New().String()
	}
	// in-flight calls outlive the chat connection; only values are inherited
	runCtx := telemetry.WithCorrelation(context.WithoutCancel(ctx), corr)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(runCtx, msg, cmd)
	}()
	return true
}

// Wait blocks until every command started by Handle has replied.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) run(ctx context.Context, msg chat.Message, cmd Command) {
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("command", cmd.Kind.String()),
		slog.String("user", msg.User),
		slog.String("component", "commands"),
	)
	ctx, span := telemetry.StartSpan(ctx, "commands", "chat "+cmd.Kind.String(), telemetry.CommandAttr(cmd.Kind.String()))
	defer span.End()

	reply, outcome, err := d.Execute(ctx, cmd)
	telemetry.IncCommand(cmd.Kind.String(), outcome)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("command failed", slog.String("query", cmd.Query), slog.Any("err", err))
	} else {
		telemetry.SetSpanSuccess(span)
		log.Info("command handled", slog.String("query", cmd.Query), slog.String("outcome", outcome))
	}
	d.out.Say(msg.Channel, reply)
}

// Execute performs cmd synchronously and returns the chat reply, a metrics outcome label
// and, on failure, an error wrapping ErrSearchFailed, ErrEnqueueFailed or ErrSkipFailed.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (reply, outcome string, err error) {
	switch cmd.Kind {
	case KindRequestSong:
		return d.requestSong(ctx, cmd.Query)
	case KindSkip:
		if err := d.player.SkipToNext(ctx); err != nil {
			return ReplyError, telemetry.OutcomeError, fmt.Errorf("%w: %w", ErrSkipFailed, err)
		}
		return ReplySkipped, telemetry.OutcomeSuccess, nil
	default:
		return ReplyError, telemetry.OutcomeError, fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}

func (d *Dispatcher) requestSong(ctx context.Context, query string) (string, string, error) {
	if query == "" {
		return ReplyUsage, telemetry.OutcomeUsage, nil
	}
	track, err := d.player.SearchTrack(ctx, query)
	if err != nil {
		return ReplyError, telemetry.OutcomeError, fmt.Errorf("%w for %q: %w", ErrSearchFailed, query, err)
	}
	if track == nil {
		return ReplyNotFound, telemetry.OutcomeNotFound, nil
	}
	if err := d.player.Enqueue(ctx, *track); err != nil {
		return ReplyError, telemetry.OutcomeError, fmt.Errorf("%w for %s: %w", ErrEnqueueFailed, track.URI, err)
	}
	return ReplyQueued, telemetry.OutcomeSuccess, nil
}
