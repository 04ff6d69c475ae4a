// Package digest turns the chat API into a prioritised inbox digest: it
// selects channels, ingests their recent messages, classifies them and
// assembles the result.
package digest

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chatdigest/internal/chat"
	"chatdigest/internal/model"
)

// API is the subset of chat.Client a digest run reads from.
type API interface {
	Channels(ctx context.Context, ws string, q chat.ChannelQuery) iter.Seq2[chat.Channel, error]
	ChannelMessages(ctx context.Context, ws, channelID string, limit int, cursor string) ([]chat.Message, string, error)
	Replies(ctx context.Context, ws, messageID string) ([]chat.Message, error)
	ChannelMembers(ctx context.Context, ws, channelID string) ([]chat.Member, error)
}

// Identity resolves who is asking and in which workspace.
type Identity interface {
	User(ctx context.Context) (chat.User, error)
	WorkspaceID(ctx context.Context) (string, error)
}

// StateStore persists the last-seen instant per channel between runs.
type StateStore interface {
	LastSeen(ctx context.Context) (map[string]time.Time, error)
	SaveLastSeen(ctx context.Context, seen map[string]time.Time) error
}

// Progress reports how far channel ingestion has come.
type Progress struct {
	Done  int
	Total int
	Phase string
}

const (
	DefaultLookback              = 24 * time.Hour
	DefaultMaxMessagesPerChannel = 50
)

type Options struct {
	Lookback              time.Duration
	MaxMessagesPerChannel int
	MaxBroadcastChannels  int
	// Concurrency is how many channels are ingested at once. 1 ingests them
	// one after another in selection order.
	Concurrency    int
	MentionAliases []string
	// UnseenOnly drops messages at or before the channel's stored last-seen
	// instant.
	UnseenOnly bool
	// Progress, when set, may be called from several goroutines.
	Progress func(Progress)
	Now      func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.MaxMessagesPerChannel <= 0 {
		o.MaxMessagesPerChannel = DefaultMaxMessagesPerChannel
	}
	if o.MaxBroadcastChannels <= 0 {
		o.MaxBroadcastChannels = DefaultMaxBroadcastChannels
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Fetcher runs digests against one API client.
type Fetcher struct {
	api   API
	id    Identity
	state StateStore
	log   *zap.Logger
	opts  Options
}

// NewFetcher wires a fetcher. state may be nil, in which case nothing is
// persisted and UnseenOnly has no effect.
func NewFetcher(api API, id Identity, state StateStore, log *zap.Logger, opts Options) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	opts.applyDefaults()
	return &Fetcher{api: api, id: id, state: state, log: log, opts: opts}
}

// Fetch runs one digest. It fails only when the identity cannot be
// resolved, the channel listing fails, the rate limit is exhausted or ctx
// ends; any other channel failure just leaves that channel out.
func (f *Fetcher) Fetch(ctx context.Context) (*model.InboxDigest, error) {
	user, err := f.id.User(ctx)
	if err != nil {
		return nil, fmt.Errorf("digest: resolve user: %w", err)
	}
	ws, err := f.id.WorkspaceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("digest: resolve workspace: %w", err)
	}

	now := f.opts.Now()
	cutoff := now.Add(-f.opts.Lookback)
	seen := f.loadState(ctx)

	f.progress(Progress{Phase: "channels"})
	all, err := f.listChannels(ctx, ws)
	if err != nil {
		return nil, err
	}
	selected := SelectChannels(all, cutoff, f.opts.MaxBroadcastChannels)
	f.log.Info("selected channels",
		zap.Int("listed", len(all)),
		zap.Int("selected", len(selected)),
		zap.Duration("lookback", f.opts.Lookback),
		zap.String("user", user.DisplayName()))

	summaries, err := f.ingestAll(ctx, ws, user, selected, cutoff, seen)
	if err != nil {
		return nil, err
	}

	d := Assemble(user, now, summaries)
	f.saveState(ctx, seen, d)
	f.progress(Progress{Phase: "done", Done: len(selected), Total: len(selected)})
	f.log.Info("digest complete",
		zap.Int("messages", len(d.Messages)),
		zap.Int("channels", len(d.Channels)))
	return d, nil
}

func (f *Fetcher) ingestAll(ctx context.Context, ws string, user chat.User, selected []chat.Channel, cutoff time.Time, seen map[string]time.Time) ([]model.ChannelSummary, error) {
	results := make([]model.ChannelSummary, len(selected))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)
	for i, ch := range selected {
		win := Window{Cutoff: cutoff}
		if f.opts.UnseenOnly {
			win.Seen = seen[ch.ID]
		}
		g.Go(func() error {
			s, err := f.IngestChannel(gctx, ws, user, ch, win)
			f.progress(Progress{Phase: "messages", Done: int(done.Add(1)), Total: len(selected)})
			if err != nil {
				if chat.IsFatal(err) || gctx.Err() != nil {
					return err
				}
				f.log.Warn("skipping channel",
					zap.String("channel_id", ch.ID),
					zap.String("channel", ch.Name),
					zap.Error(err))
				return nil
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return results, nil
}

func (f *Fetcher) loadState(ctx context.Context) map[string]time.Time {
	seen := map[string]time.Time{}
	if f.state == nil {
		return seen
	}
	stored, err := f.state.LastSeen(ctx)
	if err != nil {
		f.log.Warn("failed to load last-seen state", zap.Error(err))
		return seen
	}
	for k, v := range stored {
		seen[k] = v
	}
	return seen
}

func (f *Fetcher) saveState(ctx context.Context, seen map[string]time.Time, d *model.InboxDigest) {
	if f.state == nil {
		return
	}
	for id, t := range LastSeen(d) {
		if t.After(seen[id]) {
			seen[id] = t
		}
	}
	if err := f.state.SaveLastSeen(ctx, seen); err != nil {
		f.log.Warn("failed to save last-seen state", zap.Error(err))
	}
}

func (f *Fetcher) progress(p Progress) {
	if f.opts.Progress != nil {
		f.opts.Progress(p)
	}
}
