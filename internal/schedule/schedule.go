// Package schedule delivers digests into a direct message on a cron
// schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"chatdigest/internal/chat"
	"chatdigest/internal/model"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates a 5-field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return sched, nil
}

type DigestSource interface {
	Fetch(ctx context.Context) (*model.InboxDigest, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, d *model.InboxDigest) string
}

type Identity interface {
	User(ctx context.Context) (chat.User, error)
	WorkspaceID(ctx context.Context) (string, error)
}

// Messenger is the write side of the chat API used for delivery.
type Messenger interface {
	WorkspaceMembers(ctx context.Context, ws string) ([]chat.Member, error)
	DirectMessageChannel(ctx context.Context, ws string, userIDs []string) (chat.Channel, error)
	SendMessage(ctx context.Context, ws, channelID, content string) (chat.Message, error)
}

// Delivery fetches a digest and posts its summary into the direct message
// channel with Recipients. No recipients means the requesting user.
type Delivery struct {
	Source     DigestSource
	Summarizer Summarizer
	Identity   Identity
	Messenger  Messenger
	Recipients []string
	Log        *zap.Logger
}

// Deliver runs one delivery. An empty digest is not posted.
func (d *Delivery) Deliver(ctx context.Context) error {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	digest, err := d.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("schedule: fetch digest: %w", err)
	}
	if len(digest.Messages) == 0 {
		log.Info("no pending messages, skipping delivery")
		return nil
	}
	text := d.Summarizer.Summarize(ctx, digest)

	ws, err := d.Identity.WorkspaceID(ctx)
	if err != nil {
		return fmt.Errorf("schedule: resolve workspace: %w", err)
	}
	ids, err := d.recipientIDs(ctx, ws)
	if err != nil {
		return err
	}
	ch, err := d.Messenger.DirectMessageChannel(ctx, ws, ids)
	if err != nil {
		return fmt.Errorf("schedule: open direct message: %w", err)
	}
	if _, err := d.Messenger.SendMessage(ctx, ws, ch.ID, text); err != nil {
		return fmt.Errorf("schedule: send digest: %w", err)
	}
	log.Info("digest delivered",
		zap.String("channel_id", ch.ID),
		zap.Int("messages", len(digest.Messages)))
	return nil
}

func (d *Delivery) recipientIDs(ctx context.Context, ws string) ([]string, error) {
	if len(d.Recipients) == 0 {
		u, err := d.Identity.User(ctx)
		if err != nil {
			return nil, fmt.Errorf("schedule: resolve user: %w", err)
		}
		return []string{u.ID}, nil
	}
	members, err := d.Messenger.WorkspaceMembers(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("schedule: list members: %w", err)
	}
	ids, err := chat.ResolveUserIDs(members, d.Recipients)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return ids, nil
}

// Runner fires a job at every tick of a cron schedule until its context
// ends. A failed job is logged; the schedule keeps going unless the error
// is fatal for the credential.
type Runner struct {
	sched cron.Schedule
	job   func(ctx context.Context) error
	log   *zap.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewRunner(expr string, job func(ctx context.Context) error, log *zap.Logger) (*Runner, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{sched: sched, job: job, log: log, now: time.Now, after: time.After}, nil
}

// Next returns the next fire time after now.
func (r *Runner) Next() time.Time {
	return r.sched.Next(r.now())
}

// Run blocks until ctx is done or a job fails with a configuration error.
func (r *Runner) Run(ctx context.Context) error {
	for {
		next := r.Next()
		r.log.Info("next digest scheduled", zap.Time("at", next))
		select {
		case <-ctx.Done():
			return nil
		case <-r.after(next.Sub(r.now())):
		}
		if err := r.job(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *chat.ConfigurationError
			if errors.As(err, &ce) {
				return err
			}
			r.log.Error("scheduled digest failed", zap.Error(err))
		}
	}
}
