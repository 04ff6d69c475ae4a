// Package summary turns a digest into prose: a language-model summary when
// a generator is configured, the plain markdown rendering otherwise, and
// suggested replies for the urgent messages.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatdigest/internal/model"
	"chatdigest/internal/retry"
	"chatdigest/internal/util"
)

// DefaultMaxMessages is how many digest messages go into the prompt.
const DefaultMaxMessages = 30

// Summarizer writes the narrative summary of a digest.
type Summarizer struct {
	gen         Generator
	log         *zap.Logger
	maxMessages int
	// Retry governs rate-limited generator calls.
	Retry retry.Config
}

// New returns a summarizer. gen may be nil, in which case Summarize always
// returns the markdown rendering.
func New(gen Generator, maxMessages int, log *zap.Logger) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	s := &Summarizer{gen: gen, log: log, maxMessages: maxMessages}
	s.Retry = retry.Config{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second,
		MaxBackoff:     time.Minute,
		Retryable:      IsRateLimited,
		OnRetry: func(attempt int, sleep time.Duration, err error) {
			s.log.Warn("summary rate limited, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("sleep", sleep),
				zap.Error(err))
		},
	}
	return s
}

// Summarize returns the language-model summary of d, or the markdown
// rendering when no generator is set or generation fails.
func (s *Summarizer) Summarize(ctx context.Context, d *model.InboxDigest) string {
	if s.gen == nil {
		return Markdown(d)
	}
	var out string
	err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		text, err := s.gen.Generate(ctx, s.prompt(d))
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		s.log.Warn("language model summary failed, using markdown", zap.Error(err))
		return Markdown(d)
	}
	return out
}

func (s *Summarizer) prompt(d *model.InboxDigest) string {
	var lines []string
	for _, m := range d.Messages[:min(len(d.Messages), s.maxMessages)] {
		lines = append(lines, fmt.Sprintf("- [%s] #%s (%s) from @%s: %s",
			strings.ToUpper(string(m.Priority)), m.ChannelName, m.ChannelType, m.Username,
			util.Truncate(m.Text, 300)))
	}
	messages := "(no messages)"
	if len(lines) > 0 {
		messages = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are summarizing a chat inbox digest for %s.

Stats: %d messages across %d channels, %d mentions.

Messages (sorted by priority):
%s

Provide:
1. A brief executive summary (2-3 sentences)
2. Action items grouped by priority (critical first)
3. For each thread/conversation: recommend whether the user should RESPOND (with a suggested brief reply) or can IGNORE
4. Suggested next steps

Be concise. Use markdown formatting.`,
		d.Username, len(d.Messages), len(d.Channels), d.TotalMentions(), messages)
}
