package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

const (
	maxDrafts   = 10
	maxAIDrafts = 5
)

// NoDrafts is returned when nothing in the digest needs a reply.
const NoDrafts = "No critical or high priority messages requiring response."

// Drafts lists the critical and high priority messages of d with a
// suggested action each. With a generator, drafted replies for the first
// five are appended; a failed generation just leaves them out.
func (s *Summarizer) Drafts(ctx context.Context, d *model.InboxDigest) string {
	var important []model.Message
	for _, m := range d.Messages {
		if m.Priority == model.PriorityCritical || m.Priority == model.PriorityHigh {
			important = append(important, m)
		}
	}
	if len(important) == 0 {
		return NoDrafts
	}

	var b strings.Builder
	b.WriteString("# Suggested Responses\n\n")
	for _, m := range important[:min(len(important), maxDrafts)] {
		fmt.Fprintf(&b, "## %s %s: @%s\n", m.Priority.Glyph(), m.ChannelName, m.Username)
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(util.Truncate(m.Text, 300), "\n", "\n> "))
		fmt.Fprintf(&b, "**Suggested action:** Reply to @%s in #%s\n\n", m.Username, m.ChannelName)
	}

	if s.gen != nil {
		var prompt strings.Builder
		prompt.WriteString("Given these chat messages that need responses, draft brief suggested replies:\n\n")
		for _, m := range important[:min(len(important), maxAIDrafts)] {
			fmt.Fprintf(&prompt, "- From @%s in #%s: %s\n", m.Username, m.ChannelName, util.Truncate(m.Text, 200))
		}
		prompt.WriteString("\nDraft a concise reply for each.")

		text, err := s.gen.Generate(ctx, prompt.String())
		if err != nil {
			s.log.Warn("drafting replies failed", zap.Error(err))
		} else {
			b.WriteString("---\n## AI-Drafted Replies\n\n")
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
