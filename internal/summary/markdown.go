package summary

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

const (
	perPriority = 10
	snippetLen  = 120
)

// Markdown renders a digest without a language model: a header with the
// counts, then up to ten entries per priority tier.
func Markdown(d *model.InboxDigest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Inbox Digest for %s\n", d.Username)
	fmt.Fprintf(&b, "**%d messages** across **%d channels** | %d mentions\n\n",
		len(d.Messages), len(d.Channels), d.TotalMentions())

	groups := d.ByPriority()
	for _, p := range model.Priorities() {
		msgs := groups[p]
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s %s (%d)\n", p.Glyph(), strings.ToUpper(string(p)), len(msgs))
		for _, m := range msgs[:min(len(msgs), perPriority)] {
			fmt.Fprintf(&b, "- **%s** @%s: %s _(%s)_\n",
				m.ChannelName, m.Username, util.Snippet(m.Text, snippetLen),
				humanize.RelTime(m.CreatedAt, d.FetchedAt, "ago", "from now"))
		}
		if len(msgs) > perPriority {
			fmt.Fprintf(&b, "  _...and %d more_\n", len(msgs)-perPriority)
		}
		b.WriteString("\n")
	}

	if len(d.Messages) == 0 {
		b.WriteString("_No pending messages, inbox zero!_\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
