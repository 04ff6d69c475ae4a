package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chatdigest/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func bodyHeader(m model.Message) string {
	kind := string(m.Priority)
	if m.IsMention {
		kind += ", mention"
	}
	if m.IsThreadReply {
		kind += ", thread reply"
	}
	return headerStyle.Render(fmt.Sprintf("From: %s\nChannel: %s\nDate: %s\nPriority: %s",
		m.Username, m.ChannelName, m.CreatedAt.Local().Format("Jan 2, 2006 15:04"), kind))
}

// renderBody renders message text as markdown, falling back to the raw
// text when it cannot be rendered.
func renderBody(text string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func bodyFooter() string {
	return footerStyle.Render("r: reply  esc: back  q: quit")
}

func replyFooter() string {
	return footerStyle.Render("enter: send  esc: cancel")
}
