package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/dustin/go-humanize"

	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

// messageItem wraps a digest message for the list display.
type messageItem struct {
	model.Message
	now time.Time
}

func (m messageItem) FilterValue() string { return m.Username + " " + m.Text }
func (m messageItem) Title() string {
	return fmt.Sprintf("%s %s", m.Priority.Glyph(), util.Snippet(m.Text, 100))
}
func (m messageItem) Description() string {
	where := m.ChannelName
	if m.IsThreadReply {
		where += " (thread)"
	}
	return fmt.Sprintf("%s in %s, %s", m.Username, where, humanize.RelTime(m.CreatedAt, m.now, "ago", "from now"))
}

func messagesFooter() string {
	return footerStyle.Render("enter: view  r: reply  esc: back  q: quit")
}

// messageItems keeps the digest's priority order.
func messageItems(msgs []model.Message, now time.Time) []list.Item {
	items := make([]list.Item, len(msgs))
	for i, m := range msgs {
		items[i] = messageItem{Message: m, now: now}
	}
	return items
}
