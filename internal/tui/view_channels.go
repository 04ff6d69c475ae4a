package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

// allChannelsID marks the synthetic entry listing every message.
const allChannelsID = ""

// channelItem is one channel of the digest, or the "all messages" entry.
type channelItem struct {
	id       string
	name     string
	top      model.Priority
	messages []model.Message // digest order
	unread   int
	mentions int
}

func (c channelItem) FilterValue() string { return c.name }
func (c channelItem) Title() string {
	return fmt.Sprintf("%s %s (%d)", c.top.Glyph(), c.name, len(c.messages))
}
func (c channelItem) Description() string {
	if c.id == allChannelsID {
		return fmt.Sprintf("%d unread, %d mentions", c.unread, c.mentions)
	}
	if len(c.messages) == 0 {
		return ""
	}
	m := c.messages[0]
	return m.Username + ": " + util.Snippet(m.Text, 80)
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func channelsFooter() string {
	return footerStyle.Render("enter: open  R: refresh  q: quit")
}

// channelItems builds the top list: every message first, then one entry per
// channel ordered by its most urgent message. The digest's flat list is
// already in priority order, so a channel's first appearance there fixes
// its position.
func channelItems(d *model.InboxDigest) []list.Item {
	if d == nil {
		return nil
	}
	byChannel := make(map[string]*channelItem)
	var order []string
	for _, m := range d.Messages {
		c, ok := byChannel[m.ChannelID]
		if !ok {
			c = &channelItem{id: m.ChannelID, name: m.ChannelName, top: m.Priority}
			byChannel[m.ChannelID] = c
			order = append(order, m.ChannelID)
		}
		c.messages = append(c.messages, m)
	}
	for _, ch := range d.Channels {
		if c, ok := byChannel[ch.ID]; ok {
			c.unread, c.mentions = ch.NumUnread, ch.MentionCount
		}
	}

	all := channelItem{
		id:       allChannelsID,
		name:     "All messages",
		messages: slices.Clone(d.Messages),
		unread:   d.TotalUnread(),
		mentions: d.TotalMentions(),
		top:      model.PriorityLow,
	}
	if len(d.Messages) > 0 {
		all.top = d.Messages[0].Priority
	}

	items := make([]list.Item, 0, len(order)+1)
	items = append(items, all)
	for _, id := range order {
		items = append(items, *byChannel[id])
	}
	return items
}
