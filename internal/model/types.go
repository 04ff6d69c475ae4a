package model

import (
	"time"

	"chatdigest/internal/util"
)

// ChannelType is the kind of conversation a channel represents. It never
// changes for the lifetime of a channel.
type ChannelType string

const (
	ChannelBroadcast   ChannelType = "CHANNEL"
	ChannelDirect      ChannelType = "DM"
	ChannelGroupDirect ChannelType = "GROUP_DM"
)

// ParseChannelType maps a wire value onto a ChannelType. Unknown or empty
// values are treated as broadcast channels.
func ParseChannelType(s string) ChannelType {
	switch ChannelType(s) {
	case ChannelDirect:
		return ChannelDirect
	case ChannelGroupDirect:
		return ChannelGroupDirect
	default:
		return ChannelBroadcast
	}
}

// IsDirect reports whether the channel is a one-to-one or group direct message.
func (t ChannelType) IsDirect() bool {
	return t == ChannelDirect || t == ChannelGroupDirect
}

// Priority is the urgency tier of a message. The zero value means the
// message has not been classified yet.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every tier from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// Rank orders priorities: critical is 0, low is 3. Unclassified sorts last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Glyph is the display marker used when rendering a priority.
func (p Priority) Glyph() string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityHigh:
		return "🟠"
	case PriorityMedium:
		return "🟡"
	case PriorityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// Message is one chat message (or thread reply) surfaced in a digest.
type Message struct {
	ID            string
	Text          string
	UserID        string
	Username      string
	CreatedAt     time.Time
	ChannelID     string
	ChannelName   string
	ChannelType   ChannelType
	ReplyCount    int
	IsMention     bool
	IsThreadReply bool
	Priority      Priority
}

// ChannelSummary groups the qualifying messages of one selected channel.
// Counters come from the channel listing and are zero when the API does not
// report them.
type ChannelSummary struct {
	ID             string
	Name           string
	Type           ChannelType
	LatestActivity time.Time
	NumUnread      int
	MentionCount   int
	HasUnread      bool
	Messages       []Message // insertion order
}

// InboxDigest is the result of one digest run.
type InboxDigest struct {
	UserID    string
	Username  string
	FetchedAt time.Time
	Channels  []ChannelSummary
	Messages  []Message // ordered by (priority rank, created at)
	Summary   string
}

// ByPriority buckets the ordered messages by tier, keeping their order.
func (d *InboxDigest) ByPriority() map[Priority][]Message {
	out := make(map[Priority][]Message, 4)
	for _, p := range Priorities() {
		out[p] = nil
	}
	for _, m := range d.Messages {
		out[m.Priority] = append(out[m.Priority], m)
	}
	return out
}

func (d *InboxDigest) TotalUnread() int {
	n := 0
	for _, ch := range d.Channels {
		n += ch.NumUnread
	}
	return n
}

func (d *InboxDigest) TotalMentions() int {
	n := 0
	for _, ch := range d.Channels {
		n += ch.MentionCount
	}
	return n
}

// maxViewText bounds message text in the serialized view.
const maxViewText = 500

// DigestView is the JSON shape handed to callers of a digest run.
type DigestView struct {
	UserID        string        `json:"user_id"`
	Username      string        `json:"username"`
	FetchedAt     string        `json:"fetched_at"`
	TotalUnread   int           `json:"total_unread"`
	TotalMentions int           `json:"total_mentions"`
	Channels      []ChannelView `json:"channels"`
	Messages      []MessageView `json:"messages"`
	Summary       string        `json:"summary,omitempty"`
}

type ChannelView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	NumUnread    int    `json:"num_unread"`
	MentionCount int    `json:"mention_count"`
}

type MessageView struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Username      string `json:"username"`
	ChannelName   string `json:"channel_name"`
	ChannelType   string `json:"channel_type"`
	Priority      string `json:"priority"`
	IsMention     bool   `json:"is_mention"`
	IsThreadReply bool   `json:"is_thread_reply"`
	CreatedAt     string `json:"created_at"`
}

// View converts the digest into its serializable form.
func (d *InboxDigest) View() DigestView {
	v := DigestView{
		UserID:        d.UserID,
		Username:      d.Username,
		FetchedAt:     d.FetchedAt.Format(time.RFC3339),
		TotalUnread:   d.TotalUnread(),
		TotalMentions: d.TotalMentions(),
		Channels:      make([]ChannelView, 0, len(d.Channels)),
		Messages:      make([]MessageView, 0, len(d.Messages)),
		Summary:       d.Summary,
	}
	for _, ch := range d.Channels {
		v.Channels = append(v.Channels, ChannelView{
			ID:           ch.ID,
			Name:         ch.Name,
			Type:         string(ch.Type),
			NumUnread:    ch.NumUnread,
			MentionCount: ch.MentionCount,
		})
	}
	for _, m := range d.Messages {
		v.Messages = append(v.Messages, MessageView{
			ID:            m.ID,
			Text:          util.Truncate(m.Text, maxViewText),
			Username:      m.Username,
			ChannelName:   m.ChannelName,
			ChannelType:   string(m.ChannelType),
			Priority:      string(m.Priority),
			IsMention:     m.IsMention,
			IsThreadReply: m.IsThreadReply,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		})
	}
	return v
}
