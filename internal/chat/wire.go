package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatdigest/internal/model"
)

// This file is the single boundary between the loosely shaped JSON the API
// returns and the records the rest of the program sees. Each endpoint has a
// wire struct with every field it may carry and exactly one adapter.

// User is the authenticated account.
type User struct {
	ID       string
	Username string
	Email    string
}

// DisplayName is the handle used for mention matching and rendering.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Workspace is a team the token can access.
type Workspace struct {
	ID      string
	Name    string
	Members []Member
}

// Member is a user as seen from a channel or workspace roster.
type Member struct {
	ID       string
	Username string
	Email    string
}

// Channel is a conversation container from the channel listing.
type Channel struct {
	ID             string
	Name           string
	Type           model.ChannelType
	LatestActivity time.Time
	NumUnread      int
	MentionCount   int
	HasUnread      bool
	Members        []Member // embedded roster, often absent
}

// Message is one message or thread reply as returned by the API.
type Message struct {
	ID         string
	UserID     string
	Username   string // only when the API embeds the author
	Text       string
	CreatedAt  time.Time
	ReplyCount int
}

// wireString accepts a JSON string, number or null.
type wireString string

func (s *wireString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = wireString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", b)
	}
	*s = wireString(n.String())
	return nil
}

// wireMillis is a unix-millisecond timestamp sent as a number or a numeric
// string. RFC 3339 strings are accepted as well.
type wireMillis struct {
	time.Time
}

func (m *wireMillis) UnmarshalJSON(b []byte) error {
	var s wireString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	raw := strings.TrimSpace(string(s))
	if raw == "" || raw == "0" {
		m.Time = time.Time{}
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		m.Time = time.UnixMilli(int64(f))
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("timestamp: unrecognised value %q", raw)
	}
	m.Time = t
	return nil
}

type wireUser struct {
	ID       wireString `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
}

func (w wireUser) toMember() Member {
	name := w.Username
	if name == "" {
		name = w.Name
	}
	return Member{ID: string(w.ID), Username: name, Email: w.Email}
}

type wireUserEnvelope struct {
	User *wireUser `json:"user"`
	wireUser
}

func (w wireUserEnvelope) toUser() User {
	u := w.wireUser
	if w.User != nil {
		u = *w.User
	}
	m := u.toMember()
	return User{ID: m.ID, Username: m.Username, Email: m.Email}
}

type wireTeamMember struct {
	User wireUser `json:"user"`
}

type wireTeam struct {
	ID      wireString       `json:"id"`
	Name    string           `json:"name"`
	Members []wireTeamMember `json:"members"`
}

func (w wireTeam) toWorkspace() Workspace {
	ws := Workspace{ID: string(w.ID), Name: w.Name}
	for _, m := range w.Members {
		ws.Members = append(ws.Members, m.User.toMember())
	}
	return ws
}

type wireTeams struct {
	Teams []wireTeam `json:"teams"`
}

type wireTeamEnvelope struct {
	Team *wireTeam `json:"team"`
	wireTeam
}

func (w wireTeamEnvelope) toWorkspace() Workspace {
	if w.Team != nil {
		return w.Team.toWorkspace()
	}
	return w.wireTeam.toWorkspace()
}

type wireCounts struct {
	NumUnread    int  `json:"num_unread"`
	MentionCount int  `json:"mention_count"`
	HasUnread    bool `json:"has_unread"`
}

type wireChannel struct {
	ID              wireString  `json:"id"`
	Name            string      `json:"name"`
	Type            string      `json:"type"`
	LatestCommentAt wireMillis  `json:"latest_comment_at"`
	Counts          *wireCounts `json:"counts"`
	Members         []wireUser  `json:"members"`
}

func (w wireChannel) toChannel() Channel {
	ch := Channel{
		ID:             string(w.ID),
		Name:           strings.TrimSpace(w.Name),
		Type:           model.ParseChannelType(w.Type),
		LatestActivity: w.LatestCommentAt.Time,
	}
	if w.Counts != nil {
		ch.NumUnread = w.Counts.NumUnread
		ch.MentionCount = w.Counts.MentionCount
		ch.HasUnread = w.Counts.HasUnread
	}
	for _, m := range w.Members {
		ch.Members = append(ch.Members, m.toMember())
	}
	return ch
}

type wireChannelEnvelope struct {
	Data *wireChannel `json:"data"`
	wireChannel
}

func (w wireChannelEnvelope) toChannel() Channel {
	if w.Data != nil {
		return w.Data.toChannel()
	}
	return w.wireChannel.toChannel()
}

// wireMessage carries the current field names plus the older aliases some
// API versions still send (text, created_at, date_created, reply_count).
type wireMessage struct {
	ID           wireString `json:"id"`
	UserID       wireString `json:"user_id"`
	User         *wireUser  `json:"user"`
	Content      string     `json:"content"`
	Text         string     `json:"text"`
	Date         wireMillis `json:"date"`
	CreatedAt    wireMillis `json:"created_at"`
	DateCreated  wireMillis `json:"date_created"`
	RepliesCount int        `json:"replies_count"`
	ReplyCount   int        `json:"reply_count"`
}

// toMessage maps a wire message. A message without any timestamp is stamped
// with fetchedAt.
func (w wireMessage) toMessage(fetchedAt time.Time) Message {
	m := Message{
		ID:         string(w.ID),
		UserID:     string(w.UserID),
		Text:       firstNonEmpty(w.Content, w.Text),
		ReplyCount: w.RepliesCount,
	}
	if m.ReplyCount == 0 {
		m.ReplyCount = w.ReplyCount
	}
	if w.User != nil {
		member := w.User.toMember()
		if m.UserID == "" {
			m.UserID = member.ID
		}
		m.Username = member.Username
	}
	switch {
	case !w.Date.IsZero():
		m.CreatedAt = w.Date.Time
	case !w.CreatedAt.IsZero():
		m.CreatedAt = w.CreatedAt.Time
	case !w.DateCreated.IsZero():
		m.CreatedAt = w.DateCreated.Time
	default:
		m.CreatedAt = fetchedAt
	}
	return m
}

type wireMessageEnvelope struct {
	Data *wireMessage `json:"data"`
	wireMessage
}

func (w wireMessageEnvelope) toMessage(fetchedAt time.Time) Message {
	if w.Data != nil {
		return w.Data.toMessage(fetchedAt)
	}
	return w.wireMessage.toMessage(fetchedAt)
}

// wireMessagePage is a message listing or reply listing. The list lives under
// one of several keys depending on endpoint and API version.
type wireMessagePage struct {
	Messages   []wireMessage `json:"messages"`
	Replies    []wireMessage `json:"replies"`
	Data       []wireMessage `json:"data"`
	NextCursor wireString    `json:"next_cursor"`
	Cursor     wireString    `json:"cursor"`
}

func (w wireMessagePage) toMessages(fetchedAt time.Time) ([]Message, string) {
	list := w.Messages
	switch {
	case len(w.Replies) > 0:
		list = w.Replies
	case len(list) == 0:
		list = w.Data
	}
	out := make([]Message, 0, len(list))
	for _, m := range list {
		out = append(out, m.toMessage(fetchedAt))
	}
	return out, firstNonEmpty(string(w.NextCursor), string(w.Cursor))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
