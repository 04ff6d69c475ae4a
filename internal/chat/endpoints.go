package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatdigest/internal/model"
)

// CurrentUser returns the account that owns the token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	const path = "/api/v2/user"
	data, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return User{}, err
	}
	var w wireUserEnvelope
	if err := decode(path, data, &w); err != nil {
		return User{}, err
	}
	u := w.toUser()
	if u.ID == "" {
		return User{}, fmt.Errorf("chat: %s: response has no user id", path)
	}
	return u, nil
}

// Workspaces lists the teams the token can access, in API order.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	const path = "/api/v2/team"
	data, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var w wireTeams
	if err := decode(path, data, &w); err != nil {
		return nil, err
	}
	out := make([]Workspace, 0, len(w.Teams))
	for _, t := range w.Teams {
		out = append(out, t.toWorkspace())
	}
	return out, nil
}

// WorkspaceMembers lists every member of a workspace.
func (c *Client) WorkspaceMembers(ctx context.Context, ws string) ([]Member, error) {
	path := "/api/v2/team/" + ws
	data, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var w wireTeamEnvelope
	if err := decode(path, data, &w); err != nil {
		return nil, err
	}
	return w.toWorkspace().Members, nil
}

// ChannelQuery filters the channel listing. Zero values mean "no filter".
type ChannelQuery struct {
	FollowerOnly  bool
	Types         []model.ChannelType
	MessagesSince time.Time
}

func (q ChannelQuery) values() url.Values {
	v := url.Values{}
	if q.FollowerOnly {
		v.Set("is_follower", "true")
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		v.Set("channel_types", strings.Join(types, ","))
	}
	if !q.MessagesSince.IsZero() {
		v.Set("with_message_since", strconv.FormatInt(q.MessagesSince.UnixMilli(), 10))
	}
	return v
}

// Channels streams the channel listing across all pages.
func (c *Client) Channels(ctx context.Context, ws string, q ChannelQuery) iter.Seq2[Channel, error] {
	path := chatPath(ws, "channels")
	return func(yield func(Channel, error) bool) {
		for raw, err := range c.Paginate(ctx, path, q.values(), "data") {
			if err != nil {
				yield(Channel{}, err)
				return
			}
			var w wireChannel
			if err := decode(path, raw, &w); err != nil {
				yield(Channel{}, err)
				return
			}
			if !yield(w.toChannel(), nil) {
				return
			}
		}
	}
}

// ChannelMessages fetches one page of the most recent messages in a channel
// and the cursor for the next (older) page.
func (c *Client) ChannelMessages(ctx context.Context, ws, channelID string, limit int, cursor string) ([]Message, string, error) {
	path := chatPath(ws, "channels", channelID, "messages")
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	data, err := c.Request(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, "", err
	}
	var w wireMessagePage
	if err := decode(path, data, &w); err != nil {
		return nil, "", err
	}
	msgs, next := w.toMessages(c.now())
	return msgs, next, nil
}

// Replies fetches the thread replies of a message. A thread the server does
// not know about has no replies: a 404 yields an empty result, not an error.
func (c *Client) Replies(ctx context.Context, ws, messageID string) ([]Message, error) {
	path := chatPath(ws, "messages", messageID, "replies")
	data, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w wireMessagePage
	if err := decode(path, data, &w); err != nil {
		return nil, err
	}
	msgs, _ := w.toMessages(c.now())
	return msgs, nil
}

// ChannelMembers lists the members of a channel. The roster is best effort:
// a failed HTTP call yields an empty list. Rate-limit exhaustion and
// cancellation still surface as errors.
func (c *Client) ChannelMembers(ctx context.Context, ws, channelID string) ([]Member, error) {
	path := chatPath(ws, "channels", channelID, "members")
	var out []Member
	for raw, err := range c.Paginate(ctx, path, nil, "data") {
		if err != nil {
			var re *RequestError
			if errors.As(err, &re) {
				c.log.Debug("member lookup failed, continuing without roster",
					zap.String("channel_id", channelID),
					zap.Int("status", re.StatusCode))
				return nil, nil
			}
			return nil, err
		}
		var w wireUser
		if err := decode(path, raw, &w); err != nil {
			return nil, err
		}
		out = append(out, w.toMember())
	}
	return out, nil
}

// SendMessage posts a top-level message to a channel.
func (c *Client) SendMessage(ctx context.Context, ws, channelID, content string) (Message, error) {
	path := chatPath(ws, "channels", channelID, "messages")
	return c.postMessage(ctx, path, content)
}

// SendReply posts a reply in the thread of messageID.
func (c *Client) SendReply(ctx context.Context, ws, messageID, content string) (Message, error) {
	path := chatPath(ws, "messages", messageID, "replies")
	return c.postMessage(ctx, path, content)
}

func (c *Client) postMessage(ctx context.Context, path, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("chat: %s: content is empty", path)
	}
	data, err := c.Request(ctx, http.MethodPost, path, nil, map[string]string{"content": content})
	if err != nil {
		return Message{}, err
	}
	var w wireMessageEnvelope
	if err := decode(path, data, &w); err != nil {
		return Message{}, err
	}
	return w.toMessage(c.now()), nil
}

// DeleteMessage removes a message. Success carries no body.
func (c *Client) DeleteMessage(ctx context.Context, ws, messageID string) error {
	_, err := c.Request(ctx, http.MethodDelete, chatPath(ws, "messages", messageID), nil, nil)
	return err
}

// DirectMessageChannel returns the direct message channel with the given
// users, creating it if needed. The call is idempotent.
func (c *Client) DirectMessageChannel(ctx context.Context, ws string, userIDs []string) (Channel, error) {
	path := chatPath(ws, "channels", "direct_message")
	if len(userIDs) == 0 {
		return Channel{}, fmt.Errorf("chat: %s: at least one user id is required", path)
	}
	body := map[string][]any{"user_ids": numericIDs(userIDs)}
	data, err := c.Request(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return Channel{}, err
	}
	var w wireChannelEnvelope
	if err := decode(path, data, &w); err != nil {
		return Channel{}, err
	}
	ch := w.toChannel()
	if ch.ID == "" {
		return Channel{}, fmt.Errorf("chat: %s: response has no channel id", path)
	}
	return ch, nil
}

// numericIDs sends ids as JSON numbers when they look numeric, which is what
// the user-id fields of the API expect.
func numericIDs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			out[i] = n
		} else {
			out[i] = id
		}
	}
	return out
}

func chatPath(ws string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/api/v3/workspaces/")
	b.WriteString(ws)
	b.WriteString("/chat")
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}
