package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatdigest/internal/chat"
	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

const unknownSender = "Unknown"

// Window bounds which messages a channel contributes. Messages created
// before Cutoff are dropped. When Seen is set, messages at or before it are
// dropped as well.
type Window struct {
	Cutoff time.Time
	Seen   time.Time
}

func (w Window) admits(t time.Time) bool {
	if t.Before(w.Cutoff) {
		return false
	}
	return w.Seen.IsZero() || t.After(w.Seen)
}

// roster is the member-name lookup of one channel. It is fetched at most
// once, and only when a name cannot be resolved otherwise.
type roster struct {
	api       API
	ws        string
	channelID string
	loaded    bool
	members   []chat.Member
	names     memberNames
}

func newRoster(api API, ws string, ch chat.Channel) *roster {
	r := &roster{api: api, ws: ws, channelID: ch.ID}
	if len(ch.Members) > 0 {
		r.members = ch.Members
		r.names = newMemberNames(ch.Members)
		r.loaded = true
	}
	return r
}

func (r *roster) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	members, err := r.api.ChannelMembers(ctx, r.ws, r.channelID)
	if err != nil {
		return err
	}
	r.loaded = true
	r.members = members
	r.names = newMemberNames(members)
	return nil
}

// senderName resolves the display name of a message author.
func (r *roster) senderName(ctx context.Context, m chat.Message) (string, error) {
	if name, ok := r.names[m.UserID]; ok {
		return name, nil
	}
	if m.Username != "" {
		return m.Username, nil
	}
	if !r.loaded {
		if err := r.load(ctx); err != nil {
			return "", err
		}
		if name, ok := r.names[m.UserID]; ok {
			return name, nil
		}
	}
	return unknownSender, nil
}

// IngestChannel reads the most recent messages of ch and turns them into
// digest messages. Messages written by user are never emitted; when one of
// them has replies, the replies from other people are emitted instead,
// flagged as thread replies. A failed reply fetch only loses that thread.
// Errors returned here cover the channel as a whole.
func (f *Fetcher) IngestChannel(ctx context.Context, ws string, user chat.User, ch chat.Channel, win Window) (model.ChannelSummary, error) {
	log := f.log.With(zap.String("channel_id", ch.ID))
	members := newRoster(f.api, ws, ch)

	name := ch.Name
	if needsRoster(ch) {
		if err := members.load(ctx); err != nil {
			return model.ChannelSummary{}, fmt.Errorf("digest: channel %s members: %w", ch.ID, err)
		}
		name = ChannelName(ch, members.members, user.ID)
	}
	log = log.With(zap.String("channel", name))

	summary := model.ChannelSummary{
		ID:             ch.ID,
		Name:           name,
		Type:           ch.Type,
		LatestActivity: ch.LatestActivity,
		NumUnread:      ch.NumUnread,
		MentionCount:   ch.MentionCount,
		HasUnread:      ch.HasUnread,
	}

	raw, _, err := f.api.ChannelMessages(ctx, ws, ch.ID, f.opts.MaxMessagesPerChannel, "")
	if err != nil {
		return model.ChannelSummary{}, fmt.Errorf("digest: channel %s messages: %w", ch.ID, err)
	}

	emit := func(m chat.Message, threadReply bool) error {
		sender, err := members.senderName(ctx, m)
		if err != nil {
			return fmt.Errorf("digest: channel %s members: %w", ch.ID, err)
		}
		summary.Messages = append(summary.Messages, model.Message{
			ID:            m.ID,
			Text:          m.Text,
			UserID:        m.UserID,
			Username:      sender,
			CreatedAt:     m.CreatedAt,
			ChannelID:     ch.ID,
			ChannelName:   name,
			ChannelType:   ch.Type,
			ReplyCount:    m.ReplyCount,
			IsMention:     util.MentionsHandle(m.Text, user.DisplayName(), f.opts.MentionAliases),
			IsThreadReply: threadReply,
		})
		return nil
	}

	for _, m := range raw {
		if m.CreatedAt.Before(win.Cutoff) {
			continue
		}
		if m.UserID != user.ID {
			if !win.admits(m.CreatedAt) {
				continue
			}
			if err := emit(m, false); err != nil {
				return model.ChannelSummary{}, err
			}
			continue
		}
		if m.ReplyCount == 0 {
			continue
		}
		replies, err := f.api.Replies(ctx, ws, m.ID)
		if err != nil {
			if chat.IsFatal(err) || ctx.Err() != nil {
				return model.ChannelSummary{}, fmt.Errorf("digest: replies of %s: %w", m.ID, err)
			}
			log.Warn("failed to fetch replies", zap.String("message_id", m.ID), zap.Error(err))
			continue
		}
		for _, r := range replies {
			if r.UserID == user.ID || !win.admits(r.CreatedAt) {
				continue
			}
			if err := emit(r, true); err != nil {
				return model.ChannelSummary{}, err
			}
		}
	}

	log.Debug("ingested channel", zap.Int("fetched", len(raw)), zap.Int("kept", len(summary.Messages)))
	return summary, nil
}
