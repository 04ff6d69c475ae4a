package digest

import (
	"time"

	"chatdigest/internal/chat"
	"chatdigest/internal/model"
)

// Assemble builds the digest from ingested channels, given in selection
// order. Channels that kept no messages are dropped. A message id seen in an
// earlier channel is dropped from later ones, so every message belongs to
// exactly one channel. Priorities are assigned to the channel copies and the
// flat list alike; the flat list is ordered by priority, then creation time.
func Assemble(user chat.User, fetchedAt time.Time, summaries []model.ChannelSummary) *model.InboxDigest {
	d := &model.InboxDigest{
		UserID:    user.ID,
		Username:  user.DisplayName(),
		FetchedAt: fetchedAt,
	}
	seen := make(map[string]bool)
	for _, s := range summaries {
		kept := make([]model.Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			if m.ID != "" {
				if seen[m.ID] {
					continue
				}
				seen[m.ID] = true
			}
			m.Priority = Classify(m, user.ID)
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			continue
		}
		s.Messages = kept
		d.Channels = append(d.Channels, s)
		d.Messages = append(d.Messages, kept...)
	}
	sortByPriority(d.Messages)
	return d
}

// LastSeen returns, per channel of d, the creation time of its newest
// message.
func LastSeen(d *model.InboxDigest) map[string]time.Time {
	out := make(map[string]time.Time, len(d.Channels))
	for _, ch := range d.Channels {
		for _, m := range ch.Messages {
			if m.CreatedAt.After(out[ch.ID]) {
				out[ch.ID] = m.CreatedAt
			}
		}
	}
	return out
}
