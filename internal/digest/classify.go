package digest

import (
	"slices"

	"chatdigest/internal/model"
	"chatdigest/internal/util"
)

// Classify assigns a priority tier to m. The first matching rule wins:
//
//	critical  direct message from someone else that asks a question or mentions the user
//	high      any other direct message from someone else, a thread reply from someone else, or a mention
//	medium    broadcast message with an active thread
//	low       everything else
func Classify(m model.Message, userID string) model.Priority {
	direct := m.ChannelType.IsDirect()
	fromOther := m.UserID != userID

	if direct && fromOther && (util.EndsWithQuestion(m.Text) || m.IsMention) {
		return model.PriorityCritical
	}
	if direct && fromOther {
		return model.PriorityHigh
	}
	if m.IsThreadReply && fromOther {
		return model.PriorityHigh
	}
	if m.IsMention {
		return model.PriorityHigh
	}
	if m.ChannelType == model.ChannelBroadcast && m.ReplyCount > 0 {
		return model.PriorityMedium
	}
	return model.PriorityLow
}

// ClassifyAndOrder returns classified copies of msgs ordered by priority
// rank, then creation time. The sort is stable and msgs is left untouched,
// so running it again over its own output yields the same result.
func ClassifyAndOrder(msgs []model.Message, userID string) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m.Priority = Classify(m, userID)
		out[i] = m
	}
	sortByPriority(out)
	return out
}

func sortByPriority(msgs []model.Message) {
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		if d := a.Priority.Rank() - b.Priority.Rank(); d != 0 {
			return d
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
