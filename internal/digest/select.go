package digest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"chatdigest/internal/chat"
)

// DefaultMaxBroadcastChannels bounds how many broadcast channels a run reads.
const DefaultMaxBroadcastChannels = 30

// SelectChannels picks the working set from a channel listing: every direct
// or group direct channel active after cutoff, in listing order, followed by
// the maxBroadcast most recently active broadcast channels. Broadcast
// channels with equal activity keep their listing order.
func SelectChannels(channels []chat.Channel, cutoff time.Time, maxBroadcast int) []chat.Channel {
	if maxBroadcast < 0 {
		maxBroadcast = 0
	}
	var direct, broadcast []chat.Channel
	for _, ch := range channels {
		if !ch.LatestActivity.After(cutoff) {
			continue
		}
		if ch.Type.IsDirect() {
			direct = append(direct, ch)
		} else {
			broadcast = append(broadcast, ch)
		}
	}
	slices.SortStableFunc(broadcast, func(a, b chat.Channel) int {
		return b.LatestActivity.Compare(a.LatestActivity)
	})
	if len(broadcast) > maxBroadcast {
		broadcast = broadcast[:maxBroadcast]
	}
	return append(direct, broadcast...)
}

// listChannels drains the channel listing.
func (f *Fetcher) listChannels(ctx context.Context, ws string) ([]chat.Channel, error) {
	var out []chat.Channel
	for ch, err := range f.api.Channels(ctx, ws, chat.ChannelQuery{}) {
		if err != nil {
			return nil, fmt.Errorf("digest: list channels: %w", err)
		}
		out = append(out, ch)
	}
	return out, nil
}

// memberNames maps member id to display name.
type memberNames map[string]string

func newMemberNames(members []chat.Member) memberNames {
	names := make(memberNames, len(members))
	for _, m := range members {
		if m.ID == "" {
			continue
		}
		name := m.Username
		if name == "" {
			name = m.Email
		}
		if name == "" {
			name = unknownSender
		}
		names[m.ID] = name
	}
	return names
}

// ChannelName derives the display name of a channel. Named broadcast
// channels keep their name. Direct channels and unnamed channels are named
// after their members other than the requesting user, or after the first
// three members when userID is empty. A "Channel ..." placeholder counts as
// unnamed. "Channel <id>" is the last resort.
func ChannelName(ch chat.Channel, members []chat.Member, userID string) string {
	if hasOwnName(ch) && !ch.Type.IsDirect() {
		return ch.Name
	}
	var names []string
	for _, m := range members {
		if userID != "" && m.ID == userID {
			continue
		}
		name := m.Username
		if name == "" {
			name = m.Email
		}
		if name == "" {
			continue
		}
		names = append(names, name)
		if userID == "" && len(names) == 3 {
			break
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	if ch.Name != "" {
		return ch.Name
	}
	return "Channel " + ch.ID
}

func needsRoster(ch chat.Channel) bool {
	return !hasOwnName(ch) || ch.Type.IsDirect()
}

// hasOwnName reports whether the API gave the channel a real name rather
// than nothing or its "Channel ..." placeholder.
func hasOwnName(ch chat.Channel) bool {
	return ch.Name != "" && !strings.HasPrefix(ch.Name, "Channel ")
}
