package digest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chatdigest/internal/chat"
	"chatdigest/internal/model"
)

func TestSelectChannelsKeepsMostRecentBroadcast(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	var listing []chat.Channel
	for i := range 45 {
		// Pairs share a timestamp so ties are exercised.
		listing = append(listing, chat.Channel{
			ID:             fmt.Sprintf("b%02d", i),
			Name:           fmt.Sprintf("chan-%d", i),
			Type:           model.ChannelBroadcast,
			LatestActivity: now.Add(-time.Duration(i/2) * time.Minute),
		})
	}

	got := SelectChannels(listing, cutoff, 30)
	if len(got) != 30 {
		t.Fatalf("expected 30 channels, got %d", len(got))
	}
	for i, ch := range got {
		if want := fmt.Sprintf("b%02d", i); ch.ID != want {
			t.Fatalf("position %d: got %s, want %s", i, ch.ID, want)
		}
	}
}

func TestSelectChannelsTieOrderFollowsListing(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	listing := []chat.Channel{
		{ID: "old", Type: model.ChannelBroadcast, LatestActivity: now.Add(-2 * time.Hour)},
		{ID: "tie-1", Type: model.ChannelBroadcast, LatestActivity: now.Add(-time.Hour)},
		{ID: "tie-2", Type: model.ChannelBroadcast, LatestActivity: now.Add(-time.Hour)},
	}
	got := SelectChannels(listing, now.Add(-24*time.Hour), 2)
	if len(got) != 2 || got[0].ID != "tie-1" || got[1].ID != "tie-2" {
		t.Fatalf("unexpected selection %v", ids(got))
	}
}

func TestSelectChannelsDirectFirstAndCutoff(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)
	listing := []chat.Channel{
		{ID: "b-new", Type: model.ChannelBroadcast, LatestActivity: now},
		{ID: "dm-2", Type: model.ChannelDirect, LatestActivity: now.Add(-5 * time.Hour)},
		{ID: "b-stale", Type: model.ChannelBroadcast, LatestActivity: cutoff},
		{ID: "gdm", Type: model.ChannelGroupDirect, LatestActivity: now.Add(-time.Hour)},
		{ID: "dm-stale", Type: model.ChannelDirect, LatestActivity: cutoff.Add(-time.Minute)},
		{ID: "b-mid", Type: model.ChannelBroadcast, LatestActivity: now.Add(-time.Hour)},
	}
	got := SelectChannels(listing, cutoff, 30)
	want := []string{"dm-2", "gdm", "b-new", "b-mid"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelName(t *testing.T) {
	members := []chat.Member{
		{ID: "me", Username: "alice"},
		{ID: "2", Username: "bob"},
		{ID: "3", Email: "carol@example.com"},
		{ID: "4", Username: "dave"},
	}
	tests := []struct {
		name    string
		ch      chat.Channel
		members []chat.Member
		userID  string
		want    string
	}{
		{"named broadcast", chat.Channel{ID: "c", Name: "general", Type: model.ChannelBroadcast}, members, "me", "general"},
		{"direct excludes self", chat.Channel{ID: "c", Name: "raw", Type: model.ChannelDirect}, members, "me", "bob, carol@example.com, dave"},
		{"no user context takes three", chat.Channel{ID: "c", Type: model.ChannelGroupDirect}, members, "", "alice, bob, carol@example.com"},
		{"unnamed broadcast", chat.Channel{ID: "c", Type: model.ChannelBroadcast}, members[:2], "me", "bob"},
		{"direct without roster keeps raw name", chat.Channel{ID: "c", Name: "raw", Type: model.ChannelDirect}, nil, "me", "raw"},
		{"placeholder broadcast resolves from members", chat.Channel{ID: "c", Name: "Channel 123", Type: model.ChannelBroadcast}, members[:2], "me", "bob"},
		{"placeholder without roster kept", chat.Channel{ID: "c", Name: "Channel 123", Type: model.ChannelBroadcast}, nil, "me", "Channel 123"},
		{"nothing resolves", chat.Channel{ID: "c9", Type: model.ChannelDirect}, members[:1], "me", "Channel c9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChannelName(tt.ch, tt.members, tt.userID); got != tt.want {
				t.Fatalf("ChannelName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNeedsRoster(t *testing.T) {
	tests := []struct {
		ch   chat.Channel
		want bool
	}{
		{chat.Channel{Name: "general", Type: model.ChannelBroadcast}, false},
		{chat.Channel{Name: "", Type: model.ChannelBroadcast}, true},
		{chat.Channel{Name: "Channel 42", Type: model.ChannelBroadcast}, true},
		{chat.Channel{Name: "Channels and more", Type: model.ChannelBroadcast}, false},
		{chat.Channel{Name: "bob", Type: model.ChannelDirect}, true},
	}
	for _, tt := range tests {
		if got := needsRoster(tt.ch); got != tt.want {
			t.Errorf("needsRoster(%q, %s) = %v, want %v", tt.ch.Name, tt.ch.Type, got, tt.want)
		}
	}
}

func ids(chs []chat.Channel) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = ch.ID
	}
	return out
}
