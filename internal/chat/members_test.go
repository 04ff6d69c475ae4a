package chat

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveUserIDs(t *testing.T) {
	members := []Member{
		{ID: "1", Username: "Alice", Email: "alice@example.com"},
		{ID: "2", Username: "bob"},
	}

	got, err := ResolveUserIDs(members, []string{"@alice", "2", "BOB", " ", "alice@example.com"})
	if err != nil {
		t.Fatalf("ResolveUserIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2"}, got); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	_, err = ResolveUserIDs(members, []string{"carol", "bob", "dave"})
	if err == nil || !strings.Contains(err.Error(), "carol, dave") {
		t.Fatalf("expected unknown recipients error, got %v", err)
	}
}
