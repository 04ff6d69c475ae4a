package util

import "testing"

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"@Alice", "alice"},
		{"  @BOB  ", "bob"},
		{"@", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeHandle(tc.in); got != tc.want {
			t.Errorf("NormalizeHandle(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMentionsHandle(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		handle  string
		aliases []string
		want    bool
	}{
		{"exact", "hey @alice can you look", "alice", nil, true},
		{"case insensitive", "ping @ALICE", "Alice", nil, true},
		{"punctuation after", "thanks (@alice).", "alice", nil, true},
		{"no at sign", "alice said hi", "alice", nil, false},
		{"other user", "hey @bob", "alice", nil, false},
		{"alias", "hey @ally", "alice", []string{"ally"}, true},
		{"alias with at", "hey @Ally", "alice", []string{"@ally"}, true},
		{"empty handle ignores aliases", "hey @ally", "", []string{"ally"}, false},
		{"blank alias skipped", "hey @ everyone", "alice", []string{" "}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MentionsHandle(tc.text, tc.handle, tc.aliases); got != tc.want {
				t.Errorf("MentionsHandle(%q, %q) = %v; want %v", tc.text, tc.handle, got, tc.want)
			}
		})
	}
}

func TestEndsWithQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Can you review this PR?", true},
		{"Can you review this PR?  \n", true},
		{"Is it? No.", false},
		{"?", true},
		{"", false},
		{"done", false},
	}
	for _, tc := range tests {
		if got := EndsWithQuestion(tc.in); got != tc.want {
			t.Errorf("EndsWithQuestion(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestTruncateAndSnippet(t *testing.T) {
	if got := Truncate("héllo wörld", 5); got != "héllo" {
		t.Fatalf("Truncate rune-aware: got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate no-op: got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("Truncate zero: got %q", got)
	}
	if got := Snippet("line one\r\nline two\nthree", 17); got != "line one line two" {
		t.Fatalf("Snippet: got %q", got)
	}
}
