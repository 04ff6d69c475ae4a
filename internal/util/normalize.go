package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeHandle lowercases a user handle and strips surrounding whitespace
// and a leading "@", so "@Alice " and "alice" compare equal.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(strings.TrimSpace(h))
}

// MentionsHandle reports whether text contains an @-mention of handle or of
// any alias. Matching is case-insensitive substring matching, so "@alice"
// also matches inside "@alice." or "(@Alice)". An empty handle never matches.
func MentionsHandle(text, handle string, aliases []string) bool {
	h := NormalizeHandle(handle)
	if h == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "@"+h) {
		return true
	}
	for _, a := range aliases {
		a = NormalizeHandle(a)
		if a != "" && strings.Contains(lower, "@"+a) {
			return true
		}
	}
	return false
}

// EndsWithQuestion reports whether text, after trimming trailing whitespace,
// ends in a question mark.
func EndsWithQuestion(text string) bool {
	return strings.HasSuffix(strings.TrimRightFunc(text, unicode.IsSpace), "?")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Snippet truncates s to n runes and folds line breaks into spaces so the
// result fits on one line.
func Snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", " ")
	return Truncate(s, n)
}
