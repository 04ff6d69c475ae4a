package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"abc123", "abc123", false},
		{"  abc123\n", "abc123", false},
		{"http://127.0.0.1:8080/?code=xyz&state=s", "xyz", false},
		{"https://example.com/cb?state=s", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseAuthCode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAuthCode(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAuthCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenSourcePrefersStaticToken(t *testing.T) {
	ts, err := TokenSource(context.Background(), AuthConfig{APIToken: " pk_1 ", TokenPath: "/does/not/exist"})
	if err != nil {
		t.Fatalf("TokenSource: %v", err)
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken != "pk_1" {
		t.Fatalf("Token = %+v, %v", tok, err)
	}
}

func TestTokenSourceFromCachedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	if err := saveToken(path, &oauth2.Token{AccessToken: "cached", TokenType: "Bearer"}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode = %v", info.Mode().Perm())
	}

	ts, err := TokenSource(context.Background(), AuthConfig{TokenPath: path})
	if err != nil {
		t.Fatalf("TokenSource: %v", err)
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken != "cached" {
		t.Fatalf("Token = %+v, %v", tok, err)
	}
}

func TestTokenSourceMissing(t *testing.T) {
	_, err := TokenSource(context.Background(), AuthConfig{TokenPath: filepath.Join(t.TempDir(), "none.json")})
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoginRequiresClient(t *testing.T) {
	_, err := Login(context.Background(), AuthConfig{TokenPath: "x"}, nil, nil)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
