package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuth endpoints of the public API.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://app.clickup.com/api",
	TokenURL:  "https://api.clickup.com/api/v2/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// AuthConfig selects how requests are authenticated. A static APIToken wins
// over a cached OAuth token at TokenPath.
type AuthConfig struct {
	APIToken     string
	ClientID     string
	ClientSecret string
	TokenPath    string
}

func (a AuthConfig) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Endpoint:     Endpoint,
	}
}

// TokenSource returns the credential for API calls. It fails with a
// ConfigurationError when neither a static token nor a cached OAuth token
// is available.
func TokenSource(ctx context.Context, a AuthConfig) (oauth2.TokenSource, error) {
	if tok := strings.TrimSpace(a.APIToken); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}), nil
	}
	if a.TokenPath == "" {
		return nil, &ConfigurationError{Reason: "no api token configured; set CHATDIGEST_API_TOKEN or run `chatdigest login`"}
	}
	tok, err := readToken(a.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigurationError{Reason: "no api token configured; set CHATDIGEST_API_TOKEN or run `chatdigest login`"}
		}
		return nil, fmt.Errorf("chat: read token %s: %w", a.TokenPath, err)
	}
	if tok.RefreshToken == "" || a.ClientID == "" {
		return oauth2.StaticTokenSource(tok), nil
	}
	return a.oauthConfig().TokenSource(ctx, tok), nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token file has no access token")
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Login runs the authorization-code flow: it listens on a loopback port for
// the redirect and falls back to a pasted code (or full redirect URL) read
// from in. The resulting token is cached at a.TokenPath.
func Login(ctx context.Context, a AuthConfig, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if a.ClientID == "" || a.ClientSecret == "" {
		return nil, &ConfigurationError{Reason: "oauth client_id and client_secret are required for login"}
	}
	if a.TokenPath == "" {
		return nil, &ConfigurationError{Reason: "oauth token_path is required for login"}
	}
	cfg := a.oauthConfig()

	tok, err := tokenFromLoopback(ctx, cfg, out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fmt.Fprintf(out, "Loopback redirect unavailable (%v); falling back to manual paste.\n", err)
		tok, err = tokenFromPaste(ctx, cfg, in, out)
		if err != nil {
			return nil, err
		}
	}
	if err := saveToken(a.TokenPath, tok); err != nil {
		return nil, fmt.Errorf("chat: save token: %w", err)
	}
	fmt.Fprintln(out, "Authentication successful.")
	return tok, nil
}

// loopbackWait bounds how long the loopback server waits for the redirect.
var loopbackWait = 120 * time.Second

func tokenFromLoopback(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen on loopback: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintln(out, "A browser window will open. If it does not, copy this URL:")
	fmt.Fprintln(out, authURL)
	_ = OpenBrowser(authURL)

	timer := time.NewTimer(loopbackWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-timer.C:
		cfg.RedirectURL = ""
		return nil, errors.New("timed out waiting for redirect")
	}
}

func tokenFromPaste(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintln(out, "Open this URL in your browser to authorize chatdigest:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(out, "> ")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := parseAuthCode(sc.Text())
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

// parseAuthCode accepts either a bare code or a redirect URL carrying one.
func parseAuthCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("parse redirect URL: %w", err)
		}
		c := u.Query().Get("code")
		if c == "" {
			return "", errors.New("no 'code' parameter found in pasted URL")
		}
		return c, nil
	}
	return input, nil
}

// OpenBrowser opens an http(s) URL with the platform's default handler.
func OpenBrowser(rawURL string) error {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("refusing to open non-HTTP URL: %s", rawURL)
	}

	var cmd string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmd, args = "open", []string{rawURL}
	case "linux":
		cmd, args = "xdg-open", []string{rawURL}
	case "windows":
		cmd, args = "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return exec.Command(cmd, args...).Start()
}
