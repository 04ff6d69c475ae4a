// Package config provides YAML-based configuration loading for chatdigest,
// with .env and environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from config.yaml.
type Config struct {
	APIToken              string         `yaml:"api_token"`
	WorkspaceID           string         `yaml:"workspace_id"`
	BaseURL               string         `yaml:"base_url"`
	RequestTimeout        time.Duration  `yaml:"request_timeout"`
	Lookback              time.Duration  `yaml:"lookback"`
	MaxMessagesPerChannel int            `yaml:"max_messages_per_channel"`
	MaxBroadcastChannels  int            `yaml:"max_broadcast_channels"`
	Concurrency           int            `yaml:"concurrency"`
	MentionAliases        []string       `yaml:"mention_aliases"`
	StatePath             string         `yaml:"state_path"`
	LogLevel              string         `yaml:"log_level"`
	OAuth                 OAuthConfig    `yaml:"oauth"`
	Summary               SummaryConfig  `yaml:"summary"`
	Schedule              ScheduleConfig `yaml:"schedule"`

	// Dir is the directory holding the config file, state and tokens.
	Dir string `yaml:"-"`
}

// OAuthConfig holds the app credentials used by `chatdigest login`.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenPath    string `yaml:"token_path"`
}

// SummaryConfig controls the language-model summary. An empty API key
// disables it and the plain markdown summary is used.
type SummaryConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
	Model        string `yaml:"model"`
	MaxMessages  int    `yaml:"max_messages"`
}

// ScheduleConfig drives `chatdigest schedule`.
type ScheduleConfig struct {
	Cron       string   `yaml:"cron"`
	Recipients []string `yaml:"recipients"`
}

const (
	DefaultBaseURL      = "https://api.clickup.com"
	DefaultSummaryModel = "gemini-2.0-flash"
	DefaultCron         = "0 9 * * 1-5"
)

// DefaultDir returns ~/.config/chatdigest.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chatdigest"), nil
}

// Load reads the YAML config at path, then .env files, then environment
// overrides, and returns a validated Config. An empty path means
// config.yaml in DefaultDir; a missing file there is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	cfg, err := parse(data, filepath.Dir(path), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config without consulting
// the environment.
func Parse(data []byte) (*Config, error) {
	return parse(data, "", func(string) (string, bool) { return "", false })
}

func parse(data []byte, dir string, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.Dir = dir
	cfg.applyEnv(lookup)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	str(&c.APIToken, "CHATDIGEST_API_TOKEN", "CLICKUP_API_TOKEN")
	str(&c.WorkspaceID, "CHATDIGEST_WORKSPACE_ID", "CLICKUP_WORKSPACE_ID")
	str(&c.BaseURL, "CHATDIGEST_BASE_URL")
	str(&c.LogLevel, "CHATDIGEST_LOG_LEVEL")
	str(&c.StatePath, "CHATDIGEST_STATE_PATH")
	str(&c.Summary.GeminiAPIKey, "GEMINI_API_KEY")
	str(&c.OAuth.ClientID, "CHATDIGEST_CLIENT_ID")
	str(&c.OAuth.ClientSecret, "CHATDIGEST_CLIENT_SECRET")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Lookback == 0 {
		c.Lookback = 24 * time.Hour
	}
	if c.MaxMessagesPerChannel == 0 {
		c.MaxMessagesPerChannel = 50
	}
	if c.MaxBroadcastChannels == 0 {
		c.MaxBroadcastChannels = 30
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.Summary.Model == "" {
		c.Summary.Model = DefaultSummaryModel
	}
	if c.Summary.MaxMessages == 0 {
		c.Summary.MaxMessages = 30
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Dir != "" {
		if c.StatePath == "" {
			c.StatePath = filepath.Join(c.Dir, "state.db")
		}
		if c.OAuth.TokenPath == "" {
			c.OAuth.TokenPath = filepath.Join(c.Dir, "token.json")
		}
	}
}

// validate checks that all fields are present and consistent. Missing
// credentials are not checked here; `login` runs without them.
func (c *Config) validate() error {
	var errs []string
	if c.RequestTimeout < 0 {
		errs = append(errs, "request_timeout must be positive")
	}
	if c.Lookback < 0 {
		errs = append(errs, "lookback must be positive")
	}
	if c.MaxMessagesPerChannel < 0 {
		errs = append(errs, "max_messages_per_channel must be positive")
	}
	if c.MaxBroadcastChannels < 0 {
		errs = append(errs, "max_broadcast_channels must be positive")
	}
	if c.Concurrency < 0 {
		errs = append(errs, "concurrency must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.Summary.MaxMessages < 0 {
		errs = append(errs, "summary.max_messages must be positive")
	}
	for i, a := range c.MentionAliases {
		if strings.TrimSpace(strings.TrimPrefix(a, "@")) == "" {
			errs = append(errs, fmt.Sprintf("mention_aliases[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
