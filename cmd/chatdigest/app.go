package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatdigest/internal/chat"
	"chatdigest/internal/digest"
	"chatdigest/internal/model"
	"chatdigest/internal/store"
	"chatdigest/internal/summary"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	client   *chat.Client
	identity *chat.Identity
	store    *store.SQLiteStore
	gemini   *summary.Gemini
}

func newApp(ctx context.Context) (*app, error) {
	ts, err := chat.TokenSource(ctx, chat.AuthConfig{
		APIToken:     cfg.APIToken,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		TokenPath:    cfg.OAuth.TokenPath,
	})
	if err != nil {
		return nil, err
	}
	client, err := chat.New(ts,
		chat.WithBaseURL(cfg.BaseURL),
		chat.WithTimeout(cfg.RequestTimeout),
		chat.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	a := &app{
		client:   client,
		identity: chat.NewIdentity(client, cfg.WorkspaceID, logger),
	}
	if cfg.StatePath != "" {
		st, err := store.NewSQLiteStore(cfg.StatePath)
		if err != nil {
			client.Close()
			return nil, err
		}
		a.store = st
	}
	if cfg.Summary.GeminiAPIKey != "" {
		g, err := summary.NewGemini(ctx, cfg.Summary.GeminiAPIKey, cfg.Summary.Model)
		if err != nil {
			logger.Warn("language-model summary disabled", zap.Error(err))
		} else {
			a.gemini = g
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.client.Close()
}

// fetchOptions carries per-command overrides of the configured digest options.
type fetchOptions struct {
	lookback   time.Duration
	unseenOnly bool
	progress   func(digest.Progress)
}

func (a *app) fetcher(o fetchOptions) *digest.Fetcher {
	lookback := cfg.Lookback
	if o.lookback > 0 {
		lookback = o.lookback
	}
	var state digest.StateStore
	if a.store != nil {
		state = a.store
	}
	return digest.NewFetcher(a.client, a.identity, state, logger, digest.Options{
		Lookback:              lookback,
		MaxMessagesPerChannel: cfg.MaxMessagesPerChannel,
		MaxBroadcastChannels:  cfg.MaxBroadcastChannels,
		Concurrency:           cfg.Concurrency,
		MentionAliases:        cfg.MentionAliases,
		UnseenOnly:            o.unseenOnly,
		Progress:              o.progress,
	})
}

func (a *app) summarizer() *summary.Summarizer {
	var gen summary.Generator
	if a.gemini != nil {
		gen = a.gemini
	}
	return summary.New(gen, cfg.Summary.MaxMessages, logger)
}

// fetch runs a digest and records the run in the state store.
func (a *app) fetch(ctx context.Context, o fetchOptions) (*model.InboxDigest, error) {
	d, err := a.fetcher(o).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		if err := a.store.SetMeta(ctx, "last_run", d.FetchedAt.UTC().Format(time.RFC3339)); err != nil {
			logger.Warn("record last run", zap.Error(err))
		}
	}
	return d, nil
}

// workspace resolves the workspace for write commands.
func (a *app) workspace(ctx context.Context) (string, error) {
	ws, err := a.identity.WorkspaceID(ctx)
	if err != nil {
		var ce *chat.ConfigurationError
		if errors.As(err, &ce) {
			return "", err
		}
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	return ws, nil
}
