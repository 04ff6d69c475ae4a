package digest

import (
	"context"
	"fmt"
	"strings"

	"chatdigest/internal/chat"
	"chatdigest/internal/util"
)

const (
	DefaultTranscriptLimit = 20
	transcriptText         = 300
)

// ChannelTranscript renders the latest messages of one channel as
// "@name: text" lines, newest first as the API returns them.
func (f *Fetcher) ChannelTranscript(ctx context.Context, channelID string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	ws, err := f.id.WorkspaceID(ctx)
	if err != nil {
		return "", fmt.Errorf("digest: resolve workspace: %w", err)
	}
	msgs, _, err := f.api.ChannelMessages(ctx, ws, channelID, limit, "")
	if err != nil {
		return "", fmt.Errorf("digest: channel %s messages: %w", channelID, err)
	}
	if len(msgs) == 0 {
		return "No messages found.", nil
	}

	members := newRoster(f.api, ws, chat.Channel{ID: channelID})
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		name, err := members.senderName(ctx, m)
		if err != nil {
			return "", fmt.Errorf("digest: channel %s members: %w", channelID, err)
		}
		lines = append(lines, "@"+name+": "+util.Truncate(m.Text, transcriptText))
	}
	return strings.Join(lines, "\n"), nil
}
