package tui

import (
	"chatdigest/internal/digest"
	"chatdigest/internal/model"
)

// Async message types for Bubble Tea commands.

type digestLoadedMsg struct {
	digest *model.InboxDigest
	err    error
}

type fetchProgressMsg digest.Progress

type replySentMsg struct {
	err error
}

type statusMsg string
