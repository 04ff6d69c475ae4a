package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chatdigest/internal/digest"
	"chatdigest/internal/model"
)

type viewState int

const (
	viewLoading  viewState = iota
	viewChannels           // channels of the digest
	viewMessages           // messages within a channel
	viewBody               // single message
	viewReply              // composing a thread reply
)

// Source produces a fresh digest.
type Source interface {
	Fetch(ctx context.Context) (*model.InboxDigest, error)
}

// ReplyFunc posts text as a thread reply to messageID.
type ReplyFunc func(ctx context.Context, messageID, text string) error

type AppModel struct {
	// Core state
	ctx    context.Context
	source Source
	reply  ReplyFunc
	digest *model.InboxDigest
	Err    error
	status string

	// View state machine
	view        viewState
	replyFrom   viewState
	selectedMsg *model.Message

	// Sub-models
	channelsList list.Model
	messagesList list.Model
	bodyViewport viewport.Model
	replyInput   textinput.Model

	// Layout
	width, height int

	// Program reference for sending messages from goroutines
	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so goroutines can send
// progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

// Progress forwards digest progress to the UI. It is safe to call from
// any goroutine.
func (m *AppModel) Progress(p digest.Progress) {
	if m.program != nil {
		m.program.Send(fetchProgressMsg(p))
	}
}

// NewAppModel builds the browser. Fetches and replies run under ctx, so
// cancelling it stops them.
func NewAppModel(ctx context.Context, source Source, reply ReplyFunc) AppModel {
	ti := textinput.New()
	ti.Placeholder = "Write a reply"
	ti.CharLimit = 4000

	cl := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	cl.KeyMap.Quit.SetKeys("q")

	return AppModel{
		ctx:          ctx,
		source:       source,
		reply:        reply,
		status:       "Fetching digest...",
		view:         viewLoading,
		channelsList: cl,
		messagesList: list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		bodyViewport: viewport.New(0, 0),
		replyInput:   ti,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 4 // room for footer
		m.channelsList.SetSize(msg.Width, listH)
		m.messagesList.SetSize(msg.Width, listH)
		m.bodyViewport.Width = msg.Width
		m.bodyViewport.Height = msg.Height - 8 // room for header + footer
		m.replyInput.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case fetchProgressMsg:
		switch {
		case msg.Phase == "channels":
			m.status = "Listing channels..."
		case msg.Total > 0:
			m.status = fmt.Sprintf("Reading channels... %d / %d", msg.Done, msg.Total)
		}
		return m, nil

	case digestLoadedMsg:
		if msg.err != nil {
			if m.digest == nil {
				m.Err = msg.err
				m.status = "Fetch failed!"
				return m, tea.Quit
			}
			m.status = fmt.Sprintf("Refresh failed: %v", msg.err)
			return m, clearStatusAfter(3 * time.Second)
		}
		m.digest = msg.digest
		m.channelsList.SetItems(channelItems(m.digest))
		m.channelsList.Title = fmt.Sprintf("Inbox (%d messages in %d channels)", len(m.digest.Messages), len(m.digest.Channels))
		m.view = viewChannels
		m.selectedMsg = nil
		m.status = ""
		return m, nil

	case replySentMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Reply failed: %v", msg.err)
		} else {
			m.status = "Reply sent"
		}
		return m, clearStatusAfter(2 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewChannels:
		m.channelsList, cmd = m.channelsList.Update(msg)
	case viewMessages:
		m.messagesList, cmd = m.messagesList.Update(msg)
	case viewBody:
		m.bodyViewport, cmd = m.bodyViewport.Update(msg)
	case viewReply:
		m.replyInput, cmd = m.replyInput.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			return m, tea.Quit
		}

	case viewChannels:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.channelsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.channelsList, cmd = m.channelsList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "enter":
			return m.enterChannel()
		case "R":
			m.status = "Refreshing..."
			return m, m.fetchCmd()
		}
		var cmd tea.Cmd
		m.channelsList, cmd = m.channelsList.Update(msg)
		return m, cmd

	case viewMessages:
		if m.messagesList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.messagesList, cmd = m.messagesList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewChannels
			return m, nil
		case "enter":
			return m.enterMessage()
		case "r":
			if mi, ok := m.messagesList.SelectedItem().(messageItem); ok {
				return m.startReply(mi.Message)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.messagesList, cmd = m.messagesList.Update(msg)
		return m, cmd

	case viewBody:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewMessages
			m.selectedMsg = nil
			return m, nil
		case "r":
			if m.selectedMsg != nil {
				return m.startReply(*m.selectedMsg)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.bodyViewport, cmd = m.bodyViewport.Update(msg)
		return m, cmd

	case viewReply:
		switch key {
		case "esc":
			m.replyInput.Reset()
			m.replyInput.Blur()
			m.view = m.replyFrom
			return m, nil
		case "enter":
			return m.sendReply()
		}
		var cmd tea.Cmd
		m.replyInput, cmd = m.replyInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) enterChannel() (tea.Model, tea.Cmd) {
	ci, ok := m.channelsList.SelectedItem().(channelItem)
	if !ok {
		return m, nil
	}
	m.messagesList.SetItems(messageItems(ci.messages, m.now()))
	m.messagesList.Title = fmt.Sprintf("%s (%d messages)", ci.name, len(ci.messages))
	m.view = viewMessages
	return m, nil
}

func (m *AppModel) enterMessage() (tea.Model, tea.Cmd) {
	mi, ok := m.messagesList.SelectedItem().(messageItem)
	if !ok {
		return m, nil
	}
	msg := mi.Message
	m.selectedMsg = &msg
	m.bodyViewport.SetContent(bodyHeader(msg) + "\n\n" + renderBody(msg.Text, m.width))
	m.bodyViewport.GotoTop()
	m.view = viewBody
	return m, nil
}

func (m *AppModel) startReply(msg model.Message) (tea.Model, tea.Cmd) {
	if m.reply == nil {
		m.status = "Replies are not available"
		return m, clearStatusAfter(2 * time.Second)
	}
	target := msg
	m.selectedMsg = &target
	m.replyFrom = m.view
	m.replyInput.Reset()
	m.view = viewReply
	return m, m.replyInput.Focus()
}

func (m *AppModel) sendReply() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.replyInput.Value())
	if text == "" || m.selectedMsg == nil {
		return m, nil
	}
	id := m.selectedMsg.ID
	m.replyInput.Reset()
	m.replyInput.Blur()
	m.view = m.replyFrom
	m.status = "Sending reply..."
	return m, func() tea.Msg {
		return replySentMsg{err: m.reply(m.ctx, id, text)}
	}
}

// Commands

func (m *AppModel) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		d, err := m.source.Fetch(m.ctx)
		return digestLoadedMsg{digest: d, err: err}
	}
}

func (m *AppModel) now() time.Time {
	if m.digest != nil && !m.digest.FetchedAt.IsZero() {
		return m.digest.FetchedAt
	}
	return time.Now()
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading
	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewChannels:
		b.WriteString(m.channelsList.View())
		b.WriteString("\n")
		b.WriteString(channelsFooter())
	case viewMessages:
		b.WriteString(m.messagesList.View())
		b.WriteString("\n")
		b.WriteString(messagesFooter())
	case viewBody:
		b.WriteString(m.bodyViewport.View())
		b.WriteString("\n")
		b.WriteString(bodyFooter())
	case viewReply:
		if m.selectedMsg != nil {
			b.WriteString(bodyHeader(*m.selectedMsg))
			b.WriteString("\n")
		}
		b.WriteString(m.replyInput.View())
		b.WriteString("\n")
		b.WriteString(replyFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}
