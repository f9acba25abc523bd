// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/query"
	"github.com/AndyO2/pony-express/session"
)

type focus int

const (
	focusList focus = iota
	focusSearch
	focusCompose
)

// postTimeout bounds a single send from the compose line.
const postTimeout = 30 * time.Second

// Model is the bubbletea model for the viewer.
type Model struct {
	bridge *bridge
	keys   KeyMap
	theme  Theme

	width  int
	height int
	focus  focus

	status session.Status

	chats        []chat.Chat
	chatsStatus  query.Status
	chatsErr     error
	matches      []chat.SearchMatch
	cursor       int
	activeChat   chat.ID
	messages     []chat.Message
	messagesStat query.Status
	messagesErr  error

	search  textinput.Model
	compose textinput.Model
	sending bool
	notice  string
}

// New creates a model over source and sess. When initialChat is set the
// conversation opens immediately.
func New(source Source, sess Session, initialChat chat.ID) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"
	search.CharLimit = 64

	compose := textinput.New()
	compose.Prompt = "> "
	compose.Placeholder = "message"
	compose.CharLimit = 2000

	model := Model{
		bridge:  newBridge(source, sess),
		keys:    DefaultKeyMap,
		theme:   DefaultTheme,
		width:   80,
		height:  24,
		search:  search,
		compose: compose,
	}
	entry, status := model.bridge.start()
	model.status = status
	model.applyChats(entry)
	if initialChat != "" {
		model.openChat(initialChat)
	}
	return model
}

// Close releases the model's subscriptions.
func (model Model) Close() {
	model.bridge.close()
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return listenForSourceEvent(model.bridge)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		return model, nil

	case chatsMsg:
		model.applyChats(message.entry)
		return model, listenForSourceEvent(model.bridge)

	case messagesMsg:
		if message.chatID == model.activeChat {
			model.applyMessages(message.entry)
		}
		return model, listenForSourceEvent(model.bridge)

	case sessionMsg:
		model.status = message.status
		if message.status.State == session.Anonymous {
			model.notice = "signed out; run 'pony login' to continue"
			model.focus = focusList
			model.compose.Blur()
		}
		return model, listenForSourceEvent(model.bridge)

	case postedMsg:
		model.sending = false
		if message.err != nil {
			model.notice = "send failed: " + message.err.Error()
			return model, nil
		}
		model.notice = ""
		model.compose.Reset()
		return model, nil

	case tea.KeyMsg:
		switch model.focus {
		case focusSearch:
			return model.handleSearchKeys(message)
		case focusCompose:
			return model.handleComposeKeys(message)
		default:
			return model.handleListKeys(message)
		}
	}
	return model, nil
}

func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.matches)-1 {
			model.cursor++
		}
	case key.Matches(message, model.keys.Open):
		if model.cursor < len(model.matches) {
			model.openChat(model.matches[model.cursor].Chat.ID)
		}
	case key.Matches(message, model.keys.Search):
		model.focus = focusSearch
		return model, model.search.Focus()
	case key.Matches(message, model.keys.Compose):
		if model.activeChat != "" && model.status.State == session.Authenticated {
			model.focus = focusCompose
			return model, model.compose.Focus()
		}
	}
	return model, nil
}

func (model Model) handleSearchKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		model.search.Reset()
		model.search.Blur()
		model.focus = focusList
		model.refilter()
		return model, nil
	case message.Type == tea.KeyEnter:
		model.search.Blur()
		model.focus = focusList
		return model, nil
	case message.Type == tea.KeyCtrlC:
		return model, tea.Quit
	}
	var command tea.Cmd
	model.search, command = model.search.Update(message)
	model.refilter()
	return model, command
}

func (model Model) handleComposeKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		model.compose.Blur()
		model.focus = focusList
		return model, nil
	case message.Type == tea.KeyCtrlC:
		return model, tea.Quit
	case key.Matches(message, model.keys.Submit):
		text := strings.TrimSpace(model.compose.Value())
		if text == "" || model.sending {
			return model, nil
		}
		model.sending = true
		return model, postMessage(model.bridge.source, model.activeChat, text)
	}
	var command tea.Cmd
	model.compose, command = model.compose.Update(message)
	return model, command
}

func postMessage(source Source, chatID chat.ID, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		defer cancel()
		_, err := source.PostMessage(ctx, chatID, text)
		return postedMsg{chatID: chatID, err: err}
	}
}

func (model *Model) openChat(id chat.ID) {
	if id == model.activeChat {
		return
	}
	model.activeChat = id
	model.messages = nil
	model.messagesErr = nil
	model.bridge.session.Navigate(session.ChatPath(string(id)))
	model.applyMessages(model.bridge.watchChat(id))
}

func (model *Model) applyChats(entry query.Entry) {
	model.chatsStatus = entry.Status
	model.chatsErr = entry.Err
	if collection, ok := query.As[*chat.ChatCollection](entry); ok && collection != nil {
		model.chats = collection.Chats
	} else if entry.Status == query.Idle {
		model.chats = nil
	}
	model.refilter()
}

func (model *Model) applyMessages(entry query.Entry) {
	model.messagesStat = entry.Status
	model.messagesErr = entry.Err
	if collection, ok := query.As[*chat.MessageCollection](entry); ok && collection != nil {
		model.messages = collection.Messages
	} else if entry.Status == query.Idle {
		model.messages = nil
	}
}

// refilter recomputes the visible chat list and keeps the cursor on the
// same chat when it is still visible.
func (model *Model) refilter() {
	var selected chat.ID
	if model.cursor < len(model.matches) {
		selected = model.matches[model.cursor].Chat.ID
	}
	model.matches = chat.MatchChats(model.chats, model.search.Value())
	model.cursor = 0
	for i, match := range model.matches {
		if match.Chat.ID == selected {
			model.cursor = i
			break
		}
	}
}

// View implements tea.Model.
func (model Model) View() string {
	listWidth := max(model.width/3, 16)
	bodyHeight := max(model.height-3, 3)

	list := lipgloss.NewStyle().
		Width(listWidth).
		Height(bodyHeight).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(model.theme.Border).
		Render(model.renderList(listWidth, bodyHeight))

	conversationWidth := max(model.width-listWidth-1, 10)
	conversation := lipgloss.NewStyle().
		Width(conversationWidth).
		Height(bodyHeight).
		PaddingLeft(1).
		Render(model.renderMessages(conversationWidth-1, bodyHeight))

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, conversation)
	return lipgloss.JoinVertical(lipgloss.Left, body, model.renderInput(), model.renderStatus())
}

func (model Model) renderList(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(model.theme.Muted)
	switch {
	case model.status.State == session.Anonymous:
		return muted.Render("not signed in")
	case len(model.chats) == 0 && model.chatsStatus == query.Loading:
		return muted.Render("loading...")
	case model.chatsErr != nil && len(model.chats) == 0:
		return lipgloss.NewStyle().Foreground(model.theme.Error).Render(model.chatsErr.Error())
	case len(model.matches) == 0:
		return muted.Render("no chats")
	}

	highlight := lipgloss.NewStyle().Foreground(model.theme.Highlight).Bold(true)
	rows := make([]string, 0, len(model.matches))
	for i, match := range model.matches {
		if len(rows) >= height {
			break
		}
		name := highlightPositions(match.Chat.Name, match.Positions, highlight)
		if match.Chat.ID == model.activeChat {
			name = "» " + name
		}
		style := lipgloss.NewStyle().Width(width).MaxWidth(width)
		if i == model.cursor {
			style = style.Background(model.theme.Selected).Foreground(model.theme.Accent).Bold(true)
		}
		rows = append(rows, style.Render(ansi.Truncate(name, width, "…")))
	}
	return strings.Join(rows, "\n")
}

func highlightPositions(text string, positions []int, style lipgloss.Style) string {
	if len(positions) == 0 {
		return text
	}
	marked := make(map[int]bool, len(positions))
	for _, position := range positions {
		marked[position] = true
	}
	var builder strings.Builder
	for i, r := range []rune(text) {
		if marked[i] {
			builder.WriteString(style.Render(string(r)))
		} else {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func (model Model) renderMessages(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(model.theme.Muted)
	switch {
	case model.activeChat == "":
		return muted.Render("select a chat")
	case len(model.messages) == 0 && model.messagesStat == query.Loading:
		return muted.Render("loading...")
	case model.messagesErr != nil && len(model.messages) == 0:
		return lipgloss.NewStyle().Foreground(model.theme.Error).Render(model.messagesErr.Error())
	case len(model.messages) == 0:
		return muted.Render("no messages yet")
	}

	author := lipgloss.NewStyle().Foreground(model.theme.Accent).Bold(true)
	messages := model.messages
	if len(messages) > height {
		messages = messages[len(messages)-height:]
	}
	lines := make([]string, len(messages))
	for i, message := range messages {
		stamp := ""
		if !message.CreatedAt.IsZero() {
			stamp = muted.Render(message.CreatedAt.Local().Format("15:04")) + " "
		}
		// Long messages are cut to one line; the full text is in 'pony messages'.
		lines[i] = ansi.Truncate(stamp+author.Render(message.Author())+" "+message.Text, width, "…")
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderInput() string {
	switch model.focus {
	case focusSearch:
		return model.search.View()
	case focusCompose:
		return model.compose.View()
	}
	if model.search.Value() != "" {
		return lipgloss.NewStyle().Foreground(model.theme.Muted).Render("/ " + model.search.Value())
	}
	return ""
}

func (model Model) renderStatus() string {
	muted := lipgloss.NewStyle().Foreground(model.theme.Muted)
	if model.notice != "" {
		return lipgloss.NewStyle().Foreground(model.theme.Error).Render(model.notice)
	}
	who := "anonymous"
	if model.status.State == session.Authenticated {
		who = model.status.Subject
	}
	hint := "j/k move  enter open  / search  i write  q quit"
	if model.sending {
		hint = "sending..."
	}
	return muted.Render(fmt.Sprintf("%s  %s", who, hint))
}

// Run starts the viewer and blocks until the user quits or ctx ends.
func Run(ctx context.Context, source Source, sess Session, initialChat chat.ID) error {
	model := New(source, sess, initialChat)
	defer model.Close()
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
