// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/query"
	"github.com/AndyO2/pony-express/session"
)

// Source is the data the viewer reads and writes. *chat.Client
// satisfies it.
type Source interface {
	Chats(listener query.Listener) (query.Entry, func())
	Messages(id chat.ID, listener query.Listener) (query.Entry, func())
	PostMessage(ctx context.Context, chatID chat.ID, text string) (*chat.PostResult, error)
}

// Session reports sign-in changes. *session.Machine satisfies it.
type Session interface {
	Status() session.Status
	Subscribe(listener func(session.Status)) (unsubscribe func())
	Navigate(path string) session.Route
}

type chatsMsg struct{ entry query.Entry }

type messagesMsg struct {
	chatID chat.ID
	entry  query.Entry
}

type sessionMsg struct{ status session.Status }

type postedMsg struct {
	chatID chat.ID
	err    error
}

// bridge forwards cache and session notifications, which arrive on
// arbitrary goroutines, onto a channel the event loop drains.
type bridge struct {
	source  Source
	session Session
	events  chan tea.Msg
	done    chan struct{}

	mu                  sync.Mutex
	closed              bool
	unsubscribeChats    func()
	unsubscribeMessages func()
	unsubscribeSession  func()
}

func newBridge(source Source, session Session) *bridge {
	return &bridge{
		source:  source,
		session: session,
		events:  make(chan tea.Msg, 64),
		done:    make(chan struct{}),
	}
}

// start subscribes to the chat list and the session. The returned
// snapshots are current as of the call; later changes arrive as events.
func (b *bridge) start() (query.Entry, session.Status) {
	entry, unsubscribeChats := b.source.Chats(func(entry query.Entry) {
		b.send(chatsMsg{entry: entry})
	})
	unsubscribeSession := b.session.Subscribe(func(status session.Status) {
		b.send(sessionMsg{status: status})
	})
	b.mu.Lock()
	b.unsubscribeChats = unsubscribeChats
	b.unsubscribeSession = unsubscribeSession
	b.mu.Unlock()
	return entry, b.session.Status()
}

// watchChat moves the messages subscription to id and returns its
// current snapshot.
func (b *bridge) watchChat(id chat.ID) query.Entry {
	entry, unsubscribe := b.source.Messages(id, func(entry query.Entry) {
		b.send(messagesMsg{chatID: id, entry: entry})
	})
	b.mu.Lock()
	previous := b.unsubscribeMessages
	b.unsubscribeMessages = unsubscribe
	b.mu.Unlock()
	if previous != nil {
		previous()
	}
	return entry
}

func (b *bridge) send(message tea.Msg) {
	select {
	case b.events <- message:
	case <-b.done:
	}
}

func (b *bridge) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsubscribes := []func(){b.unsubscribeMessages, b.unsubscribeChats, b.unsubscribeSession}
	b.mu.Unlock()

	close(b.done)
	for _, unsubscribe := range unsubscribes {
		if unsubscribe != nil {
			unsubscribe()
		}
	}
}

// listenForSourceEvent blocks until the bridge delivers an event.
func listenForSourceEvent(b *bridge) tea.Cmd {
	return func() tea.Msg {
		select {
		case message := <-b.events:
			return message
		case <-b.done:
			return nil
		}
	}
}
