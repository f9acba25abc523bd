// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"net/url"

	"github.com/AndyO2/pony-express/query"
)

const (
	chatsResource    = "chats"
	messagesResource = "chat-messages"
	meResource       = "me"
)

// ChatsKey addresses the chat list. As a prefix it also covers every
// ChatKey.
func ChatsKey() query.Key { return query.Key{chatsResource} }

// ChatKey addresses a single chat.
func ChatKey(id ID) query.Key { return query.Key{chatsResource, string(id)} }

// MessagesKey addresses the messages of a chat.
func MessagesKey(id ID) query.Key { return query.Key{messagesResource, string(id)} }

// MeKey addresses the signed-in user's profile.
func MeKey() query.Key { return query.Key{meResource} }

// ScopedKeys returns the prefixes of every resource that belongs to the
// signed-in identity.
func ScopedKeys() []query.Key {
	return []query.Key{
		{chatsResource},
		{messagesResource},
		{meResource},
	}
}

func chatPath(id ID) string {
	return "/chats/" + url.PathEscape(string(id))
}
