// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat binds the generic core to the Pony Express API.
//
// It defines the query keys for each resource ([ChatsKey], [ChatKey],
// [MessagesKey], [MeKey]), the typed fetchers behind them, and the
// operations a user performs: logging in, registering, posting a
// message. Every key is identity scoped; [ScopedKeys] is the list the
// session machine gates and resets.
//
// Posting a message goes through the mutation coordinator so that the
// conversation and the chat list are invalidated before the client
// navigates to the conversation.
package chat
