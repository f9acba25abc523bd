// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewer is the interactive terminal client behind "pony view".
//
// The left pane lists chats (with fzf-style filtering), the right pane
// shows the open conversation, and a compose line posts messages. The
// model never fetches anything itself: it subscribes to the query cache
// through the chat client, and a bridge forwards cache and session
// notifications into the bubbletea event loop.
package viewer
