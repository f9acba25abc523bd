// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"net/url"
	"strings"
)

// View names a screen of the client.
type View string

const (
	ViewHome     View = "home"
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewChats    View = "chats"
	ViewChat     View = "chat"
	ViewProfile  View = "profile"
	ViewNotFound View = "not-found"
)

// Well-known paths.
const (
	PathRoot     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathChats    = "/chats"
	PathProfile  = "/profile"
	PathNotFound = "/error/404"
)

// ChatPath returns the path of a single chat.
func ChatPath(chatID string) string {
	return PathChats + "/" + url.PathEscape(chatID)
}

// Route is the outcome of resolving a path.
type Route struct {
	// Requested is the path that was asked for, normalized.
	Requested string
	// Path is where the client ends up after redirects.
	Path string
	View View
	// ChatID is set for ViewChat.
	ChatID string
}

// Redirected reports whether Path differs from Requested.
func (r Route) Redirected() bool { return r.Requested != r.Path }

// maxRedirects bounds how many redirects resolve follows. Neither tree
// chains redirects: every redirect target resolves to a view directly.
const maxRedirects = 4

// resolve maps path to a route in the tree for state, following up to
// maxRedirects redirects.
func resolve(state State, path string) Route {
	requested := normalizePath(path)
	route := resolveOnce(state, requested)
	for hop := 0; route.redirect != "" && hop < maxRedirects; hop++ {
		route = resolveOnce(state, route.redirect)
	}
	return Route{
		Requested: requested,
		Path:      route.path,
		View:      route.view,
		ChatID:    route.chatID,
	}
}

type hop struct {
	path     string
	view     View
	chatID   string
	redirect string
}

func resolveOnce(state State, path string) hop {
	if state == Authenticated {
		switch path {
		case PathRoot, PathChats:
			return hop{path: path, view: ViewChats}
		case PathProfile:
			return hop{path: path, view: ViewProfile}
		case PathNotFound:
			return hop{path: path, view: ViewNotFound}
		case PathLogin, PathRegister:
			return hop{redirect: PathRoot}
		}
		if rest, ok := strings.CutPrefix(path, PathChats+"/"); ok && rest != "" && !strings.Contains(rest, "/") {
			chatID, err := url.PathUnescape(rest)
			if err == nil && chatID != "" {
				return hop{path: path, view: ViewChat, chatID: chatID}
			}
		}
		return hop{redirect: PathNotFound}
	}

	switch path {
	case PathRoot:
		return hop{path: path, view: ViewHome}
	case PathLogin:
		return hop{path: path, view: ViewLogin}
	case PathRegister:
		return hop{path: path, view: ViewRegister}
	}
	return hop{redirect: PathLogin}
}

// normalizePath drops any query or fragment and trailing slashes, and
// guarantees a leading slash.
func normalizePath(path string) string {
	if index := strings.IndexAny(path, "?#"); index >= 0 {
		path = path[:index]
	}
	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
