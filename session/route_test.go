// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "testing"

func TestResolveAuthenticatedTree(t *testing.T) {
	tests := []struct {
		path     string
		wantPath string
		wantView View
		wantChat string
	}{
		{path: "/", wantPath: "/", wantView: ViewChats},
		{path: "", wantPath: "/", wantView: ViewChats},
		{path: "/chats", wantPath: "/chats", wantView: ViewChats},
		{path: "/chats/", wantPath: "/chats", wantView: ViewChats},
		{path: "/chats/42", wantPath: "/chats/42", wantView: ViewChat, wantChat: "42"},
		{path: "/chats/42?tab=info", wantPath: "/chats/42", wantView: ViewChat, wantChat: "42"},
		{path: "/chats/a%20b", wantPath: "/chats/a%20b", wantView: ViewChat, wantChat: "a b"},
		{path: "/profile", wantPath: "/profile", wantView: ViewProfile},
		{path: "/error/404", wantPath: "/error/404", wantView: ViewNotFound},
		{path: "/login", wantPath: "/", wantView: ViewChats},
		{path: "/register", wantPath: "/", wantView: ViewChats},
		{path: "/chats/42/extra", wantPath: "/error/404", wantView: ViewNotFound},
		{path: "/settings", wantPath: "/error/404", wantView: ViewNotFound},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			route := resolve(Authenticated, test.path)
			if route.Path != test.wantPath || route.View != test.wantView || route.ChatID != test.wantChat {
				t.Errorf("resolve(%q) = %+v, want path %q view %q chat %q",
					test.path, route, test.wantPath, test.wantView, test.wantChat)
			}
		})
	}
}

func TestResolveAnonymousTree(t *testing.T) {
	tests := []struct {
		path     string
		wantPath string
		wantView View
	}{
		{path: "/", wantPath: "/", wantView: ViewHome},
		{path: "/login", wantPath: "/login", wantView: ViewLogin},
		{path: "/register/", wantPath: "/register", wantView: ViewRegister},
		{path: "/chats", wantPath: "/login", wantView: ViewLogin},
		{path: "/chats/42", wantPath: "/login", wantView: ViewLogin},
		{path: "/profile", wantPath: "/login", wantView: ViewLogin},
		{path: "/error/404", wantPath: "/login", wantView: ViewLogin},
		{path: "/anything", wantPath: "/login", wantView: ViewLogin},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			route := resolve(Anonymous, test.path)
			if route.Path != test.wantPath || route.View != test.wantView {
				t.Errorf("resolve(%q) = %+v, want path %q view %q", test.path, route, test.wantPath, test.wantView)
			}
			if route.ChatID != "" {
				t.Errorf("anonymous route carries chat id %q", route.ChatID)
			}
		})
	}
}

func TestRouteRedirected(t *testing.T) {
	if resolve(Anonymous, "/login").Redirected() {
		t.Error("/login reported as redirected for anonymous")
	}
	if !resolve(Anonymous, "/chats").Redirected() {
		t.Error("/chats not reported as redirected for anonymous")
	}
}

func TestChatPath(t *testing.T) {
	if got := ChatPath("42"); got != "/chats/42" {
		t.Errorf("ChatPath(42) = %q", got)
	}
	route := resolve(Authenticated, ChatPath("a/b"))
	if route.View != ViewChat || route.ChatID != "a/b" {
		t.Errorf("escaped chat id round trip = %+v", route)
	}
}

func TestRedirectTargetsResolveDirectly(t *testing.T) {
	for _, state := range []State{Anonymous, Authenticated} {
		for _, path := range []string{"/", "/login", "/register", "/chats", "/chats/7", "/profile", "/error/404", "/nowhere"} {
			first := resolveOnce(state, normalizePath(path))
			if first.redirect == "" {
				continue
			}
			if target := resolveOnce(state, first.redirect); target.redirect != "" {
				t.Errorf("%v: %q redirects to %q, which redirects again to %q",
					state, path, first.redirect, target.redirect)
			}
		}
	}
}
