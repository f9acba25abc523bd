// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is a resource identifier. The API has used both JSON strings and
// JSON numbers for identifiers; ID accepts either and always encodes as
// a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*id = ID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("chat: identifier must be a string or number, got %s", data)
	}
	*id = ID(number.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Timestamp decodes the server's datetimes, which may omit the zone
// (naive UTC) or carry one.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	text, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("chat: timestamp must be a string, got %s", data)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("chat: unrecognised timestamp %q", text)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Meta accompanies every collection.
type Meta struct {
	Count int `json:"count"`
}

// User is an account.
type User struct {
	ID        ID        `json:"id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Chat is a conversation.
type Chat struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	UserIDs   []ID      `json:"user_ids,omitempty"`
	OwnerID   ID        `json:"owner_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Message is one entry in a conversation.
type Message struct {
	ID        ID        `json:"id"`
	ChatID    ID        `json:"chat_id,omitempty"`
	UserID    ID        `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`
	User      *User     `json:"user,omitempty"`
}

// Author returns the best available display name for the sender.
func (m Message) Author() string {
	if m.User != nil && m.User.Username != "" {
		return m.User.Username
	}
	return string(m.UserID)
}

// ChatCollection is the body of GET /chats.
type ChatCollection struct {
	Meta  Meta   `json:"meta"`
	Chats []Chat `json:"chats"`
}

// MessageCollection is the body of GET /chats/{id}/messages.
type MessageCollection struct {
	Meta     Meta      `json:"meta"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Chat Chat `json:"chat"`
}

type userResponse struct {
	User User `json:"user"`
}

// PostResult is the body of POST /chats/{id}/messages. Either field may
// be absent depending on the server version.
type PostResult struct {
	Message *Message `json:"message,omitempty"`
	Chat    *Chat    `json:"chat,omitempty"`
}

// tokenResponse accepts both the native {token, subject} shape and the
// OAuth2 {access_token, token_type} shape.
type tokenResponse struct {
	Token       string `json:"token"`
	Subject     string `json:"subject"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Registration is the body of POST /auth/registration.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
