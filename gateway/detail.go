// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// parseDetail extracts a code and message from a FastAPI error body. The
// server uses several shapes for "detail":
//
//	{"detail": "Not authenticated"}
//	{"detail": {"error": "invalid_client", "error_description": "invalid username or password"}}
//	{"detail": {"type": "entity_not_found", "entity_name": "Chat", "entity_id": "7"}}
//	{"detail": [{"loc": ["body", "username"], "msg": "field required", "type": "value_error.missing"}]}
//
// Anything unrecognised falls back to the HTTP status text.
func parseDetail(status int, body []byte) (code, message string) {
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = fmt.Sprintf("HTTP %d", status)
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return "", fallback
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		if text == "" {
			return "", fallback
		}
		return "", text
	}

	var object struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Type             string `json:"type"`
		EntityName       string `json:"entity_name"`
		EntityID         any    `json:"entity_id"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Detail, &object); err == nil {
		switch {
		case object.ErrorDescription != "":
			return object.Error, object.ErrorDescription
		case object.Type == "entity_not_found" && object.EntityName != "":
			return object.Type, fmt.Sprintf("%s with id %v not found", object.EntityName, object.EntityID)
		case object.Message != "":
			return object.Type, object.Message
		case object.Error != "":
			return object.Error, object.Error
		case object.Type != "":
			return object.Type, fallback
		}
		return "", fallback
	}

	var validation []struct {
		Location []any  `json:"loc"`
		Message  string `json:"msg"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal(envelope.Detail, &validation); err == nil && len(validation) > 0 {
		parts := make([]string, 0, len(validation))
		for _, item := range validation {
			location := make([]string, 0, len(item.Location))
			for _, element := range item.Location {
				location = append(location, fmt.Sprint(element))
			}
			if len(location) > 0 {
				parts = append(parts, strings.Join(location, ".")+": "+item.Message)
			} else {
				parts = append(parts, item.Message)
			}
		}
		return validation[0].Type, strings.Join(parts, "; ")
	}

	return "", fallback
}
