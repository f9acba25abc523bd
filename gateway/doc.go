// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the single choke point for HTTP traffic to the
// Pony Express API.
//
// [Gateway.Send] attaches the bearer token when one exists, bounds every
// request with a timeout, and classifies the outcome into exactly one of:
//
//   - success: a 2xx response with a JSON (or empty) body
//   - [*TransportError]: the request never produced a usable response
//     (connection failure, timeout, unreadable or malformed body)
//   - [*AuthError]: HTTP 401, the credential is missing or rejected
//   - [*DomainError]: any other non-2xx status, with the server's
//     FastAPI "detail" rendered into a human-readable message
//
// The gateway never retries. Callers that want to react to a class of
// failure use [Classify] or the Is helpers rather than inspecting status
// codes.
package gateway
