// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/lib/netutil"
)

// DefaultBaseURL is the API address used when Config.BaseURL is empty.
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultTimeout bounds a request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the current bearer token. An empty string means
// the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Config configures a Gateway.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string

	// HTTPClient performs requests. Nil selects a client with no
	// client-level timeout; Timeout below governs instead.
	HTTPClient *http.Client

	// Timeout bounds each request. Zero selects DefaultTimeout.
	Timeout time.Duration

	// Tokens supplies the bearer token. Nil means always anonymous.
	Tokens TokenSource

	// Logger receives per-request debug lines. Nil selects slog.Default().
	Logger *slog.Logger

	// Metrics records request counts and latency. May be nil.
	Metrics *Metrics
}

// Request describes one API call.
type Request struct {
	Method string
	// Path starts with "/" and is appended to the base URL.
	Path string
	// Body, when non-nil, is JSON-encoded.
	Body any
	// Form, when non-nil, is sent URL-encoded instead of Body.
	Form url.Values
}

// Gateway sends requests to the API. It is safe for concurrent use.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     TokenSource
	logger     *slog.Logger
	metrics    *Metrics
}

// New validates config and returns a Gateway.
func New(config Config) (*Gateway, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base URL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("gateway: base URL %q must be http or https", config.BaseURL)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Gateway{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: config.HTTPClient,
		timeout:    config.Timeout,
		tokens:     config.Tokens,
		logger:     config.Logger,
		metrics:    config.Metrics,
	}, nil
}

// BaseURL returns the normalized base address.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Send performs request and classifies the outcome. On success the
// payload is the raw JSON body, or nil for an empty body.
func (g *Gateway) Send(ctx context.Context, request Request) (json.RawMessage, error) {
	start := time.Now()
	requestID := uuid.NewString()

	payload, status, err := g.send(ctx, request, requestID)

	kind := Classify(err)
	elapsed := time.Since(start)
	g.metrics.observe(request.Method, kind, elapsed)

	attributes := []any{
		"request_id", requestID,
		"method", request.Method,
		"path", request.Path,
		"status", status,
		"outcome", kind.String(),
		"duration", elapsed,
	}
	if err != nil {
		attributes = append(attributes, "error", err)
	}
	g.logger.Debug("api request", attributes...)

	return payload, err
}

func (g *Gateway) send(ctx context.Context, request Request, requestID string) (json.RawMessage, int, error) {
	transportError := func(err error) *TransportError {
		return &TransportError{Method: request.Method, Path: request.Path, Err: err}
	}

	if !strings.HasPrefix(request.Path, "/") {
		return nil, 0, transportError(fmt.Errorf("path %q must start with /", request.Path))
	}
	if request.Body != nil && request.Form != nil {
		return nil, 0, transportError(errors.New("request has both a JSON body and a form"))
	}

	var (
		bodyReader  io.Reader
		contentType string
	)
	switch {
	case request.Form != nil:
		bodyReader = strings.NewReader(request.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case request.Body != nil:
		encoded, err := json.Marshal(request.Body)
		if err != nil {
			return nil, 0, transportError(fmt.Errorf("encoding request body: %w", err))
		}
		bodyReader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, g.baseURL+request.Path, bodyReader)
	if err != nil {
		return nil, 0, transportError(fmt.Errorf("creating request: %w", err))
	}
	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("Accept-Encoding", netutil.AcceptEncoding)
	httpRequest.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpRequest.Header.Set("Content-Type", contentType)
	}
	var token string
	if g.tokens != nil {
		token = g.tokens.Token()
	}
	if token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := g.httpClient.Do(httpRequest)
	if err != nil {
		return nil, 0, transportError(err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadEncoded(response.Body, response.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, response.StatusCode, transportError(fmt.Errorf("reading response body: %w", err))
	}

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, response.StatusCode, nil
		}
		if !json.Valid(body) {
			return nil, response.StatusCode, transportError(
				fmt.Errorf("malformed JSON response: %s", netutil.Snippet(body, 120)))
		}
		return json.RawMessage(body), response.StatusCode, nil

	case response.StatusCode == http.StatusUnauthorized:
		_, message := parseDetail(response.StatusCode, body)
		return nil, response.StatusCode, &AuthError{
			Path:       request.Path,
			Message:    message,
			Credential: credential.FingerprintToken(token),
		}

	default:
		code, message := parseDetail(response.StatusCode, body)
		return nil, response.StatusCode, &DomainError{
			Status:  response.StatusCode,
			Code:    code,
			Message: message,
			Path:    request.Path,
		}
	}
}

// Decode unmarshals payload into a value of type T. A decode failure is
// reported as a TransportError, since it means the server answered with
// something the client cannot use.
func Decode[T any](method, path string, payload json.RawMessage) (T, error) {
	var value T
	if len(payload) == 0 {
		return value, &TransportError{Method: method, Path: path, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, &TransportError{Method: method, Path: path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return value, nil
}
