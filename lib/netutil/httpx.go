// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds and decodes HTTP response reads for the API
// gateway.
//
// Every response body the client reads goes through [ReadResponse] or
// [ReadEncoded], so a misbehaving server cannot make the client allocate
// without limit, even through a compressed body. Chat API payloads are
// small; the bound is generous enough that a legitimate response never
// reaches it.
package netutil

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is the Accept-Encoding value for requests whose
// responses are read with ReadEncoded.
const AcceptEncoding = "zstd, gzip"

// MaxResponseSize is the largest response body ReadResponse accepts: 8 MiB.
const MaxResponseSize int64 = 8 << 20

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// ReadResponse reads body up to MaxResponseSize bytes. A longer body is
// an error rather than a silent truncation, since truncated JSON would
// fail to decode with a misleading message.
func ReadResponse(body io.Reader) ([]byte, error) {
	return readLimited(body, MaxResponseSize)
}

// ReadEncoded decompresses body according to its Content-Encoding and
// reads the result up to MaxResponseSize bytes. The limit applies to the
// decompressed size.
func ReadEncoded(body io.Reader, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return ReadResponse(body)
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer reader.Close()
		return ReadResponse(reader)
	case "zstd":
		decoder, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("opening zstd body: %w", err)
		}
		defer decoder.Close()
		return ReadResponse(decoder)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}

func readLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// Snippet returns at most maxBytes of data as a single-line string for
// diagnostics, cut on a rune boundary.
func Snippet(data []byte, maxBytes int) string {
	text := strings.Join(strings.Fields(string(data)), " ")
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
