// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("readLimited at limit = %q, %v", data, err)
	}

	if _, err := readLimited(strings.NewReader("123456"), 5); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("readLimited over limit = %v, want ErrResponseTooLarge", err)
	}
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadResponsePropagatesReadErrors(t *testing.T) {
	if _, err := ReadResponse(failReader{}); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("ReadResponse = %v, want read error", err)
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short", input: "not found", max: 20, want: "not found"},
		{name: "collapses whitespace", input: "<html>\n  <body>oops</body>\n</html>", max: 100, want: "<html> <body>oops</body> </html>"},
		{name: "truncates", input: "abcdefghij", max: 4, want: "abcd..."},
		{name: "rune boundary", input: "ééé", max: 3, want: "é..."},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Snippet([]byte(test.input), test.max); got != test.want {
				t.Errorf("Snippet = %q, want %q", got, test.want)
			}
		})
	}
}

func TestReadEncoded(t *testing.T) {
	payload := []byte(`{"chats": []}`)

	var gzipped bytes.Buffer
	writer := gzip.NewWriter(&gzipped)
	writer.Write(payload)
	writer.Close()

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zstdEncoded := encoder.EncodeAll(payload, nil)
	encoder.Close()

	tests := []struct {
		encoding string
		body     []byte
	}{
		{"", payload},
		{"identity", payload},
		{"gzip", gzipped.Bytes()},
		{"zstd", zstdEncoded},
	}
	for _, test := range tests {
		got, err := ReadEncoded(bytes.NewReader(test.body), test.encoding)
		if err != nil {
			t.Errorf("ReadEncoded(%q): %v", test.encoding, err)
			continue
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("ReadEncoded(%q) = %q", test.encoding, got)
		}
	}

	if _, err := ReadEncoded(bytes.NewReader(payload), "br"); err == nil {
		t.Error("unsupported encoding accepted")
	}
	if _, err := ReadEncoded(bytes.NewReader(payload), "gzip"); err == nil {
		t.Error("plain body accepted as gzip")
	}
}

func TestReadEncodedLimitsDecompressedSize(t *testing.T) {
	var gzipped bytes.Buffer
	writer := gzip.NewWriter(&gzipped)
	writer.Write(make([]byte, MaxResponseSize+1))
	writer.Close()

	if _, err := ReadEncoded(&gzipped, "gzip"); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("ReadEncoded of an oversized body = %v, want ErrResponseTooLarge", err)
	}
}
