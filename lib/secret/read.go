// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ReadPassword prompts on stderr and reads a line without echo when
// input is a terminal. Otherwise it reads the first line of input, which
// supports piping a password through --password-stdin.
func ReadPassword(input *os.File, prompt string) (*Buffer, error) {
	fd := int(input.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return fromLine(data)
	}
	return ReadLine(input)
}

// ReadLine reads the first line of reader into a Buffer, trimming
// surrounding whitespace.
func ReadLine(reader io.Reader) (*Buffer, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading secret: %w", err)
		}
		return nil, errors.New("secret input is empty")
	}
	return fromLine(scanner.Bytes())
}

func fromLine(data []byte) (*Buffer, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, errors.New("secret input is empty")
	}
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
