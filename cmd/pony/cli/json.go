// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
)

// JSONOutput adds a --json flag to a parameter struct by embedding.
//
//	type chatsParams struct {
//	    cli.JSONOutput
//	    Search string `flag:"search,s" desc:"fuzzy filter on chat names"`
//	}
//
//	if done, err := params.EmitJSON(chats); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`

	// Writer receives JSON output. Nil selects os.Stdout.
	Writer io.Writer `json:"-"`
}

// EmitJSON writes result as indented JSON when --json is set. It returns
// false when the caller should print text instead. A nil slice is
// written as [].
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	writer := j.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return true, WriteJSON(writer, normalizeNilSlice(result))
}

// WriteJSON writes value to w as indented JSON.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
