// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"reflect"
)

// JSONOutput adds --json to a parameter struct by embedding.
//
//	type listParams struct {
//	    cli.JSONOutput
//	    connectionParams
//	}
//
//	if done, err := params.EmitJSON(os.Stdout, services); done {
//	    return err
//	}
//	// table output
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result to w when --json is set and reports whether
// it did. A false return means the caller renders text instead.
func (j *JSONOutput) EmitJSON(w io.Writer, result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(w, result)
}

// WriteJSON writes value as indented JSON. A nil slice is written as
// [] so that scripts can always iterate the result.
func WriteJSON(w io.Writer, value any) error {
	if v := reflect.ValueOf(value); v.Kind() == reflect.Slice && v.IsNil() {
		value = reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
