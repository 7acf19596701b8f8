// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Unify compiles data, unifies it with the schema definition at path and
// validates the result.
func Unify(schema string, data []byte, path string, opts ...Option) (cue.Value, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if int64(len(data)) > o.maxFileSize {
		return cue.Value{}, fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", o.filename, len(data), o.maxFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(schema)
	if err := schemaValue.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", err)
	}
	def := schemaValue.LookupPath(cue.ParsePath(path))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", path, err)
	}

	userValue := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := userValue.Err(); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}

	unified := def.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	return unified, nil
}

// Decode validates data against the schema definition at path and decodes it
// into a T.
func Decode[T any](schema string, data []byte, path string, opts ...Option) (*T, error) {
	unified, err := Unify(schema, data, path, opts...)
	if err != nil {
		return nil, err
	}
	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
