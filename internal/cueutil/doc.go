// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user CUE files against embedded schemas.
//
// Every CUE document isoload reads (the application config and lint module
// configuration files) goes through the same steps: compile the schema,
// compile the document, unify it with a schema definition, validate and
// decode. Errors carry the document name and the JSON-style path of the
// offending field.
//
//	lc, err := cueutil.Decode[LintConfig](schema, data, "#LintConfig",
//	    cueutil.WithFilename(path))
package cueutil
