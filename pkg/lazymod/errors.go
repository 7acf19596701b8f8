// SPDX-License-Identifier: MPL-2.0

package lazymod

import (
	"errors"
	"fmt"
)

const (
	// StageResolve is the artifact resolution stage.
	StageResolve Stage = "resolve"
	// StageNamespace is the namespace construction stage.
	StageNamespace Stage = "namespace"
	// StageWire is the entry-point binding and construction stage.
	StageWire Stage = "wire"
	// StageConfigure is the settings stage between binding and construction.
	StageConfigure Stage = "configure"
)

var (
	// ErrMissingVersion is returned by New when no version is given.
	ErrMissingVersion = errors.New("module version is required")
	// ErrMissingResolver is returned by New when no artifact resolver is given.
	ErrMissingResolver = errors.New("artifact resolver is required")
	// ErrClosed is returned by a closed Module and by the Func it produced.
	ErrClosed = errors.New("module closed")
)

type (
	// Stage names the materialization step that failed.
	Stage string

	// MaterializeError reports a failed first use of a Module. It is stored and
	// returned to every later caller.
	MaterializeError struct {
		Descriptor Descriptor
		Stage      Stage
		Cause      error
	}
)

// Error implements the error interface for MaterializeError.
func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materializing module %s: %s: %v", e.Descriptor, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *MaterializeError) Unwrap() error { return e.Cause }
