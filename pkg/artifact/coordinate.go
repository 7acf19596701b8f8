// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCoordinate is the sentinel error wrapped by InvalidCoordinateError.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

type (
	// Coordinate is a version-less artifact prefix of the form "group:artifact:".
	Coordinate string

	// InvalidCoordinateError is returned when a Coordinate value is malformed.
	// It wraps ErrInvalidCoordinate for errors.Is() compatibility.
	InvalidCoordinateError struct {
		Value  Coordinate
		Reason string
	}
)

// String returns the string representation of the Coordinate.
func (c Coordinate) String() string { return string(c) }

// IsValid returns whether the Coordinate has a non-empty group and artifact and
// ends with the version separator.
func (c Coordinate) IsValid() (bool, []error) {
	s := string(c)
	if !strings.HasSuffix(s, ":") {
		return false, []error{&InvalidCoordinateError{Value: c, Reason: "must end with ':'"}}
	}
	parts := strings.Split(strings.TrimSuffix(s, ":"), ":")
	if len(parts) != 2 {
		return false, []error{&InvalidCoordinateError{Value: c, Reason: "must have the form group:artifact:"}}
	}
	var errs []error
	if strings.TrimSpace(parts[0]) == "" {
		errs = append(errs, &InvalidCoordinateError{Value: c, Reason: "group must not be empty"})
	}
	if strings.TrimSpace(parts[1]) == "" {
		errs = append(errs, &InvalidCoordinateError{Value: c, Reason: "artifact must not be empty"})
	}
	if strings.ContainsAny(s, `/\`) {
		errs = append(errs, &InvalidCoordinateError{Value: c, Reason: "must not contain path separators"})
	}
	return len(errs) == 0, errs
}

// Group returns the group segment ("org.example").
func (c Coordinate) Group() string {
	group, _, _ := strings.Cut(string(c), ":")
	return group
}

// Artifact returns the artifact segment ("lint").
func (c Coordinate) Artifact() string {
	_, rest, _ := strings.Cut(string(c), ":")
	return strings.TrimSuffix(rest, ":")
}

// WithVersion appends version, producing the full artifact identity.
func (c Coordinate) WithVersion(version string) string {
	return string(c) + version
}

// Error implements the error interface for InvalidCoordinateError.
func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidCoordinate for errors.Is() compatibility.
func (e *InvalidCoordinateError) Unwrap() error { return ErrInvalidCoordinate }
