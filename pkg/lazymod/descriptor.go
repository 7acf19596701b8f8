// SPDX-License-Identifier: MPL-2.0

package lazymod

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
)

type (
	// Config selects module behavior. It is part of module identity.
	Config = adapter.Config

	// Descriptor identifies a module. Two modules with equal descriptors are
	// interchangeable. Descriptor is comparable and may be used as a map key.
	Descriptor struct {
		Name       string              `json:"name"`
		Version    string              `json:"version"`
		Coordinate artifact.Coordinate `json:"coordinate"`
		Config     Config              `json:"config"`
	}
)

// Equal reports whether d and other identify the same module.
func (d Descriptor) Equal(other Descriptor) bool { return d == other }

// Key returns a stable hex digest of d, suitable as an external cache key.
// Equal descriptors have equal keys.
func (d Descriptor) Key() string {
	// Marshaling a struct of strings and bools cannot fail; field order is fixed.
	data, _ := json.Marshal(d)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// String renders d as "name version (coordinate:version[, script][, config=file])".
func (d Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s", d.Name, d.Version, d.Coordinate.WithVersion(d.Version))
	if d.Config.Script {
		b.WriteString(", script")
	}
	if d.Config.ConfigFile != "" {
		fmt.Fprintf(&b, ", config=%s", d.Config.ConfigFile)
	}
	b.WriteString(")")
	return b.String()
}
