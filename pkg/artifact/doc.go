// SPDX-License-Identifier: MPL-2.0

// Package artifact resolves a module coordinate and version to the ordered list
// of local archives that make up the module.
//
// A [Coordinate] is the version-less prefix "group:artifact:"; appending a
// version yields the full artifact identity ("org.example:lint:1.0.0").
//
// [Repository] is the file-based resolver used by the CLI. Its layout mirrors
// a Maven-style repository:
//
//	<root>/<group as path>/<artifact>/<version>/<artifact>-<version>.zip
//	<root>/<group as path>/<artifact>/<version>/<artifact>-<version>.deps.toml (optional)
//
// The optional deps file lists further archives, relative to the version
// directory, that are appended after the main archive:
//
//	archives = ["lib/rules-core.zip", "lib/rules-extra.zip"]
//
// The list is flat; archives listed there are not themselves expanded.
package artifact
