// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides environment and cleanup helpers (MustSetenv, SetHomeDir, MustClose),
// it builds archive fixtures: WriteArchive writes a zip with the given
// entries, and Symbol renders a symbol definition entry.
package testutil
