// SPDX-License-Identifier: MPL-2.0

// Package adapter defines the shape every dynamically resolved module follows
// and the builtin modules shipped with isoload.
//
// A module is consumed in three steps:
//
//  1. Bind verifies that the module's entry-point symbols exist in the
//     resolution namespace with the declared kinds and signatures.
//  2. Configure builds the module's processing settings, possibly reading
//     resources and an external configuration file.
//  3. Construct returns a Runner that transforms input text and reports
//     diagnostics through a Reporter callback.
//
// Behavior is provided by statically linked Go code registered by module name
// in a Registry; the archive only has to declare the symbols the adapter
// expects. A missing or mismatched entry point is a *WiringError, and a
// configuration the module cannot honor is an *UnsupportedError.
package adapter
