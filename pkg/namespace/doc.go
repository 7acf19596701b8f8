// SPDX-License-Identifier: MPL-2.0

// Package namespace implements isolated symbol and resource resolution over
// an explicit, ordered list of source locations.
//
// A source location is either a zip archive or a directory (a location ending
// in "/"). Symbols are dotted names such as "org.example.lint.Facade"; the
// symbol "a.b.C" is defined by the entry "a/b/C.sym", a small TOML document:
//
//	kind      = "func"
//	signature = "func(org.example.Settings) org.example.Facade"
//
// Resources are slash-separated entry names ("META-INF/isoload/rules.toml").
//
// # Namespaces and policies
//
// [Archives] is the leaf: it scans its own locations only and has no parent.
// [New] composes it with one of three delegation policies:
//   - [PolicyIsolated]: nothing outside the archives is visible.
//   - [PolicyBridged]: a symbol missing from the archives is looked up in the
//     host namespace only when its name carries an allow-listed prefix
//     ([DefaultBridgePrefix] unless configured). Resources never fall back.
//   - [PolicyHostFallback]: every lookup kind falls back to the host when the
//     archives have no answer. Resource enumeration falls back on an empty
//     result and never merges both sides.
//
// Lookups report "not found" through a boolean result rather than an error.
// [Require] converts a miss into a [*SymbolNotFoundError] for callers that
// need one.
package namespace
