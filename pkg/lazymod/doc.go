// SPDX-License-Identifier: MPL-2.0

// Package lazymod defers the resolution of a module until its first use.
//
// A Module is identified by a Descriptor: module name, version, artifact
// coordinate and Config. Creating a Module performs no I/O. The first call to
// Materialize resolves the artifact, builds a namespace with the module's
// delegation policy, wires the entry points and returns a Func. Every later
// call, concurrent or not, receives the same Func or the same error; a failed
// materialization is not retried.
//
// A Pool shares one Module among equal Descriptors so that an artifact is
// resolved at most once per process.
package lazymod
