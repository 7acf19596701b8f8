// SPDX-License-Identifier: MPL-2.0

// Package server exposes a warm pool of materialized modules over HTTP.
//
// Modules are materialized on their first request and stay warm for later
// ones. When the server is given the artifact repository it serves from, a
// change below a module's version directory evicts that module from the pool.
package server
