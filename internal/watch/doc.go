// SPDX-License-Identifier: MPL-2.0

// Package watch reports debounced filesystem changes below a directory.
//
// The serve command uses it on the artifact repository so that pooled
// modules whose archives were reinstalled are evicted and materialize again
// on their next request.
package watch
