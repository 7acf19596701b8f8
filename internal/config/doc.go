// SPDX-License-Identifier: MPL-2.0

// Package config loads isoload's configuration using Viper with CUE as the
// file format.
//
// The file is config.cue in the user configuration directory (for example
// ~/.config/isoload/config.cue), or the path given with --config. It is
// validated against the embedded config_schema.cue before being merged over
// the defaults. Environment variables prefixed with ISOLOAD_ override file
// values; ISOLOAD_REPOSITORY overrides the artifact repository.
package config
