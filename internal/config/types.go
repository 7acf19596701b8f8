// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/namespace"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultServerAddr is the listen address of 'isoload serve'.
	DefaultServerAddr = "127.0.0.1:8787"
)

var (
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidModuleEntry is the sentinel error wrapped by InvalidModuleEntryError.
	ErrInvalidModuleEntry = errors.New("invalid module entry")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ModuleEntry holds defaults for one module.
	ModuleEntry struct {
		Name       string `json:"name" mapstructure:"name"`
		Version    string `json:"version,omitempty" mapstructure:"version"`
		Coordinate string `json:"coordinate,omitempty" mapstructure:"coordinate"`
		Script     bool   `json:"script,omitempty" mapstructure:"script"`
		ConfigFile string `json:"config_file,omitempty" mapstructure:"config_file"`
	}

	// InvalidModuleEntryError reports a malformed modules entry.
	InvalidModuleEntryError struct {
		Index  int
		Name   string
		Reason string
	}

	// ServerConfig configures 'isoload serve'.
	ServerConfig struct {
		Addr string `json:"addr" mapstructure:"addr"`
	}

	// Config holds the application configuration.
	Config struct {
		// Repository is the artifact repository root; empty selects the default.
		Repository string `json:"repository" mapstructure:"repository"`
		// LogLevel is the CLI log level.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// BridgePrefixes replaces the symbol allow-list of bridged modules.
		BridgePrefixes []string `json:"bridge_prefixes" mapstructure:"bridge_prefixes"`
		// Server configures the HTTP server.
		Server ServerConfig `json:"server" mapstructure:"server"`
		// Modules holds per-module defaults.
		Modules []ModuleEntry `json:"modules" mapstructure:"modules"`
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       LogLevelInfo,
		BridgePrefixes: []string{namespace.DefaultBridgePrefix},
		Server:         ServerConfig{Addr: DefaultServerAddr},
		Modules:        []ModuleEntry{},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts l to a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	if lvl, err := log.ParseLevel(string(l)); err == nil {
		return lvl
	}
	return log.InfoLevel
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface for InvalidModuleEntryError.
func (e *InvalidModuleEntryError) Error() string {
	return fmt.Sprintf("modules[%d] (%s): %s", e.Index, e.Name, e.Reason)
}

// Unwrap returns ErrInvalidModuleEntry for errors.Is() compatibility.
func (e *InvalidModuleEntryError) Unwrap() error { return ErrInvalidModuleEntry }

// IsValid checks the constraints CUE cannot express: module names are unique
// and coordinates parse.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, fieldErrs := c.LogLevel.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	seen := make(map[string]int)
	for i, m := range c.Modules {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, &InvalidModuleEntryError{Index: i, Reason: "name is required"})
			continue
		}
		if first, dup := seen[m.Name]; dup {
			errs = append(errs, &InvalidModuleEntryError{Index: i, Name: m.Name, Reason: fmt.Sprintf("duplicate of modules[%d]", first)})
			continue
		}
		seen[m.Name] = i
		if m.Coordinate != "" {
			if ok, cerrs := artifact.Coordinate(m.Coordinate).IsValid(); !ok {
				errs = append(errs, &InvalidModuleEntryError{Index: i, Name: m.Name, Reason: cerrs[0].Error()})
			}
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Module returns the defaults configured for name.
func (c *Config) Module(name string) (ModuleEntry, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleEntry{}, false
}

// RepositoryDir returns the configured repository, or the default one.
func (c *Config) RepositoryDir() (string, error) {
	if c.Repository != "" {
		return c.Repository, nil
	}
	return artifact.GetDefaultRepositoryDir()
}
