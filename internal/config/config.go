// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/isoload/isoload/internal/cueutil"
	"github.com/isoload/isoload/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "isoload"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. ISOLOAD_LOG_LEVEL.
	EnvPrefix = "ISOLOAD"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the isoload configuration directory under the platform's
// user configuration directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions loads the configuration and returns it with the path of the
// file it came from ("" when only defaults apply).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("repository", defaults.Repository)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("bridge_prefixes", defaults.BridgePrefixes)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("modules", defaults.Modules)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'isoload config show' to see the default configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Give every modules entry a distinct name").
			WithSuggestion("Coordinates have the form 'group:artifact:'").
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, path, nil
}

// findConfigFile returns the explicit file, else config.cue in the config
// directory, else config.cue in the working directory, else "".
func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'isoload config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it over
// the defaults already set on v.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.Unify(configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config.cue unless one exists, and
// returns its path.
func CreateDefaultConfig() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg in the config.cue format.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// isoload configuration\n\n")
	if cfg.Repository != "" {
		fmt.Fprintf(&sb, "repository: %q\n", cfg.Repository)
	}
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	sb.WriteString("bridge_prefixes: [")
	for i, p := range cfg.BridgePrefixes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", p)
	}
	sb.WriteString("]\n")

	fmt.Fprintf(&sb, "\nserver: {\n\taddr: %q\n}\n", cfg.Server.Addr)

	if len(cfg.Modules) > 0 {
		sb.WriteString("\nmodules: [\n")
		for _, m := range cfg.Modules {
			fields := []string{fmt.Sprintf("name: %q", m.Name)}
			if m.Version != "" {
				fields = append(fields, fmt.Sprintf("version: %q", m.Version))
			}
			if m.Coordinate != "" {
				fields = append(fields, fmt.Sprintf("coordinate: %q", m.Coordinate))
			}
			if m.Script {
				fields = append(fields, "script: true")
			}
			if m.ConfigFile != "" {
				fields = append(fields, fmt.Sprintf("config_file: %q", m.ConfigFile))
			}
			fmt.Fprintf(&sb, "\t{%s},\n", strings.Join(fields, ", "))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
