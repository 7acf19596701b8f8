// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, cfg.Repository)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"bridge.facade."}, cfg.BridgePrefixes)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Empty(t, cfg.Modules)
}

func TestLoadFromConfigDir(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	want := writeConfig(t, dir, `
log_level: "debug"
bridge_prefixes: ["org.slf4j.", "bridge.facade."]
server: addr: "0.0.0.0:9000"
modules: [
	{name: "lint", version: "1.0.0-RC13", script: true},
	{name: "passthrough", coordinate: "org.example:pass:"},
]
`)

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, want, path)
	assert.Equal(t, LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"org.slf4j.", "bridge.facade."}, cfg.BridgePrefixes)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)

	lint, ok := cfg.Module("lint")
	require.True(t, ok)
	assert.Equal(t, ModuleEntry{Name: "lint", Version: "1.0.0-RC13", Script: true}, lint)
	pass, ok := cfg.Module("passthrough")
	require.True(t, ok)
	assert.Equal(t, "org.example:pass:", pass.Coordinate)
	_, ok = cfg.Module("missing")
	assert.False(t, ok)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	writeConfig(t, dir, `repository: "/srv/artifacts"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, "/srv/artifacts", cfg.Repository)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)

	repo, err := cfg.RepositoryDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/artifacts", repo)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ISOLOAD_LOG_LEVEL", "warn")
	t.Setenv("ISOLOAD_SERVER_ADDR", "127.0.0.1:1")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:1", cfg.Server.Addr)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.cue")
	require.NoError(t, os.WriteFile(path, []byte(`log_level: "error"`), 0o644))

	cfg, got, err := LoadWithPath(context.Background(), LoadOptions{ConfigFilePath: path})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, LogLevelError, cfg.LogLevel)

	_, _, err = LoadWithPath(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(dir, "absent.cue")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax error", `log_level: "debug`},
		{"unknown level", `log_level: "trace"`},
		{"unknown field", `colour: "blue"`},
		{"prefix without dot", `bridge_prefixes: ["org.slf4j"]`},
		{"bad coordinate", `modules: [{name: "lint", coordinate: "io.isoload:lint:1.0"}]`},
		{"nameless module", `modules: [{version: "1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsDuplicateModules(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	writeConfig(t, dir, `modules: [{name: "lint"}, {name: "lint", script: true}]`)

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrInvalidModuleEntry)
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := DefaultConfig()
	cfg.Repository = "/tmp/repo"
	cfg.LogLevel = LogLevelDebug
	cfg.Modules = []ModuleEntry{
		{Name: "lint", Version: "1.0.0-RC14", Script: true, ConfigFile: "lint.toml"},
		{Name: "passthrough", Coordinate: "org.example:pass:"},
	}

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(cfg))

	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "isoload")
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	path, err := CreateDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.cue"), path)

	require.NoError(t, os.WriteFile(path, []byte(`log_level: "warn"`), 0o644))
	again, err := CreateDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, path, again)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `log_level: "warn"`, string(data), "existing config must not be overwritten")
}

func TestConfigDirOverride(t *testing.T) {
	SetConfigDirOverride("/custom/dir")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/dir", dir)
}
