// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/isoload/isoload/internal/cueutil"
)

// lintConfigSchema constrains CUE lint configuration files.
const lintConfigSchema = `
#LintConfig: {
	disabled?:        [...string]
	max_line_length?: int & >=0
}
`

// LintConfig is the external configuration file of the lint module.
type LintConfig struct {
	// Disabled lists rule ids that are not applied.
	Disabled []string `toml:"disabled" yaml:"disabled" json:"disabled"`
	// MaxLineLength enables the line length check when positive.
	MaxLineLength int `toml:"max_line_length" yaml:"max_line_length" json:"max_line_length"`
}

// LoadLintConfig reads a lint configuration file. The format is chosen by
// extension: .toml, .cue, .yaml or .yml. Any other extension fails with an
// *UnsupportedError.
func LoadLintConfig(path string) (*LintConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".cue", ".yaml", ".yml":
	default:
		return nil, &UnsupportedError{Module: LintName, Feature: fmt.Sprintf("configuration file format %q", ext)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lint config: %w", err)
	}

	var lc LintConfig
	switch ext {
	case ".toml":
		err = toml.Unmarshal(data, &lc)
	case ".cue":
		err = decodeCUELintConfig(data, path, &lc)
	default:
		err = yaml.Unmarshal(data, &lc)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid lint config %s: %w", path, err)
	}
	if lc.MaxLineLength < 0 {
		return nil, fmt.Errorf("invalid lint config %s: max_line_length must not be negative", path)
	}
	return &lc, nil
}

func decodeCUELintConfig(data []byte, path string, lc *LintConfig) error {
	decoded, err := cueutil.Decode[LintConfig](lintConfigSchema, data, "#LintConfig", cueutil.WithFilename(path))
	if err != nil {
		return err
	}
	*lc = *decoded
	return nil
}
