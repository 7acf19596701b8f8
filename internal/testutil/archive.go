// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// Entries maps archive entry names to their contents.
type Entries map[string]string

// WriteArchive writes a zip archive named name inside dir and returns its path.
// Entries are written in sorted order so archives are reproducible.
func WriteArchive(t testing.TB, dir, name string, entries Entries) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive %s: %v", path, err)
	}

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("failed to add %s to %s: %v", n, path, err)
		}
		if _, err := w.Write([]byte(entries[n])); err != nil {
			t.Fatalf("failed to write %s to %s: %v", n, path, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive %s: %v", path, err)
	}
	MustClose(t, f)
	return path
}

// WriteTree writes entries as plain files below a fresh directory inside dir and
// returns the directory as a source location (with a trailing slash).
func WriteTree(t testing.TB, dir, name string, entries Entries) string {
	t.Helper()

	root := filepath.Join(dir, name)
	for n, content := range entries {
		path := filepath.Join(root, filepath.FromSlash(n))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", root, err)
	}
	return root + "/"
}

// Symbol returns the entry name and TOML body defining a symbol.
func Symbol(name, kind, signature string) (string, string) {
	entry := strings.ReplaceAll(name, ".", "/") + ".sym"
	var b strings.Builder
	b.WriteString("kind = \"" + kind + "\"\n")
	if signature != "" {
		b.WriteString("signature = \"" + signature + "\"\n")
	}
	return entry, b.String()
}

// Add records a symbol definition in e and returns e for chaining.
func (e Entries) Add(name, kind, signature string) Entries {
	entry, body := Symbol(name, kind, signature)
	e[entry] = body
	return e
}
