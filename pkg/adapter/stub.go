// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"archive/zip"
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/isoload/isoload/pkg/namespace"
)

// StubResourcer is implemented by adapters whose stub artifacts carry
// resources in addition to entry-point symbols.
type StubResourcer interface {
	StubResources() map[string]string
}

// StubEntries returns the archive entries of a minimal artifact that a binds
// against in every configuration. Host-provided symbols are not included.
func StubEntries(a Adapter) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	for _, cfg := range []Config{{}, {Script: true}} {
		for _, ep := range a.EntryPoints(cfg) {
			if ep.Kind == namespace.KindValue {
				continue
			}
			name, ok := namespace.SymbolEntry(ep.Symbol)
			if !ok {
				return nil, fmt.Errorf("module %s: invalid entry point symbol %q", a.Name(), ep.Symbol)
			}
			data, err := namespace.EncodeSymbol(ep.Kind, ep.Signature, fmt.Sprintf("%s entry point of %s", ep.Role, a.Name()))
			if err != nil {
				return nil, err
			}
			entries[name] = data
		}
	}
	if sr, ok := a.(StubResourcer); ok {
		for name, content := range sr.StubResources() {
			entries[name] = []byte(content)
		}
	}
	return entries, nil
}

// WriteStub writes the stub artifact of a to w as a zip archive.
func WriteStub(w io.Writer, a Adapter) error {
	entries, err := StubEntries(a)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if _, err := f.Write(entries[name]); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return zw.Close()
}
