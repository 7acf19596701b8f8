// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type (
	// Archives is the leaf namespace: it resolves symbols and resources from an
	// ordered list of locations and nothing else.
	//
	// Every location is opened once by OpenArchives and stays open until Close.
	// Lookups are safe for concurrent use; each symbol name is decoded at most
	// once and the outcome, found or not, is remembered.
	Archives struct {
		locations []string
		sources   []source

		// symbols caches symbolResult values by name.
		symbols sync.Map
		// loads collapses concurrent first lookups of the same name.
		loads  singleflight.Group
		closed atomic.Bool
	}

	symbolResult struct {
		sym   Symbol
		found bool
	}

	// source is one opened location.
	source interface {
		location() string
		has(name string) bool
		open(name string) (io.ReadCloser, bool, error)
		close() error
	}

	zipSource struct {
		path    string
		archive *zip.ReadCloser
		entries map[string]*zip.File
	}

	dirSource struct {
		path string
		root *os.Root
	}
)

// OpenArchives opens every location in order. Locations ending in "/" are
// directories; everything else is read as a zip archive. If any location fails
// to open, the ones already opened are closed again.
func OpenArchives(locations []string) (*Archives, error) {
	a := &Archives{locations: slices.Clone(locations)}
	for _, loc := range a.locations {
		src, err := openSource(loc)
		if err != nil {
			_ = a.Close() // Already failing; the open error is the one that matters
			return nil, err
		}
		a.sources = append(a.sources, src)
	}
	return a, nil
}

// Locations returns a copy of the configured locations.
func (a *Archives) Locations() []string {
	return slices.Clone(a.locations)
}

// LoadSymbol resolves name from the first location that defines it.
func (a *Archives) LoadSymbol(name string) (Symbol, bool, error) {
	if a.closed.Load() {
		return Symbol{}, false, ErrClosed
	}
	if cached, ok := a.symbols.Load(name); ok {
		res := cached.(symbolResult)
		return res.sym, res.found, nil
	}

	v, err, _ := a.loads.Do(name, func() (any, error) {
		if cached, ok := a.symbols.Load(name); ok {
			return cached, nil
		}
		res, err := a.findSymbol(name)
		if err != nil {
			return nil, err
		}
		a.symbols.Store(name, res)
		return res, nil
	})
	if err != nil {
		return Symbol{}, false, err
	}
	res := v.(symbolResult)
	return res.sym, res.found, nil
}

func (a *Archives) findSymbol(name string) (symbolResult, error) {
	entry, ok := SymbolEntry(name)
	if !ok {
		return symbolResult{}, nil
	}
	for _, src := range a.sources {
		rc, found, err := src.open(entry)
		if err != nil {
			return symbolResult{}, err
		}
		if !found {
			continue
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close() // Read-only entry; nothing to flush
		if err != nil {
			return symbolResult{}, fmt.Errorf("failed to read %s from %s: %w", entry, src.location(), err)
		}
		sym, err := decodeSymbol(name, src.location(), data)
		if err != nil {
			return symbolResult{}, err
		}
		return symbolResult{sym: sym, found: true}, nil
	}
	return symbolResult{}, nil
}

// Resource returns a reference to the first location holding name.
func (a *Archives) Resource(name string) (ResourceRef, bool) {
	if a.closed.Load() || !fs.ValidPath(name) {
		return ResourceRef{}, false
	}
	for _, src := range a.sources {
		if src.has(name) {
			return ResourceRef{Location: src.location(), Name: name}, true
		}
	}
	return ResourceRef{}, false
}

// OpenResource opens name from the first location holding it.
func (a *Archives) OpenResource(name string) (io.ReadCloser, bool, error) {
	if a.closed.Load() {
		return nil, false, ErrClosed
	}
	if !fs.ValidPath(name) {
		return nil, false, nil
	}
	for _, src := range a.sources {
		rc, found, err := src.open(name)
		if err != nil || found {
			return rc, found, err
		}
	}
	return nil, false, nil
}

// Resources lists name in every location that holds it, in location order.
// A name held by no location yields an empty, non-nil slice.
func (a *Archives) Resources(name string) ([]ResourceRef, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	refs := []ResourceRef{}
	if !fs.ValidPath(name) {
		return refs, nil
	}
	for _, src := range a.sources {
		if src.has(name) {
			refs = append(refs, ResourceRef{Location: src.location(), Name: name})
		}
	}
	return refs, nil
}

// OpenRef opens ref from the location it names.
func (a *Archives) OpenRef(ref ResourceRef) (io.ReadCloser, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	for _, src := range a.sources {
		if src.location() != ref.Location {
			continue
		}
		rc, found, err := src.open(ref.Name)
		if err != nil {
			return nil, err
		}
		if found {
			return rc, nil
		}
	}
	return nil, fmt.Errorf("resource %s: %w", ref, fs.ErrNotExist)
}

// Close releases every open location. Lookups after Close fail with ErrClosed.
func (a *Archives) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, src := range a.sources {
		if err := src.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openSource(loc string) (source, error) {
	if strings.HasSuffix(loc, "/") {
		root, err := os.OpenRoot(loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open directory %s: %w", loc, err)
		}
		return &dirSource{path: loc, root: root}, nil
	}

	archive, err := zip.OpenReader(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", loc, err)
	}
	entries := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		// First entry wins when an archive repeats a name.
		if _, dup := entries[f.Name]; !dup {
			entries[f.Name] = f
		}
	}
	return &zipSource{path: loc, archive: archive, entries: entries}, nil
}

func (z *zipSource) location() string { return z.path }

func (z *zipSource) has(name string) bool {
	_, ok := z.entries[name]
	return ok
}

func (z *zipSource) open(name string) (io.ReadCloser, bool, error) {
	f, ok := z.entries[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s in %s: %w", name, z.path, err)
	}
	return rc, true, nil
}

func (z *zipSource) close() error { return z.archive.Close() }

func (d *dirSource) location() string { return d.path }

func (d *dirSource) has(name string) bool {
	info, err := d.root.Stat(name)
	return err == nil && !info.IsDir()
}

func (d *dirSource) open(name string) (io.ReadCloser, bool, error) {
	if !d.has(name) {
		return nil, false, nil
	}
	f, err := d.root.Open(name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s in %s: %w", name, d.path, err)
	}
	return f, true, nil
}

func (d *dirSource) close() error { return d.root.Close() }
