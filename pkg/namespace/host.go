// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// HostLocation is the Origin of symbols defined directly on a Host.
const HostLocation = "host"

type (
	// Host is an in-memory namespace standing in for the embedding tool's own
	// symbols and resources. It is what bridged and host-fallback policies
	// consult after a local miss.
	//
	// A Host is safe for concurrent use; definitions may be added at any time.
	Host struct {
		mu        sync.RWMutex
		symbols   map[string]Symbol
		resources map[string][]hostResource
	}

	hostResource struct {
		origin string
		data   []byte
	}
)

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{
		symbols:   make(map[string]Symbol),
		resources: make(map[string][]hostResource),
	}
}

// DefineValue binds name to a live value. A later definition replaces an earlier one.
func (h *Host) DefineValue(name string, value any) {
	h.Define(Symbol{Name: name, Kind: KindValue, Value: value})
}

// Define registers sym under sym.Name. An empty Origin becomes HostLocation.
func (h *Host) Define(sym Symbol) {
	if sym.Origin == "" {
		sym.Origin = HostLocation
	}
	if sym.Kind == "" {
		sym.Kind = KindType
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.symbols[sym.Name] = sym
}

// AddResource appends a resource named name, attributed to origin.
// Several resources may share a name; they enumerate in insertion order.
func (h *Host) AddResource(origin, name string, data []byte) {
	if origin == "" {
		origin = HostLocation
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resources[name] = append(h.resources[name], hostResource{origin: origin, data: bytes.Clone(data)})
}

// LoadSymbol returns the symbol registered under name.
func (h *Host) LoadSymbol(name string) (Symbol, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sym, ok := h.symbols[name]
	return sym, ok, nil
}

// Resource returns the first resource registered under name.
func (h *Host) Resource(name string) (ResourceRef, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := h.resources[name]
	if len(res) == 0 {
		return ResourceRef{}, false
	}
	return ResourceRef{Location: res[0].origin, Name: name}, true
}

// OpenResource opens the first resource registered under name.
func (h *Host) OpenResource(name string) (io.ReadCloser, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := h.resources[name]
	if len(res) == 0 {
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(res[0].data)), true, nil
}

// Resources lists every resource registered under name.
func (h *Host) Resources(name string) ([]ResourceRef, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	refs := make([]ResourceRef, 0, len(h.resources[name]))
	for _, r := range h.resources[name] {
		refs = append(refs, ResourceRef{Location: r.origin, Name: name})
	}
	return refs, nil
}

// OpenRef opens the resource registered under ref.Name by ref.Location.
func (h *Host) OpenRef(ref ResourceRef) (io.ReadCloser, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.resources[ref.Name] {
		if r.origin == ref.Location {
			return io.NopCloser(bytes.NewReader(r.data)), nil
		}
	}
	return nil, fmt.Errorf("resource %s: %w", ref, fs.ErrNotExist)
}
