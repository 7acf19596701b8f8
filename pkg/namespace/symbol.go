// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// SymbolFileExt is the archive entry suffix of a symbol definition.
	SymbolFileExt = ".sym"

	// KindType marks a symbol that names a type.
	KindType = "type"
	// KindFunc marks a symbol that names a callable entry point.
	KindFunc = "func"
	// KindValue marks a symbol bound to a live value, typically provided by the host.
	KindValue = "value"
)

var (
	// ErrSymbolNotFound is the sentinel error wrapped by SymbolNotFoundError.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrMalformedSymbol is the sentinel error wrapped by MalformedSymbolError.
	ErrMalformedSymbol = errors.New("malformed symbol definition")
	// ErrClosed is returned by lookups on a namespace that has been closed.
	ErrClosed = errors.New("namespace closed")
)

type (
	// Symbol is a resolved named definition.
	Symbol struct {
		// Name is the dotted symbol name.
		Name string
		// Origin is the location that defined the symbol.
		Origin string
		// Kind is one of KindType, KindFunc or KindValue.
		Kind string
		// Signature is the declared signature, compared verbatim (modulo whitespace)
		// by consumers that wire entry points.
		Signature string
		// Doc is an optional human-readable description.
		Doc string
		// Value is the live value behind a host-provided symbol. Archive symbols
		// never carry one.
		Value any
	}

	// ResourceRef identifies a resource inside a specific location.
	ResourceRef struct {
		Location string
		Name     string
	}

	// Resolver is the lookup surface shared by every namespace, including the
	// opaque host namespace supplied by an embedding tool.
	//
	// The boolean results distinguish "found" from "not found"; a miss is an
	// expected outcome and is never reported as an error. Errors are reserved
	// for I/O failures, malformed definitions and closed namespaces.
	Resolver interface {
		// LoadSymbol resolves a named symbol.
		LoadSymbol(name string) (Symbol, bool, error)
		// Resource returns a reference to the first resource with the given name.
		Resource(name string) (ResourceRef, bool)
		// OpenResource opens the first resource with the given name.
		OpenResource(name string) (io.ReadCloser, bool, error)
		// Resources enumerates every resource with the given name, in location order.
		Resources(name string) ([]ResourceRef, error)
		// OpenRef opens a reference previously returned by Resource or Resources.
		// An unknown reference fails with an error wrapping fs.ErrNotExist.
		OpenRef(ref ResourceRef) (io.ReadCloser, error)
	}

	// SymbolNotFoundError reports a symbol that no consulted namespace defines.
	SymbolNotFoundError struct {
		Name string
	}

	// MalformedSymbolError reports a symbol entry that could not be decoded.
	MalformedSymbolError struct {
		Name     string
		Location string
		Cause    error
	}

	// symbolDef is the on-disk shape of a .sym entry.
	symbolDef struct {
		Kind      string `toml:"kind"`
		Signature string `toml:"signature"`
		Doc       string `toml:"doc"`
	}
)

// String renders the reference like a jar URL: "location!/name".
func (r ResourceRef) String() string {
	return r.Location + "!/" + r.Name
}

// Require resolves name through r and converts a miss into a *SymbolNotFoundError.
func Require(r Resolver, name string) (Symbol, error) {
	sym, ok, err := r.LoadSymbol(name)
	if err != nil {
		return Symbol{}, err
	}
	if !ok {
		return Symbol{}, &SymbolNotFoundError{Name: name}
	}
	return sym, nil
}

// SymbolEntry returns the archive entry name that defines the symbol, or false
// when name is not a well-formed dotted symbol name.
func SymbolEntry(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	for part := range strings.SplitSeq(name, ".") {
		if part == "" {
			return "", false
		}
	}
	return strings.ReplaceAll(name, ".", "/") + SymbolFileExt, true
}

// EncodeSymbol renders a symbol definition in the .sym format.
func EncodeSymbol(kind, signature, doc string) ([]byte, error) {
	return toml.Marshal(symbolDef{Kind: kind, Signature: signature, Doc: doc})
}

// decodeSymbol parses a .sym entry. An empty definition declares a type.
func decodeSymbol(name, location string, data []byte) (Symbol, error) {
	var def symbolDef
	if err := toml.Unmarshal(data, &def); err != nil {
		return Symbol{}, &MalformedSymbolError{Name: name, Location: location, Cause: err}
	}
	switch def.Kind {
	case "":
		def.Kind = KindType
	case KindType, KindFunc:
	default:
		return Symbol{}, &MalformedSymbolError{
			Name:     name,
			Location: location,
			Cause:    fmt.Errorf("unknown kind %q", def.Kind),
		}
	}
	return Symbol{
		Name:      name,
		Origin:    location,
		Kind:      def.Kind,
		Signature: def.Signature,
		Doc:       def.Doc,
	}, nil
}

// Error implements the error interface for SymbolNotFoundError.
func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Name)
}

// Unwrap returns ErrSymbolNotFound for errors.Is() compatibility.
func (e *SymbolNotFoundError) Unwrap() error { return ErrSymbolNotFound }

// Error implements the error interface for MalformedSymbolError.
func (e *MalformedSymbolError) Error() string {
	return fmt.Sprintf("malformed symbol %s in %s: %v", e.Name, e.Location, e.Cause)
}

// Unwrap returns ErrMalformedSymbol and the decoding cause.
func (e *MalformedSymbolError) Unwrap() []error { return []error{ErrMalformedSymbol, e.Cause} }
