// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// PolicyIsolated never consults the host namespace.
	PolicyIsolated PolicyKind = "isolated"
	// PolicyBridged consults the host for allow-listed symbol prefixes only.
	PolicyBridged PolicyKind = "bridged"
	// PolicyHostFallback consults the host for every kind of local miss.
	PolicyHostFallback PolicyKind = "host-fallback"

	// DefaultBridgePrefix is the allow-listed prefix of the host logging facade.
	DefaultBridgePrefix = "bridge.facade."
)

var (
	// ErrInvalidPolicyKind is the sentinel error wrapped by InvalidPolicyKindError.
	ErrInvalidPolicyKind = errors.New("invalid delegation policy")
	// ErrMissingHost is returned when a policy that falls back has no host namespace.
	ErrMissingHost = errors.New("delegation policy requires a host namespace")
)

type (
	// PolicyKind selects how a Namespace delegates after a local miss.
	PolicyKind string

	// InvalidPolicyKindError is returned when a PolicyKind value is not recognized.
	// It wraps ErrInvalidPolicyKind for errors.Is() compatibility.
	InvalidPolicyKindError struct {
		Value PolicyKind
	}

	// Bridged resolves symbols locally and retries in the host only for names
	// carrying an allow-listed prefix. Resources are never looked up in the host.
	Bridged struct {
		local    Resolver
		host     Resolver
		prefixes []string
		logger   *log.Logger
	}

	// HostFallback resolves everything locally first and asks the host whenever
	// the local answer is absent.
	HostFallback struct {
		local  Resolver
		host   Resolver
		logger *log.Logger
	}

	// Namespace is a set of opened archives combined with a delegation policy.
	// It owns the archive handles and must be closed when no longer needed.
	Namespace struct {
		Resolver

		archives *Archives
		policy   PolicyKind
	}

	// Option configures New.
	Option func(*options)

	options struct {
		prefixes []string
		logger   *log.Logger
	}
)

// String returns the string representation of the PolicyKind.
func (p PolicyKind) String() string { return string(p) }

// IsValid returns whether the PolicyKind is one of the defined policies.
func (p PolicyKind) IsValid() (bool, []error) {
	switch p {
	case PolicyIsolated, PolicyBridged, PolicyHostFallback:
		return true, nil
	default:
		return false, []error{&InvalidPolicyKindError{Value: p}}
	}
}

// Error implements the error interface for InvalidPolicyKindError.
func (e *InvalidPolicyKindError) Error() string {
	return fmt.Sprintf("invalid delegation policy %q (valid: isolated, bridged, host-fallback)", e.Value)
}

// Unwrap returns ErrInvalidPolicyKind for errors.Is() compatibility.
func (e *InvalidPolicyKindError) Unwrap() error { return ErrInvalidPolicyKind }

// WithBridgePrefixes replaces the allow-listed prefixes of PolicyBridged.
func WithBridgePrefixes(prefixes ...string) Option {
	return func(o *options) {
		o.prefixes = slices.Clone(prefixes)
	}
}

// WithLogger sets the logger that records fallbacks at debug level.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() options {
	return options{
		prefixes: []string{DefaultBridgePrefix},
		logger:   log.New(io.Discard),
	}
}

// NewBridged wraps local with allow-list fallback to host.
func NewBridged(local, host Resolver, prefixes []string, logger *log.Logger) *Bridged {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bridged{local: local, host: host, prefixes: slices.Clone(prefixes), logger: logger}
}

// NewHostFallback wraps local with full fallback to host.
func NewHostFallback(local, host Resolver, logger *log.Logger) *HostFallback {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HostFallback{local: local, host: host, logger: logger}
}

// New opens locations and applies policy. host may be nil only for PolicyIsolated.
func New(locations []string, policy PolicyKind, host Resolver, opts ...Option) (*Namespace, error) {
	if ok, errs := policy.IsValid(); !ok {
		return nil, errs[0]
	}
	if policy != PolicyIsolated && host == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingHost, policy)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	archives, err := OpenArchives(locations)
	if err != nil {
		return nil, err
	}

	ns := &Namespace{archives: archives, policy: policy}
	switch policy {
	case PolicyBridged:
		ns.Resolver = NewBridged(archives, host, o.prefixes, o.logger)
	case PolicyHostFallback:
		ns.Resolver = NewHostFallback(archives, host, o.logger)
	default:
		ns.Resolver = archives
	}
	return ns, nil
}

// Policy returns the delegation policy in effect.
func (n *Namespace) Policy() PolicyKind { return n.policy }

// Locations returns the archive locations the namespace was built over.
func (n *Namespace) Locations() []string { return n.archives.Locations() }

// Close releases the archive handles.
func (n *Namespace) Close() error { return n.archives.Close() }

// Resource returns nothing once the namespace is closed, under every policy.
func (n *Namespace) Resource(name string) (ResourceRef, bool) {
	if n.archives.closed.Load() {
		return ResourceRef{}, false
	}
	return n.Resolver.Resource(name)
}

// LoadSymbol tries local first; a local miss is retried in the host only for
// allow-listed names. Otherwise the miss stands.
func (b *Bridged) LoadSymbol(name string) (Symbol, bool, error) {
	sym, ok, err := b.local.LoadSymbol(name)
	if err != nil || ok {
		return sym, ok, err
	}
	if !b.bridges(name) {
		return Symbol{}, false, nil
	}
	b.logger.Debug("bridging symbol to host", "symbol", name)
	return b.host.LoadSymbol(name)
}

// Resource is resolved locally only.
func (b *Bridged) Resource(name string) (ResourceRef, bool) { return b.local.Resource(name) }

// OpenResource is resolved locally only.
func (b *Bridged) OpenResource(name string) (io.ReadCloser, bool, error) {
	return b.local.OpenResource(name)
}

// Resources is resolved locally only.
func (b *Bridged) Resources(name string) ([]ResourceRef, error) { return b.local.Resources(name) }

// OpenRef is resolved locally only.
func (b *Bridged) OpenRef(ref ResourceRef) (io.ReadCloser, error) { return b.local.OpenRef(ref) }

func (b *Bridged) bridges(name string) bool {
	for _, p := range b.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// LoadSymbol tries local, then host. The host's miss or failure is the one reported.
func (f *HostFallback) LoadSymbol(name string) (Symbol, bool, error) {
	sym, ok, err := f.local.LoadSymbol(name)
	if err != nil || ok {
		return sym, ok, err
	}
	f.logger.Debug("symbol falls back to host", "symbol", name)
	return f.host.LoadSymbol(name)
}

// Resource returns the local reference when present, else the host's.
func (f *HostFallback) Resource(name string) (ResourceRef, bool) {
	if ref, ok := f.local.Resource(name); ok {
		return ref, true
	}
	return f.host.Resource(name)
}

// OpenResource opens the local resource when present, else the host's.
func (f *HostFallback) OpenResource(name string) (io.ReadCloser, bool, error) {
	rc, ok, err := f.local.OpenResource(name)
	if err != nil || ok {
		return rc, ok, err
	}
	return f.host.OpenResource(name)
}

// Resources returns the local enumeration unless it is empty, in which case the
// host's enumeration replaces it. The two are never concatenated.
func (f *HostFallback) Resources(name string) ([]ResourceRef, error) {
	refs, err := f.local.Resources(name)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return refs, nil
	}
	f.logger.Debug("resource enumeration falls back to host", "resource", name)
	return f.host.Resources(name)
}

// OpenRef opens ref locally, or from the host when the local side does not know it.
func (f *HostFallback) OpenRef(ref ResourceRef) (io.ReadCloser, error) {
	rc, err := f.local.OpenRef(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return f.host.OpenRef(ref)
	}
	return rc, err
}
