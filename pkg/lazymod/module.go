// SPDX-License-Identifier: MPL-2.0

package lazymod

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/namespace"
)

type (
	// Func applies a materialized module to one input.
	Func func(input string) (string, error)

	// Module is a lazily materialized module. It is safe for concurrent use.
	Module struct {
		desc     Descriptor
		adapter  adapter.Adapter
		resolver artifact.Resolver
		opts     options

		once   sync.Once
		fn     Func
		err    error
		closed atomic.Bool

		mu sync.Mutex
		ns *namespace.Namespace
	}

	// Option configures New.
	Option func(*options)

	options struct {
		registry *adapter.Registry
		host     *namespace.Host
		logger   *log.Logger
		reporter adapter.Reporter
		prefixes []string
	}
)

// WithRegistry selects the adapters modules are looked up in. The default is
// adapter.Default().
func WithRegistry(r *adapter.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithHost sets the host namespace consulted by bridged and host-fallback
// modules. The default is NewHost with the configured logger.
func WithHost(h *namespace.Host) Option {
	return func(o *options) { o.host = h }
}

// WithLogger sets the logger for materialization events.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReporter receives the diagnostics of every Func call.
func WithReporter(r adapter.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithBridgePrefixes replaces the allow-listed symbol prefixes of bridged modules.
func WithBridgePrefixes(prefixes ...string) Option {
	return func(o *options) { o.prefixes = prefixes }
}

// NewHost returns a host namespace exposing logger as the bridged log facade.
func NewHost(logger *log.Logger) *namespace.Host {
	host := namespace.NewHost()
	host.DefineValue(adapter.LoggerSymbol, logger)
	return host
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = adapter.Default()
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.host == nil {
		o.host = NewHost(o.logger)
	}
	return o
}

// New returns an unmaterialized module. It performs no I/O. An empty
// coordinate selects the adapter's default coordinate.
func New(name, version string, coordinate artifact.Coordinate, cfg Config, resolver artifact.Resolver, opts ...Option) (*Module, error) {
	if strings.TrimSpace(version) == "" {
		return nil, ErrMissingVersion
	}
	if resolver == nil {
		return nil, ErrMissingResolver
	}

	o := buildOptions(opts)
	a, err := o.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if coordinate == "" {
		coordinate = a.Coordinate()
	}
	if ok, errs := coordinate.IsValid(); !ok {
		return nil, errs[0]
	}

	return &Module{
		desc:     Descriptor{Name: name, Version: version, Coordinate: coordinate, Config: cfg},
		adapter:  a,
		resolver: resolver,
		opts:     o,
	}, nil
}

// DefaultVersion returns the default version of a builtin module.
func DefaultVersion(name string) (string, error) {
	a, err := adapter.Default().Get(name)
	if err != nil {
		return "", err
	}
	return a.DefaultVersion(), nil
}

// Descriptor returns the identity of m.
func (m *Module) Descriptor() Descriptor { return m.desc }

// Locations returns the archive locations m was materialized from. It is nil
// before a successful Materialize and after Close.
func (m *Module) Locations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ns == nil {
		return nil
	}
	return m.ns.Locations()
}

// Materialize returns the module's Func, materializing it on first use. The
// outcome of the first call, including its failure, is returned to every
// later caller. ctx only affects the first call.
func (m *Module) Materialize(ctx context.Context) (Func, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	m.once.Do(func() {
		m.fn, m.err = m.materialize(ctx)
	})
	return m.fn, m.err
}

func (m *Module) materialize(ctx context.Context) (Func, error) {
	logger := m.opts.logger.With("module", m.desc.Name, "version", m.desc.Version)
	fail := func(stage Stage, err error) (Func, error) {
		logger.Debug("materialization failed", "stage", stage, "err", err)
		return nil, &MaterializeError{Descriptor: m.desc, Stage: stage, Cause: err}
	}

	logger.Debug("resolving artifact", "coordinate", m.desc.Coordinate.WithVersion(m.desc.Version))
	locations, err := m.resolver.Resolve(ctx, m.desc.Coordinate, m.desc.Version)
	if err != nil {
		return fail(StageResolve, err)
	}

	nsOpts := []namespace.Option{namespace.WithLogger(m.opts.logger)}
	if m.opts.prefixes != nil {
		nsOpts = append(nsOpts, namespace.WithBridgePrefixes(m.opts.prefixes...))
	}
	ns, err := namespace.New(locations, m.adapter.Policy(), m.opts.host, nsOpts...)
	if err != nil {
		return fail(StageNamespace, err)
	}

	runner, stage, err := m.wire(ctx, ns)
	if err != nil {
		if closeErr := ns.Close(); closeErr != nil {
			logger.Warn("failed to close namespace", "err", closeErr)
		}
		return fail(stage, err)
	}

	m.mu.Lock()
	m.ns = ns
	m.mu.Unlock()
	if m.closed.Load() {
		if err := m.releaseNamespace(); err != nil {
			logger.Warn("failed to close namespace", "err", err)
		}
		return nil, ErrClosed
	}

	if !m.adapter.Concurrent() {
		runner = &serialRunner{runner: runner}
	}
	logger.Debug("module materialized", "policy", m.adapter.Policy(), "locations", len(locations))

	reporter := m.opts.reporter
	return func(input string) (string, error) {
		if m.closed.Load() {
			return "", ErrClosed
		}
		return runner.Run(input, reporter)
	}, nil
}

func (m *Module) wire(ctx context.Context, ns *namespace.Namespace) (adapter.Runner, Stage, error) {
	b, err := adapter.Bind(ns, m.adapter, m.desc.Config)
	if err != nil {
		return nil, StageWire, err
	}
	settings, err := m.adapter.Configure(ctx, b, m.desc.Config)
	if err != nil {
		return nil, StageConfigure, err
	}
	runner, err := m.adapter.Construct(b, settings)
	if err != nil {
		return nil, StageWire, fmt.Errorf("constructing %s: %w", m.desc.Name, err)
	}
	return runner, "", nil
}

// Close releases the module's namespace. A closed module cannot be
// materialized and its Func fails with ErrClosed. Close is idempotent.
func (m *Module) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.releaseNamespace()
}

func (m *Module) releaseNamespace() error {
	m.mu.Lock()
	ns := m.ns
	m.ns = nil
	m.mu.Unlock()
	if ns == nil {
		return nil
	}
	return ns.Close()
}

// serialRunner serializes calls to a runner that is not safe for concurrent use.
type serialRunner struct {
	mu     sync.Mutex
	runner adapter.Runner
}

func (s *serialRunner) Run(input string, report adapter.Reporter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Run(input, report)
}
