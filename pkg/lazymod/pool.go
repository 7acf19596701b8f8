// SPDX-License-Identifier: MPL-2.0

package lazymod

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/isoload/isoload/pkg/artifact"
)

// Pool shares one Module per Descriptor. It is safe for concurrent use.
type Pool struct {
	resolver artifact.Resolver
	opts     []Option

	mu      sync.Mutex
	modules map[Descriptor]*Module
}

// NewPool returns an empty pool whose modules resolve through resolver and
// are created with opts.
func NewPool(resolver artifact.Resolver, opts ...Option) *Pool {
	return &Pool{
		resolver: resolver,
		opts:     opts,
		modules:  make(map[Descriptor]*Module),
	}
}

// Get returns the pooled module for d, creating it on first request. An empty
// d.Coordinate selects the module's default coordinate before pooling, so
// descriptors that differ only by an omitted default share one module.
func (p *Pool) Get(d Descriptor) (*Module, error) {
	m, err := New(d.Name, d.Version, d.Coordinate, d.Config, p.resolver, p.opts...)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.modules[m.Descriptor()]; ok {
		return existing, nil
	}
	p.modules[m.Descriptor()] = m
	return m, nil
}

// Materialize returns the Func of the pooled module for d. Cancellation of ctx
// does not reach the module's first use; its values do.
func (p *Pool) Materialize(ctx context.Context, d Descriptor) (Func, error) {
	m, err := p.Get(d)
	if err != nil {
		return nil, err
	}
	return m.Materialize(context.WithoutCancel(ctx))
}

// Len returns the number of pooled modules.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.modules)
}

// Descriptors returns the pooled descriptors ordered by their String form.
func (p *Pool) Descriptors() []Descriptor {
	p.mu.Lock()
	descs := make([]Descriptor, 0, len(p.modules))
	for d := range p.modules {
		descs = append(descs, d)
	}
	p.mu.Unlock()

	slices.SortFunc(descs, func(a, b Descriptor) int {
		return strings.Compare(a.String(), b.String())
	})
	return descs
}

// Evict closes and forgets the pooled modules that match, and returns the
// evicted descriptors. The next Get for one of them starts over with a fresh,
// unmaterialized module.
func (p *Pool) Evict(match func(*Module) bool) ([]Descriptor, error) {
	p.mu.Lock()
	var victims []*Module
	for d, m := range p.modules {
		if match(m) {
			victims = append(victims, m)
			delete(p.modules, d)
		}
	}
	p.mu.Unlock()

	evicted := make([]Descriptor, 0, len(victims))
	var errs []error
	for _, m := range victims {
		evicted = append(evicted, m.Descriptor())
		errs = append(errs, m.Close())
	}
	slices.SortFunc(evicted, func(a, b Descriptor) int {
		return strings.Compare(a.String(), b.String())
	})
	return evicted, errors.Join(errs...)
}

// Close closes and forgets every pooled module.
func (p *Pool) Close() error {
	p.mu.Lock()
	modules := p.modules
	p.modules = make(map[Descriptor]*Module)
	p.mu.Unlock()

	var errs []error
	for _, m := range modules {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
