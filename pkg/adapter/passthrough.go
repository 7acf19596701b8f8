// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"context"

	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/namespace"
)

const (
	// PassthroughName is the registry name of the identity module.
	PassthroughName = "passthrough"
	// PassthroughCoordinate is the default coordinate of the identity module.
	PassthroughCoordinate artifact.Coordinate = "io.isoload:passthrough:"
	// PassthroughVersion is the default version of the identity module.
	PassthroughVersion = "1.0.0"
)

type (
	// Passthrough is a module that returns its input unchanged. It resolves in
	// an isolated namespace and is mostly useful to exercise module plumbing.
	Passthrough struct{}

	passthroughRunner struct{}
)

// Name implements Adapter.
func (Passthrough) Name() string { return PassthroughName }

// Policy implements Adapter.
func (Passthrough) Policy() namespace.PolicyKind { return namespace.PolicyIsolated }

// Coordinate implements Adapter.
func (Passthrough) Coordinate() artifact.Coordinate { return PassthroughCoordinate }

// DefaultVersion implements Adapter.
func (Passthrough) DefaultVersion() string { return PassthroughVersion }

// Concurrent implements Adapter.
func (Passthrough) Concurrent() bool { return true }

// EntryPoints implements Adapter. Script mode uses the same entry points.
func (Passthrough) EntryPoints(Config) []EntryPoint {
	return []EntryPoint{
		{
			Role:      RoleConstruct,
			Symbol:    "isoload.passthrough.Passthrough.create",
			Kind:      namespace.KindFunc,
			Signature: "func(isoload.passthrough.Settings) isoload.passthrough.Passthrough",
		},
		{Role: RoleSettings, Symbol: "isoload.passthrough.Settings", Kind: namespace.KindType},
		{
			Role:      RoleRun,
			Symbol:    "isoload.passthrough.Passthrough.run",
			Kind:      namespace.KindFunc,
			Signature: "func(string) string",
		},
	}
}

// Configure implements Adapter. An external configuration file is rejected.
func (p Passthrough) Configure(_ context.Context, _ *Bindings, cfg Config) (Settings, error) {
	if cfg.ConfigFile != "" {
		return nil, &UnsupportedError{Module: p.Name(), Feature: "external configuration files"}
	}
	return struct{}{}, nil
}

// Construct implements Adapter.
func (Passthrough) Construct(*Bindings, Settings) (Runner, error) {
	return passthroughRunner{}, nil
}

func (passthroughRunner) Run(input string, _ Reporter) (string, error) {
	return input, nil
}
