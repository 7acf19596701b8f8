// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/namespace"
)

const (
	// RoleConstruct is the factory entry point that builds the module instance.
	RoleConstruct Role = "construct"
	// RoleSettings is the settings type passed to the factory.
	RoleSettings Role = "settings"
	// RoleRun is the entry point invoked once per input.
	RoleRun Role = "run"
	// RoleLogger is the bridged logging facade a module writes diagnostics to.
	RoleLogger Role = "logger"
)

var (
	// ErrWiring is the sentinel error wrapped by WiringError.
	ErrWiring = errors.New("module wiring failed")
	// ErrUnsupported is the sentinel error wrapped by UnsupportedError.
	ErrUnsupported = errors.New("unsupported module feature")
	// ErrLint is the sentinel error wrapped by LintError.
	ErrLint = errors.New("uncorrected diagnostics")
)

type (
	// Role names what an entry point is used for.
	Role string

	// Config selects a module's behavior. It is comparable so that it can take
	// part in module identity.
	Config struct {
		// Script selects the script variant of the run entry point.
		Script bool `json:"script"`
		// ConfigFile is an optional external configuration file.
		ConfigFile string `json:"config_file,omitempty"`
	}

	// EntryPoint is a symbol a module needs from its namespace.
	EntryPoint struct {
		Role   Role
		Symbol string
		// Kind is the required symbol kind (namespace.KindType, KindFunc or KindValue).
		Kind string
		// Signature, when non-empty, must match the declared signature modulo whitespace.
		Signature string
	}

	// Bindings is the result of a successful Bind: the entry points resolved
	// against a namespace, plus the namespace itself for resource access.
	Bindings struct {
		Module    string
		Namespace namespace.Resolver
		symbols   map[Role]namespace.Symbol
	}

	// Settings is the opaque value produced by Configure and consumed by Construct.
	Settings any

	// Diagnostic is one finding reported while running a module.
	Diagnostic struct {
		Rule   string
		Detail string
		// Line and Column are 1-based.
		Line   int
		Column int
		// Corrected reports whether the module fixed the finding in its output.
		Corrected bool
	}

	// Reporter receives diagnostics as a Runner produces them. A nil Reporter
	// discards them.
	Reporter func(Diagnostic)

	// Runner transforms one input.
	Runner interface {
		Run(input string, report Reporter) (string, error)
	}

	// Adapter binds a module's declared entry points to Go behavior.
	Adapter interface {
		// Name is the registry key of the module.
		Name() string
		// Policy is the delegation policy the module's namespace is built with.
		Policy() namespace.PolicyKind
		// Coordinate is the default artifact coordinate of the module.
		Coordinate() artifact.Coordinate
		// DefaultVersion is the version used when none is configured.
		DefaultVersion() string
		// EntryPoints lists the symbols required for cfg.
		EntryPoints(cfg Config) []EntryPoint
		// Configure builds the settings passed to Construct.
		Configure(ctx context.Context, b *Bindings, cfg Config) (Settings, error)
		// Construct builds a Runner from settings.
		Construct(b *Bindings, s Settings) (Runner, error)
		// Concurrent reports whether one Runner may serve several goroutines.
		Concurrent() bool
	}

	// WiringError reports an entry point that is absent from the namespace or
	// does not have the declared shape. It is a configuration failure of the
	// module artifact, not a plain lookup miss.
	WiringError struct {
		Module string
		Symbol string
		Role   Role
		Reason string
		Cause  error
	}

	// UnsupportedError reports a configuration option the module cannot honor.
	UnsupportedError struct {
		Module  string
		Feature string
	}

	// LintError carries the diagnostics a module could not correct.
	LintError struct {
		Diagnostics []Diagnostic
	}
)

// Bind resolves every entry point of a for cfg in ns.
func Bind(ns namespace.Resolver, a Adapter, cfg Config) (*Bindings, error) {
	b := &Bindings{
		Module:    a.Name(),
		Namespace: ns,
		symbols:   make(map[Role]namespace.Symbol),
	}
	for _, ep := range a.EntryPoints(cfg) {
		sym, err := namespace.Require(ns, ep.Symbol)
		if err != nil {
			if errors.Is(err, namespace.ErrSymbolNotFound) {
				return nil, &WiringError{Module: a.Name(), Symbol: ep.Symbol, Role: ep.Role, Reason: "entry point not found", Cause: err}
			}
			return nil, fmt.Errorf("binding %s entry point %s: %w", ep.Role, ep.Symbol, err)
		}
		if ep.Kind != "" && sym.Kind != ep.Kind {
			return nil, &WiringError{
				Module: a.Name(),
				Symbol: ep.Symbol,
				Role:   ep.Role,
				Reason: fmt.Sprintf("expected %s, %s declares a %s", ep.Kind, sym.Origin, sym.Kind),
			}
		}
		if ep.Signature != "" && normalizeSignature(sym.Signature) != normalizeSignature(ep.Signature) {
			return nil, &WiringError{
				Module: a.Name(),
				Symbol: ep.Symbol,
				Role:   ep.Role,
				Reason: fmt.Sprintf("signature %q does not match %q", sym.Signature, ep.Signature),
			}
		}
		b.symbols[ep.Role] = sym
	}
	return b, nil
}

// Symbol returns the symbol bound to role.
func (b *Bindings) Symbol(role Role) (namespace.Symbol, bool) {
	sym, ok := b.symbols[role]
	return sym, ok
}

func normalizeSignature(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Error implements the error interface for WiringError.
func (e *WiringError) Error() string {
	return fmt.Sprintf("module %s: cannot wire %s entry point %s: %s", e.Module, e.Role, e.Symbol, e.Reason)
}

// Unwrap returns ErrWiring for errors.Is() compatibility. The lookup cause is
// available in Cause only.
func (e *WiringError) Unwrap() error { return ErrWiring }

// Error implements the error interface for UnsupportedError.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("module %s does not support %s", e.Module, e.Feature)
}

// Unwrap returns ErrUnsupported for errors.Is() compatibility.
func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// Error renders the first uncorrected diagnostic.
func (e *LintError) Error() string {
	if len(e.Diagnostics) == 0 {
		return ErrLint.Error()
	}
	d := e.Diagnostics[0]
	msg := fmt.Sprintf("Error on line: %d, column: %d\n%s", d.Line, d.Column, d.Detail)
	if n := len(e.Diagnostics) - 1; n > 0 {
		msg += fmt.Sprintf("\n(and %d more)", n)
	}
	return msg
}

// Unwrap returns ErrLint for errors.Is() compatibility.
func (e *LintError) Unwrap() error { return ErrLint }

// String renders the diagnostic as "line:column rule detail".
func (d Diagnostic) String() string {
	mark := ""
	if d.Corrected {
		mark = " (corrected)"
	}
	return fmt.Sprintf("%d:%d %s %s%s", d.Line, d.Column, d.Rule, d.Detail, mark)
}
