// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isoload/isoload/internal/testutil"
	"github.com/isoload/isoload/pkg/namespace"
)

// stubArchive writes the stub artifact of a, overlaid with extra, and returns its path.
func stubArchive(t *testing.T, a Adapter, extra testutil.Entries) string {
	t.Helper()
	stub, err := StubEntries(a)
	require.NoError(t, err)
	entries := testutil.Entries{}
	for name, data := range stub {
		entries[name] = string(data)
	}
	for name, data := range extra {
		entries[name] = data
	}
	return testutil.WriteArchive(t, t.TempDir(), a.Name()+".zip", entries)
}

func openNamespace(t *testing.T, policy namespace.PolicyKind, host namespace.Resolver, locations ...string) *namespace.Namespace {
	t.Helper()
	ns, err := namespace.New(locations, policy, host)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, ns))
	return ns
}

func TestBindPassthrough(t *testing.T) {
	ns := openNamespace(t, namespace.PolicyIsolated, nil, stubArchive(t, Passthrough{}, nil))

	b, err := Bind(ns, Passthrough{}, Config{})
	require.NoError(t, err)
	assert.Equal(t, PassthroughName, b.Module)

	run, ok := b.Symbol(RoleRun)
	require.True(t, ok)
	assert.Equal(t, "isoload.passthrough.Passthrough.run", run.Name)
	assert.Equal(t, namespace.KindFunc, run.Kind)

	_, ok = b.Symbol(RoleLogger)
	assert.False(t, ok)
}

func TestBindFailures(t *testing.T) {
	const runEntry = "isoload/passthrough/Passthrough/run.sym"

	tests := []struct {
		name    string
		overlay testutil.Entries
		drop    string
		reason  string
	}{
		{
			name:   "missing entry point",
			drop:   runEntry,
			reason: "entry point not found",
		},
		{
			name:    "signature mismatch",
			overlay: testutil.Entries{}.Add("isoload.passthrough.Passthrough.run", namespace.KindFunc, "func(string) int"),
			reason:  "does not match",
		},
		{
			name:    "kind mismatch",
			overlay: testutil.Entries{}.Add("isoload.passthrough.Passthrough.run", namespace.KindType, ""),
			reason:  "expected func",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, err := StubEntries(Passthrough{})
			require.NoError(t, err)
			entries := testutil.Entries{}
			for name, data := range stub {
				if name != tt.drop {
					entries[name] = string(data)
				}
			}
			for name, data := range tt.overlay {
				entries[name] = data
			}
			path := testutil.WriteArchive(t, t.TempDir(), "broken.zip", entries)
			ns := openNamespace(t, namespace.PolicyIsolated, nil, path)

			_, err = Bind(ns, Passthrough{}, Config{})
			require.ErrorIs(t, err, ErrWiring)
			assert.NotErrorIs(t, err, namespace.ErrSymbolNotFound)

			var we *WiringError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, RoleRun, we.Role)
			assert.Equal(t, "isoload.passthrough.Passthrough.run", we.Symbol)
			assert.Contains(t, we.Reason, tt.reason)
		})
	}
}

func TestBindSignatureWhitespace(t *testing.T) {
	path := stubArchive(t, Passthrough{}, testutil.Entries{}.
		Add("isoload.passthrough.Passthrough.run", namespace.KindFunc, "func( string )   string"))
	ns := openNamespace(t, namespace.PolicyIsolated, nil, path)

	_, err := Bind(ns, Passthrough{}, Config{})
	// Inner whitespace is collapsed, not removed, so "( string )" differs from "(string)".
	assert.ErrorIs(t, err, ErrWiring)

	path = stubArchive(t, Passthrough{}, testutil.Entries{}.
		Add("isoload.passthrough.Passthrough.run", namespace.KindFunc, "  func(string)\n\tstring "))
	ns = openNamespace(t, namespace.PolicyIsolated, nil, path)

	_, err = Bind(ns, Passthrough{}, Config{})
	assert.NoError(t, err)
}

func TestBindMalformedSymbolIsNotWiring(t *testing.T) {
	path := stubArchive(t, Passthrough{}, testutil.Entries{
		"isoload/passthrough/Settings.sym": "kind = [",
	})
	ns := openNamespace(t, namespace.PolicyIsolated, nil, path)

	_, err := Bind(ns, Passthrough{}, Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, namespace.ErrMalformedSymbol)
	assert.NotErrorIs(t, err, ErrWiring)
}

func TestPassthrough(t *testing.T) {
	ns := openNamespace(t, namespace.PolicyIsolated, nil, stubArchive(t, Passthrough{}, nil))
	b, err := Bind(ns, Passthrough{}, Config{})
	require.NoError(t, err)

	s, err := Passthrough{}.Configure(context.Background(), b, Config{})
	require.NoError(t, err)
	r, err := Passthrough{}.Construct(b, s)
	require.NoError(t, err)

	out, err := r.Run("abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)

	_, err = Passthrough{}.Configure(context.Background(), b, Config{ConfigFile: "lint.toml"})
	assert.ErrorIs(t, err, ErrUnsupported)
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, PassthroughName, ue.Module)
}

func TestLintErrorMessage(t *testing.T) {
	tests := []struct {
		name  string
		diags []Diagnostic
		want  string
	}{
		{
			name:  "single",
			diags: []Diagnostic{{Line: 3, Column: 7, Detail: "Forbidden FIXME comment"}},
			want:  "Error on line: 3, column: 7\nForbidden FIXME comment",
		},
		{
			name: "several",
			diags: []Diagnostic{
				{Line: 1, Column: 1, Detail: "first"},
				{Line: 2, Column: 1, Detail: "second"},
			},
			want: "Error on line: 1, column: 1\nfirst\n(and 1 more)",
		},
		{name: "empty", want: ErrLint.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &LintError{Diagnostics: tt.diags}
			if got := err.Error(); got != tt.want {
				t.Errorf("LintError.Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(err, ErrLint) {
				t.Error("LintError does not unwrap to ErrLint")
			}
		})
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Rule: "trailing-whitespace", Detail: "Trailing whitespace", Line: 2, Column: 4, Corrected: true}
	if got, want := d.String(), "2:4 trailing-whitespace Trailing whitespace (corrected)"; got != want {
		t.Errorf("Diagnostic.String() = %q, want %q", got, want)
	}
}

func TestRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{LintName, PassthroughName}, r.Names())

	a, ok := r.Lookup(PassthroughName)
	require.True(t, ok)
	assert.Equal(t, PassthroughName, a.Name())

	err := r.Register(Passthrough{})
	assert.ErrorIs(t, err, ErrDuplicateModule)

	_, err = r.Get("ktlint")
	require.ErrorIs(t, err, ErrUnknownModule)
	assert.True(t, strings.Contains(err.Error(), "passthrough"), "error should list available modules: %v", err)
}

func TestNewRegistryPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() { NewRegistry(Lint{}, Lint{}) })
}
