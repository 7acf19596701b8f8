// SPDX-License-Identifier: MPL-2.0

package lazymod

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
)

func TestPoolSharesEqualDescriptors(t *testing.T) {
	repo := newRepository(t)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, pluginVersion)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, "1.0.1")
	counting := artifact.NewCounting(repo)

	pool := NewPool(counting)
	t.Cleanup(func() { require.NoError(t, pool.Close()) })

	d := Descriptor{Name: adapter.PassthroughName, Version: pluginVersion, Coordinate: pluginCoordinate}
	first, err := pool.Get(d)
	require.NoError(t, err)
	second, err := pool.Get(d)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := pool.Get(Descriptor{Name: adapter.PassthroughName, Version: "1.0.1", Coordinate: pluginCoordinate})
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, pool.Len())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn, err := pool.Materialize(context.Background(), d)
			if assert.NoError(t, err) {
				out, err := fn("abc")
				assert.NoError(t, err)
				assert.Equal(t, "abc", out)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), counting.Calls())
}

func TestPoolNormalizesDefaultCoordinate(t *testing.T) {
	pool := NewPool(newRepository(t))
	t.Cleanup(func() { require.NoError(t, pool.Close()) })

	implicit, err := pool.Get(Descriptor{Name: adapter.LintName, Version: adapter.LintVersion})
	require.NoError(t, err)
	explicit, err := pool.Get(Descriptor{Name: adapter.LintName, Version: adapter.LintVersion, Coordinate: adapter.LintCoordinate})
	require.NoError(t, err)
	assert.Same(t, implicit, explicit)
	assert.Equal(t, 1, pool.Len())
}

func TestPoolRejectsInvalidDescriptors(t *testing.T) {
	pool := NewPool(newRepository(t))

	_, err := pool.Get(Descriptor{Name: "ktlint", Version: "1.0.0"})
	assert.ErrorIs(t, err, adapter.ErrUnknownModule)
	_, err = pool.Materialize(context.Background(), Descriptor{Name: adapter.LintName})
	assert.ErrorIs(t, err, ErrMissingVersion)
	assert.Zero(t, pool.Len())
}

func TestPoolDescriptorsAndClose(t *testing.T) {
	pool := NewPool(newRepository(t))
	lint := Descriptor{Name: adapter.LintName, Version: adapter.LintVersion, Coordinate: adapter.LintCoordinate}
	pass := Descriptor{Name: adapter.PassthroughName, Version: adapter.PassthroughVersion, Coordinate: adapter.PassthroughCoordinate}

	_, err := pool.Get(pass)
	require.NoError(t, err)
	m, err := pool.Get(lint)
	require.NoError(t, err)

	assert.Equal(t, []Descriptor{lint, pass}, pool.Descriptors())

	require.NoError(t, pool.Close())
	assert.Zero(t, pool.Len())
	_, err = m.Materialize(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolEvict(t *testing.T) {
	repo := newRepository(t)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, pluginVersion)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, "1.0.1")
	counting := artifact.NewCounting(repo)

	pool := NewPool(counting)
	t.Cleanup(func() { require.NoError(t, pool.Close()) })

	stale := Descriptor{Name: adapter.PassthroughName, Version: pluginVersion, Coordinate: pluginCoordinate}
	kept := Descriptor{Name: adapter.PassthroughName, Version: "1.0.1", Coordinate: pluginCoordinate}
	staleModule, err := pool.Get(stale)
	require.NoError(t, err)
	_, err = staleModule.Materialize(context.Background())
	require.NoError(t, err)
	_, err = pool.Get(kept)
	require.NoError(t, err)

	evicted, err := pool.Evict(func(m *Module) bool { return m.Descriptor().Version == pluginVersion })
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.True(t, evicted[0].Equal(stale))
	assert.Equal(t, 1, pool.Len())

	_, err = staleModule.Materialize(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	fresh, err := pool.Get(stale)
	require.NoError(t, err)
	assert.NotSame(t, staleModule, fresh)
	fn, err := fresh.Materialize(context.Background())
	require.NoError(t, err)
	out, err := fn("again")
	require.NoError(t, err)
	assert.Equal(t, "again", out)
	assert.Equal(t, int64(2), counting.Calls())

	evicted, err = pool.Evict(func(*Module) bool { return false })
	require.NoError(t, err)
	assert.Empty(t, evicted)
}

func TestPoolMaterializeIgnoresCallerCancellation(t *testing.T) {
	repo := newRepository(t)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, pluginVersion)
	counting := artifact.NewCounting(repo)
	pool := NewPool(counting)
	t.Cleanup(func() { require.NoError(t, pool.Close()) })
	d := Descriptor{Name: adapter.PassthroughName, Version: pluginVersion, Coordinate: pluginCoordinate}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn, err := pool.Materialize(ctx, d)
	require.NoError(t, err)
	out, err := fn("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", out)

	_, err = pool.Materialize(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counting.Calls())
}

func TestModuleLocations(t *testing.T) {
	repo := newRepository(t)
	installStub(t, repo, adapter.Passthrough{}, pluginCoordinate, pluginVersion)
	pool := NewPool(repo)
	t.Cleanup(func() { require.NoError(t, pool.Close()) })

	m, err := pool.Get(Descriptor{Name: adapter.PassthroughName, Version: pluginVersion, Coordinate: pluginCoordinate})
	require.NoError(t, err)
	assert.Nil(t, m.Locations(), "no locations before first use")

	_, err = m.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{repo.ArchivePath(pluginCoordinate, pluginVersion)}, m.Locations())

	require.NoError(t, m.Close())
	assert.Nil(t, m.Locations())
}
