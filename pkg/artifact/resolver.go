// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
)

const (
	// RepositoryPathEnv overrides the default repository root.
	RepositoryPathEnv = "ISOLOAD_REPOSITORY"

	// DefaultRepositoryDir is the default subdirectory within ~/.isoload.
	DefaultRepositoryDir = "repository"

	archiveExt = ".zip"
	depsExt    = ".deps.toml"
)

// ErrResolution is the sentinel error wrapped by ResolutionError.
var ErrResolution = errors.New("artifact resolution failed")

type (
	// Resolver maps a coordinate and version to local archive locations, in the
	// order they must be searched.
	Resolver interface {
		Resolve(ctx context.Context, coordinate Coordinate, version string) ([]string, error)
	}

	// ResolverFunc adapts a function to the Resolver interface.
	ResolverFunc func(ctx context.Context, coordinate Coordinate, version string) ([]string, error)

	// ResolutionError reports an I/O-kind failure to produce the archives of an artifact.
	ResolutionError struct {
		Coordinate Coordinate
		Version    string
		Cause      error
	}

	// Repository resolves artifacts from a local directory tree.
	Repository struct {
		// Root is the absolute repository root.
		Root string
	}

	// Counting decorates a Resolver and counts Resolve calls.
	Counting struct {
		Resolver Resolver
		calls    atomic.Int64
	}

	depsFile struct {
		Archives []string `toml:"archives"`
	}
)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, coordinate Coordinate, version string) ([]string, error) {
	return f(ctx, coordinate, version)
}

// Error implements the error interface for ResolutionError.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Coordinate.WithVersion(e.Version), e.Cause)
}

// Unwrap returns ErrResolution and the underlying cause.
func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrResolution}
	}
	return []error{ErrResolution, e.Cause}
}

// GetDefaultRepositoryDir returns the default repository root.
// It checks ISOLOAD_REPOSITORY first, then falls back to ~/.isoload/repository.
func GetDefaultRepositoryDir() (string, error) {
	if envPath := os.Getenv(RepositoryPathEnv); envPath != "" {
		return envPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".isoload", DefaultRepositoryDir), nil
}

// NewRepository creates a Repository rooted at root.
// An empty root uses GetDefaultRepositoryDir.
func NewRepository(root string) (*Repository, error) {
	if root == "" {
		var err error
		root, err = GetDefaultRepositoryDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get repository directory: %w", err)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository directory: %w", err)
	}
	return &Repository{Root: absRoot}, nil
}

// VersionDir returns the directory holding the archives of coordinate at version.
func (r *Repository) VersionDir(coordinate Coordinate, version string) string {
	parts := []string{r.Root}
	parts = append(parts, strings.Split(coordinate.Group(), ".")...)
	parts = append(parts, coordinate.Artifact(), version)
	return filepath.Join(parts...)
}

// ArchivePath returns where the main archive of coordinate at version lives.
func (r *Repository) ArchivePath(coordinate Coordinate, version string) string {
	return filepath.Join(r.VersionDir(coordinate, version), artifactFileName(coordinate, version)+archiveExt)
}

// Resolve returns the main archive followed by any archives its deps file lists.
func (r *Repository) Resolve(ctx context.Context, coordinate Coordinate, version string) ([]string, error) {
	fail := func(err error) ([]string, error) {
		return nil, &ResolutionError{Coordinate: coordinate, Version: version, Cause: err}
	}

	select {
	case <-ctx.Done():
		return fail(ctx.Err())
	default:
	}

	if ok, errs := coordinate.IsValid(); !ok {
		return fail(errors.Join(errs...))
	}
	if strings.TrimSpace(version) == "" || strings.ContainsAny(version, `/\`) {
		return fail(fmt.Errorf("invalid version %q", version))
	}

	mainArchive := r.ArchivePath(coordinate, version)
	if err := requireFile(mainArchive); err != nil {
		return fail(err)
	}
	locations := []string{mainArchive}

	depsPath := filepath.Join(r.VersionDir(coordinate, version), artifactFileName(coordinate, version)+depsExt)
	data, err := os.ReadFile(depsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return locations, nil
	case err != nil:
		return fail(fmt.Errorf("failed to read deps file: %w", err))
	}

	var deps depsFile
	if err := toml.Unmarshal(data, &deps); err != nil {
		return fail(fmt.Errorf("failed to parse %s: %w", depsPath, err))
	}
	for _, rel := range deps.Archives {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.VersionDir(coordinate, version), filepath.FromSlash(rel))
		}
		if err := requireFile(path); err != nil {
			return fail(err)
		}
		locations = append(locations, path)
	}
	return locations, nil
}

// NewCounting wraps r.
func NewCounting(r Resolver) *Counting {
	return &Counting{Resolver: r}
}

// Resolve forwards to the wrapped resolver and counts the call.
func (c *Counting) Resolve(ctx context.Context, coordinate Coordinate, version string) ([]string, error) {
	c.calls.Add(1)
	return c.Resolver.Resolve(ctx, coordinate, version)
}

// Calls returns the number of Resolve calls so far.
func (c *Counting) Calls() int64 { return c.calls.Load() }

func artifactFileName(coordinate Coordinate, version string) string {
	return coordinate.Artifact() + "-" + version
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("archive %s is a directory", path)
	}
	return nil
}

// Install writes archive as the main archive of coordinate at version and
// returns its path. An existing archive is replaced.
func (r *Repository) Install(coordinate Coordinate, version string, archive []byte) (string, error) {
	if ok, errs := coordinate.IsValid(); !ok {
		return "", errors.Join(errs...)
	}
	path := r.ArchivePath(coordinate, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return path, nil
}
