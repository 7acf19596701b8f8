// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/isoload/isoload/internal/testutil"
)

func TestCoordinateIsValid(t *testing.T) {
	tests := []struct {
		value Coordinate
		want  bool
	}{
		{"org.example:linter-plugin:", true},
		{"io.example.lint:lint-gradle-plugin:", true},
		{"org.example:linter-plugin", false},
		{"org.example:linter-plugin:1.0.0", false},
		{":linter-plugin:", false},
		{"org.example::", false},
		{"org/example:lint:", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			ok, errs := tt.value.IsValid()
			if ok != tt.want {
				t.Errorf("Coordinate(%q).IsValid() = %v, want %v (errors: %v)", tt.value, ok, tt.want, errs)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidCoordinate) {
				t.Errorf("Coordinate(%q).IsValid() error = %v, want ErrInvalidCoordinate", tt.value, errs[0])
			}
		})
	}
}

func TestCoordinateParts(t *testing.T) {
	c := Coordinate("org.example:linter-plugin:")
	if got := c.Group(); got != "org.example" {
		t.Errorf("Group() = %q, want %q", got, "org.example")
	}
	if got := c.Artifact(); got != "linter-plugin" {
		t.Errorf("Artifact() = %q, want %q", got, "linter-plugin")
	}
	if got := c.WithVersion("1.0.0"); got != "org.example:linter-plugin:1.0.0" {
		t.Errorf("WithVersion() = %q", got)
	}
}

func TestGetDefaultRepositoryDir(t *testing.T) {
	t.Run("with env var", func(t *testing.T) {
		t.Cleanup(testutil.MustSetenv(t, RepositoryPathEnv, "/custom/repository"))

		got, err := GetDefaultRepositoryDir()
		if err != nil {
			t.Fatalf("GetDefaultRepositoryDir() error = %v", err)
		}
		if got != "/custom/repository" {
			t.Errorf("GetDefaultRepositoryDir() = %q, want %q", got, "/custom/repository")
		}
	})

	t.Run("without env var", func(t *testing.T) {
		home := t.TempDir()
		t.Cleanup(testutil.MustUnsetenv(t, RepositoryPathEnv))
		t.Cleanup(testutil.SetHomeDir(t, home))

		got, err := GetDefaultRepositoryDir()
		if err != nil {
			t.Fatalf("GetDefaultRepositoryDir() error = %v", err)
		}
		want := filepath.Join(home, ".isoload", DefaultRepositoryDir)
		if got != want {
			t.Errorf("GetDefaultRepositoryDir() = %q, want %q", got, want)
		}
	})
}

func TestRepositoryResolve(t *testing.T) {
	const coord Coordinate = "org.example:linter-plugin:"
	repo, err := NewRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}

	main, err := repo.Install(coord, "1.0.0", []byte("not inspected"))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	wantMain := filepath.Join(repo.Root, "org", "example", "linter-plugin", "1.0.0", "linter-plugin-1.0.0.zip")
	if main != wantMain {
		t.Fatalf("Install() path = %q, want %q", main, wantMain)
	}

	t.Run("main archive only", func(t *testing.T) {
		got, err := repo.Resolve(context.Background(), coord, "1.0.0")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if len(got) != 1 || got[0] != main {
			t.Errorf("Resolve() = %v, want [%s]", got, main)
		}
	})

	t.Run("deps file appends archives in order", func(t *testing.T) {
		dir := repo.VersionDir(coord, "1.0.0")
		for _, rel := range []string{"lib/a.zip", "lib/b.zip"} {
			p := filepath.Join(dir, filepath.FromSlash(rel))
			testutil.WriteArchive(t, filepath.Dir(p), filepath.Base(p), testutil.Entries{"x": "y"})
		}
		deps := "archives = [\"lib/a.zip\", \"lib/b.zip\"]\n"
		if err := os.WriteFile(filepath.Join(dir, "linter-plugin-1.0.0.deps.toml"), []byte(deps), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Remove(filepath.Join(dir, "linter-plugin-1.0.0.deps.toml")) })

		got, err := repo.Resolve(context.Background(), coord, "1.0.0")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := []string{main, filepath.Join(dir, "lib", "a.zip"), filepath.Join(dir, "lib", "b.zip")}
		if len(got) != len(want) {
			t.Fatalf("Resolve() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Resolve()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := repo.Resolve(context.Background(), coord, "2.0.0")
		if !errors.Is(err, ErrResolution) {
			t.Fatalf("Resolve() error = %v, want ErrResolution", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Resolve() error = %v, want to wrap os.ErrNotExist", err)
		}
		var re *ResolutionError
		if !errors.As(err, &re) || re.Version != "2.0.0" || re.Coordinate != coord {
			t.Errorf("Resolve() error = %#v, want ResolutionError naming the artifact", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		if _, err := repo.Resolve(context.Background(), "bad", "1.0.0"); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("Resolve(bad coordinate) error = %v, want ErrInvalidCoordinate", err)
		}
		if _, err := repo.Resolve(context.Background(), coord, "../1.0.0"); !errors.Is(err, ErrResolution) {
			t.Errorf("Resolve(bad version) error = %v, want ErrResolution", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := repo.Resolve(ctx, coord, "1.0.0"); !errors.Is(err, context.Canceled) {
			t.Errorf("Resolve() error = %v, want context.Canceled", err)
		}
	})
}

func TestCounting(t *testing.T) {
	inner := ResolverFunc(func(context.Context, Coordinate, string) ([]string, error) {
		return []string{"a.zip"}, nil
	})
	c := NewCounting(inner)
	for range 3 {
		if _, err := c.Resolve(context.Background(), "g:a:", "1"); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if c.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", c.Calls())
	}
}
