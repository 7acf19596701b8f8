// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/isoload/isoload/internal/config"
	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/lazymod"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App is the composition root of the CLI. Command handlers receive it and
	// build their services through it.
	App struct {
		Config   ConfigProvider
		Registry *adapter.Registry
		stdin    io.Reader
		stdout   io.Writer
		stderr   io.Writer

		// Set from persistent flags.
		configPath string
		repository string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Registry *adapter.Registry
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// session bundles what one command invocation resolves modules with.
	session struct {
		cfg    *config.Config
		logger *log.Logger
		repo   *artifact.Repository
	}
)

// NewApp builds an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		stdin:    deps.Stdin,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Registry == nil {
		app.Registry = adapter.Default()
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// session loads configuration and opens the artifact repository. The
// --repository flag takes precedence over the configured repository.
func (a *App) session(ctx context.Context) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(a.stderr, log.Options{Level: cfg.LogLevel.Level()})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	root := a.repository
	if root == "" {
		if root, err = cfg.RepositoryDir(); err != nil {
			return nil, err
		}
	}
	repo, err := artifact.NewRepository(root)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, repo: repo}, nil
}

// moduleOptions returns the lazymod options every command shares.
func (a *App) moduleOptions(s *session) []lazymod.Option {
	return []lazymod.Option{
		lazymod.WithRegistry(a.Registry),
		lazymod.WithLogger(s.logger),
		lazymod.WithBridgePrefixes(s.cfg.BridgePrefixes...),
	}
}

// descriptor merges explicit flag values over the configured module entry
// and the adapter defaults. Empty strings and a nil script mean "not given".
func (a *App) descriptor(s *session, name, version, coordinate, configFile string, script *bool) (lazymod.Descriptor, error) {
	ad, err := a.Registry.Get(name)
	if err != nil {
		return lazymod.Descriptor{}, err
	}
	entry, _ := s.cfg.Module(name)

	d := lazymod.Descriptor{
		Name:       name,
		Version:    firstNonEmpty(version, entry.Version, ad.DefaultVersion()),
		Coordinate: artifact.Coordinate(firstNonEmpty(coordinate, entry.Coordinate, string(ad.Coordinate()))),
		Config: lazymod.Config{
			Script:     entry.Script,
			ConfigFile: firstNonEmpty(configFile, entry.ConfigFile),
		},
	}
	if script != nil {
		d.Config.Script = *script
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
