// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the isoload command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "isoload",
		Short: "Run tool modules in isolated namespaces",
		Long: TitleStyle.Render("isoload") + SubtitleStyle.Render(" - run tool modules in isolated namespaces") + `

isoload resolves a module artifact by coordinate and version, opens it in a
namespace with the module's delegation policy, wires the module's entry
points and applies it to input. Modules materialize lazily, once.

` + SubtitleStyle.Render("Examples:") + `
  isoload modules                       List the available modules
  isoload stub lint --install           Install a stub artifact for lint
  isoload run lint Main.kt              Lint a file and print the result
  isoload run lint --check Main.kt      Fail when the file needs changes
  isoload serve --watch                 Keep modules warm behind HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is <user config dir>/isoload/config.cue)")
	root.PersistentFlags().StringVar(&app.repository, "repository", "", "artifact repository root (overrides the configured one)")

	root.AddCommand(
		newRunCommand(app),
		newResolveCommand(app),
		newLookupCommand(app),
		newStubCommand(app),
		newModulesCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's status. It is called by
// main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.verbose)
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
