// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/lazymod"
)

type (
	// moduleFlags are the descriptor flags shared by run, resolve and lookup.
	moduleFlags struct {
		version      string
		coordinate   string
		script       bool
		moduleConfig string
	}

	runFlags struct {
		moduleFlags
		check bool
		write bool
	}
)

func (f *moduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.version, "version", "", "artifact version (default: configured, else the module's default)")
	cmd.Flags().StringVar(&f.coordinate, "coordinate", "", "artifact coordinate 'group:artifact:' (default: the module's own)")
	cmd.Flags().BoolVar(&f.script, "script", false, "use the module's script entry point")
	cmd.Flags().StringVar(&f.moduleConfig, "module-config", "", "module configuration file")
}

// scriptOverride returns the --script value only when it was given.
func (f *moduleFlags) scriptOverride(cmd *cobra.Command) *bool {
	if !cmd.Flags().Changed("script") {
		return nil
	}
	return &f.script
}

func newRunCommand(app *App) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <module> [file]",
		Short: "Apply a module to a file or stdin",
		Long: `Apply a module to the contents of a file, or stdin when the file is
omitted or "-". The result is printed to stdout unless --write or --check
is given. Diagnostics are reported on stderr.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 2 {
				path = args[1]
			}
			return app.run(cmd, args[0], path, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.check, "check", false, "exit with status 1 when the module would change the input")
	cmd.Flags().BoolVarP(&flags.write, "write", "w", false, "write the result back to the file")
	cmd.MarkFlagsMutuallyExclusive("check", "write")
	return cmd
}

func (a *App) run(cmd *cobra.Command, name, path string, flags runFlags) error {
	if flags.write && path == "-" {
		return errors.New("--write needs a file argument")
	}
	input, err := a.readInput(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	d, err := a.descriptor(s, name, flags.version, flags.coordinate, flags.moduleConfig, flags.scriptOverride(cmd))
	if err != nil {
		return err
	}

	label := path
	if label == "-" {
		label = "<stdin>"
	}
	opts := append(a.moduleOptions(s), lazymod.WithReporter(a.diagnosticPrinter(label)))
	m, err := lazymod.New(d.Name, d.Version, d.Coordinate, d.Config, s.repo, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			s.logger.Warn("failed to close module", "err", err)
		}
	}()

	fn, err := m.Materialize(ctx)
	if err != nil {
		return err
	}
	out, err := fn(input)
	if err != nil {
		return err
	}

	switch {
	case flags.check:
		if out != input {
			fmt.Fprintf(a.stderr, "%s %s would be changed by %s\n", WarningStyle.Render("!"), label, name)
			return &ExitError{Code: 1}
		}
		return nil
	case flags.write:
		if out == input {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(a.stderr, "%s %s\n", SuccessStyle.Render("✓ updated"), path)
		return nil
	default:
		_, err := io.WriteString(a.stdout, out)
		return err
	}
}

func (a *App) readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

// diagnosticPrinter reports corrected diagnostics as "file:line:col rule
// detail". Uncorrected ones reach the user through the module's logger and
// the returned error.
func (a *App) diagnosticPrinter(label string) adapter.Reporter {
	return func(d adapter.Diagnostic) {
		if !d.Corrected {
			return
		}
		fmt.Fprintf(a.stderr, "%s:%s\n", CmdStyle.Render(label), SubtitleStyle.Render(d.String()))
	}
}
