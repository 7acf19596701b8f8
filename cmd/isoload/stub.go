// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isoload/isoload/pkg/adapter"
)

func newStubCommand(app *App) *cobra.Command {
	var (
		flags   moduleFlags
		output  string
		install bool
	)
	cmd := &cobra.Command{
		Use:   "stub <module>",
		Short: "Generate an artifact declaring a module's entry points",
		Long: `Generate a stub artifact declaring every entry point of a module, plus
the resources it ships by default. Use --install to place it in the
repository at the module's coordinate and version, or -o to write it to a
file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if install == (output != "") {
				return errors.New("exactly one of --install or --output is required")
			}
			ad, err := app.Registry.Get(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := adapter.WriteStub(&buf, ad); err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write stub: %w", err)
				}
				fmt.Fprintf(app.stderr, "%s %s\n", SuccessStyle.Render("✓ wrote"), output)
				return nil
			}

			s, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			d, err := app.descriptor(s, args[0], flags.version, flags.coordinate, "", nil)
			if err != nil {
				return err
			}
			path, err := s.repo.Install(d.Coordinate, d.Version, buf.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stderr, "%s %s\n", SuccessStyle.Render("✓ installed"), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.version, "version", "", "version to install as (default: configured, else the module's default)")
	cmd.Flags().StringVar(&flags.coordinate, "coordinate", "", "coordinate to install at (default: the module's own)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the stub archive to this file")
	cmd.Flags().BoolVar(&install, "install", false, "install the stub into the repository")
	return cmd
}
