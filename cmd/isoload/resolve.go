// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(app *App) *cobra.Command {
	var flags moduleFlags
	cmd := &cobra.Command{
		Use:   "resolve <module>",
		Short: "Show the archives a module resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.session(ctx)
			if err != nil {
				return err
			}
			d, err := app.descriptor(s, args[0], flags.version, flags.coordinate, flags.moduleConfig, flags.scriptOverride(cmd))
			if err != nil {
				return err
			}
			locations, err := s.repo.Resolve(ctx, d.Coordinate, d.Version)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render(d.String()))
			fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("key"), d.Key())
			for _, loc := range locations {
				fmt.Fprintf(app.stdout, "  %s\n", loc)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
