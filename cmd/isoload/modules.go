// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newModulesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the available modules",
		Long: `List every module isoload can run, with its delegation policy, default
coordinate and version, and whether that version is installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.session(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0)
			for _, name := range app.Registry.Names() {
				ad, err := app.Registry.Get(name)
				if err != nil {
					return err
				}
				d, err := app.descriptor(s, name, "", "", "", nil)
				if err != nil {
					return err
				}
				_, statErr := os.Stat(s.repo.ArchivePath(d.Coordinate, d.Version))
				rows = append(rows, []string{
					name,
					ad.Policy().String(),
					d.Coordinate.WithVersion(d.Version),
					strconv.FormatBool(ad.Concurrent()),
					installedMark(statErr == nil),
				})
			}

			t := table.New().
				Border(lipgloss.HiddenBorder()).
				Headers("MODULE", "POLICY", "ARTIFACT", "CONCURRENT", "INSTALLED").
				Rows(rows...).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return tableHeaderStyle
					}
					return tableCellStyle
				})
			fmt.Fprintln(app.stdout, t.Render())
			fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("repository:"), s.repo.Root)
			return nil
		},
	}
}

func installedMark(ok bool) string {
	if ok {
		return SuccessStyle.Render("yes")
	}
	return WarningStyle.Render("no")
}
