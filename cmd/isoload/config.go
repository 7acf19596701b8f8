// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isoload/isoload/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage isoload configuration",
		Long: `Manage isoload configuration.

Configuration is stored in config.cue under the user configuration directory:
  - Linux: ~/.config/isoload/config.cue
  - macOS: ~/Library/Application Support/isoload/config.cue
  - Windows: %AppData%\isoload\config.cue

Every setting can be overridden with an ISOLOAD_ environment variable, e.g.
ISOLOAD_LOG_LEVEL=debug or ISOLOAD_SERVER_ADDR=0.0.0.0:8787.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configPath})
			if err != nil {
				return err
			}
			showConfig(app.stdout, cfg, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ config:"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configPath})
			if err != nil {
				return err
			}
			_, err = io.WriteString(app.stdout, config.GenerateCUE(cfg))
			return err
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path == "" {
		path = SubtitleStyle.Render("(using defaults)")
	}
	fmt.Fprintf(w, "%s: %s\n\n", CmdStyle.Render("Config file"), path)

	repo, err := cfg.RepositoryDir()
	if err != nil {
		repo = err.Error()
	}
	kv := func(key, value string) {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), SuccessStyle.Render(value))
	}
	kv("repository", repo)
	kv("log_level", cfg.LogLevel.String())
	kv("bridge_prefixes", fmt.Sprint(cfg.BridgePrefixes))
	kv("server.addr", cfg.Server.Addr)

	if len(cfg.Modules) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Modules"))
		for _, m := range cfg.Modules {
			fmt.Fprintf(w, "  %s", CmdStyle.Render(m.Name))
			if m.Version != "" {
				fmt.Fprintf(w, " version=%s", m.Version)
			}
			if m.Coordinate != "" {
				fmt.Fprintf(w, " coordinate=%s", m.Coordinate)
			}
			if m.Script {
				fmt.Fprint(w, " script")
			}
			if m.ConfigFile != "" {
				fmt.Fprintf(w, " config_file=%s", m.ConfigFile)
			}
			fmt.Fprintln(w)
		}
	}
}
