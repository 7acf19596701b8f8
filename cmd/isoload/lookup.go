// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isoload/isoload/pkg/lazymod"
	"github.com/isoload/isoload/pkg/namespace"
)

func newLookupCommand(app *App) *cobra.Command {
	var (
		flags    moduleFlags
		resource bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <module> <name>",
		Short: "Look a symbol or resource up in a module's namespace",
		Long: `Look a symbol up in the namespace a module would be wired from, using
the module's delegation policy. With --resource, name is a resource and every
location providing it is listed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.lookup(cmd, args[0], args[1], flags, resource)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&resource, "resource", false, "look up a resource instead of a symbol")
	return cmd
}

func (a *App) lookup(cmd *cobra.Command, module, name string, flags moduleFlags, resource bool) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	d, err := a.descriptor(s, module, flags.version, flags.coordinate, flags.moduleConfig, flags.scriptOverride(cmd))
	if err != nil {
		return err
	}
	ad, err := a.Registry.Get(module)
	if err != nil {
		return err
	}
	locations, err := s.repo.Resolve(ctx, d.Coordinate, d.Version)
	if err != nil {
		return err
	}
	ns, err := namespace.New(locations, ad.Policy(), lazymod.NewHost(s.logger),
		namespace.WithBridgePrefixes(s.cfg.BridgePrefixes...),
		namespace.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := ns.Close(); err != nil {
			s.logger.Warn("failed to close namespace", "err", err)
		}
	}()

	fmt.Fprintf(a.stdout, "%s %s\n", SubtitleStyle.Render("policy:"), ns.Policy())
	if resource {
		refs, err := ns.Resources(name)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Fprintf(a.stdout, "%s %s\n", WarningStyle.Render("not found:"), name)
			return &ExitError{Code: 1}
		}
		for _, ref := range refs {
			fmt.Fprintln(a.stdout, ref.String())
		}
		return nil
	}

	sym, err := namespace.Require(ns, name)
	if err != nil {
		return err
	}
	row := func(key, value string) {
		if value != "" {
			fmt.Fprintf(a.stdout, "%s %s\n", CmdStyle.Render(key+":"), value)
		}
	}
	row("symbol", sym.Name)
	row("kind", sym.Kind)
	row("signature", sym.Signature)
	row("origin", sym.Origin)
	row("doc", sym.Doc)
	if sym.Value != nil {
		row("value", fmt.Sprintf("%T", sym.Value))
	}
	return nil
}
