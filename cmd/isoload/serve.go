// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/isoload/isoload/internal/server"
	"github.com/isoload/isoload/internal/watch"
	"github.com/isoload/isoload/pkg/lazymod"
)

func newServeCommand(app *App) *cobra.Command {
	var (
		addr          string
		token         string
		generateToken bool
		watchRepo     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep modules warm behind an HTTP API",
		Long: `Serve module applications over HTTP. Each distinct module descriptor is
materialized on its first request and reused afterwards.

  POST   /v1/modules/<name>/apply   {"input": "...", "version": "...", "script": true}
  GET    /v1/modules                list modules
  GET    /v1/pool                   list warm modules
  DELETE /v1/pool                   evict every warm module

With --watch, reinstalling an artifact evicts the modules built from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.session(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			if generateToken {
				if token, err = server.GenerateToken(); err != nil {
					return err
				}
				fmt.Fprintf(app.stderr, "%s %s\n", CmdStyle.Render("token:"), token)
			}

			pool := lazymod.NewPool(s.repo, app.moduleOptions(s)...)
			defer func() {
				if err := pool.Close(); err != nil {
					s.logger.Warn("failed to close pool", "err", err)
				}
			}()

			var (
				srv *server.Server
				w   *watch.Watcher
			)
			if watchRepo {
				if err := os.MkdirAll(s.repo.Root, 0o755); err != nil {
					return fmt.Errorf("failed to create repository: %w", err)
				}
				w, err = watch.New(watch.Config{
					Root:     s.repo.Root,
					Patterns: []string{"**/*.zip", "**/*.deps.toml"},
					OnChange: func(ctx context.Context, changed []string) error {
						return srv.Invalidate(ctx, changed)
					},
					Logger: s.logger.WithPrefix("watch"),
				})
				if err != nil {
					return err
				}
			}

			srv, err = server.New(pool, app.Registry, server.Options{
				Addr:       addr,
				Token:      token,
				Logger:     s.logger,
				Defaults:   s.cfg.Module,
				Repository: s.repo,
			})
			if err != nil {
				if w != nil {
					_ = w.Close() // Never ran; the listen error is the one to report
				}
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(gctx) })
			if w != nil {
				g.Go(func() error { return w.Run(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: configured server.addr)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token required on /v1 routes")
	cmd.Flags().BoolVar(&generateToken, "generate-token", false, "generate a random bearer token and print it")
	cmd.Flags().BoolVar(&watchRepo, "watch", false, "evict modules whose artifacts change in the repository")
	cmd.MarkFlagsMutuallyExclusive("token", "generate-token")
	return cmd
}
