// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/isoload/isoload/internal/config"
	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/lazymod"
)

const shutdownTimeout = 5 * time.Second

type (
	// Options configures New.
	Options struct {
		// Addr is the listen address. Empty selects config.DefaultServerAddr;
		// a ":0" port picks a free one.
		Addr string
		// Token, when set, is required as "Authorization: Bearer <token>" on
		// every /v1 route.
		Token string
		// Logger records requests and pool events.
		Logger *log.Logger
		// Defaults returns per-module defaults for fields a request omits.
		Defaults func(name string) (config.ModuleEntry, bool)
		// Repository, when set, is the repository Invalidate maps changed
		// paths against.
		Repository *artifact.Repository
	}

	// Server serves module applications from a pool.
	Server struct {
		pool       *lazymod.Pool
		registry   *adapter.Registry
		opts       Options
		logger     *log.Logger
		engine     *gin.Engine
		httpServer *http.Server
		listener   net.Listener
		running    atomic.Bool
	}
)

// New creates a server listening on opts.Addr. It does not serve until Start
// or Serve is called.
func New(pool *lazymod.Pool, registry *adapter.Registry, opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = config.DefaultServerAddr
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Defaults == nil {
		opts.Defaults = func(string) (config.ModuleEntry, bool) { return config.ModuleEntry{}, false }
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}

	s := &Server{
		pool:     pool,
		registry: registry,
		opts:     opts,
		logger:   opts.Logger.WithPrefix("serve"),
		listener: listener,
	}
	s.engine = s.newRouter()
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// GenerateToken returns a random hex token for Options.Token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.engine }

// Address returns the listen address, e.g. "127.0.0.1:8787".
func (s *Server) Address() string { return s.listener.Addr().String() }

// URL returns the base URL of the server.
func (s *Server) URL() string { return "http://" + s.Address() }

// IsRunning reports whether Start or Serve is active.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Start serves in the background.
func (s *Server) Start() {
	s.running.Store(true)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", "err", err)
		}
		s.running.Store(false)
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Serve blocks serving requests until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	s.running.Store(true)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()
	s.logger.Info("serving modules", "addr", s.URL())

	select {
	case err := <-errCh:
		s.running.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.running.Store(false)
	return err
}

// Invalidate evicts the pooled modules affected by a repository change: a
// changed path inside a module's version directory, or one of the archives
// the module was materialized from. Paths are relative to the repository
// root and slash-separated, as reported by the repository watcher.
func (s *Server) Invalidate(_ context.Context, changed []string) error {
	if s.opts.Repository == nil || len(changed) == 0 {
		return nil
	}
	repo := s.opts.Repository
	abs := make([]string, 0, len(changed))
	for _, path := range changed {
		abs = append(abs, filepath.Join(repo.Root, filepath.FromSlash(path)))
	}

	evicted, err := s.pool.Evict(func(m *lazymod.Module) bool {
		d := m.Descriptor()
		dir := repo.VersionDir(d.Coordinate, d.Version) + string(filepath.Separator)
		locations := m.Locations()
		for _, path := range abs {
			if strings.HasPrefix(path, dir) || slices.ContainsFunc(locations, func(loc string) bool {
				return affects(loc, path)
			}) {
				return true
			}
		}
		return false
	})
	for _, d := range evicted {
		s.logger.Info("evicted module after repository change", "module", d.String())
	}
	return err
}

// affects reports whether a change to path touches the archive location loc.
// Directory locations end in "/" and cover everything below them.
func affects(loc, path string) bool {
	if strings.HasSuffix(loc, "/") {
		return strings.HasPrefix(path, filepath.Clean(loc)+string(filepath.Separator))
	}
	return filepath.Clean(loc) == path
}
