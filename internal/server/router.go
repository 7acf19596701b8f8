// SPDX-License-Identifier: MPL-2.0

package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/lazymod"
	"github.com/isoload/isoload/pkg/namespace"
)

type (
	applyRequest struct {
		Version    string `json:"version"`
		Coordinate string `json:"coordinate"`
		Script     *bool  `json:"script"`
		ConfigFile string `json:"config_file"`
		Input      string `json:"input"`
	}

	applyResponse struct {
		Module string `json:"module"`
		Output string `json:"output"`
	}

	errorResponse struct {
		Error       string               `json:"error"`
		Stage       lazymod.Stage        `json:"stage,omitempty"`
		Diagnostics []adapter.Diagnostic `json:"diagnostics,omitempty"`
	}

	moduleInfo struct {
		Name           string               `json:"name"`
		Policy         namespace.PolicyKind `json:"policy"`
		Coordinate     artifact.Coordinate  `json:"coordinate"`
		DefaultVersion string               `json:"default_version"`
		Concurrent     bool                 `json:"concurrent"`
	}

	poolEntry struct {
		lazymod.Descriptor
		Key string `json:"key"`
	}
)

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1")
	v1.Use(bearerAuth(s.opts.Token))
	v1.GET("/modules", s.handleModules)
	v1.POST("/modules/:name/apply", s.handleApply)
	v1.GET("/pool", s.handlePool)
	v1.DELETE("/pool", s.handleDrain)
	return r
}

// bearerAuth rejects requests without the token. An empty token disables it.
func bearerAuth(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleModules(c *gin.Context) {
	names := s.registry.Names()
	out := make([]moduleInfo, 0, len(names))
	for _, name := range names {
		a, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, moduleInfo{
			Name:           a.Name(),
			Policy:         a.Policy(),
			Coordinate:     a.Coordinate(),
			DefaultVersion: a.DefaultVersion(),
			Concurrent:     a.Concurrent(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

func (s *Server) handlePool(c *gin.Context) {
	descs := s.pool.Descriptors()
	out := make([]poolEntry, 0, len(descs))
	for _, d := range descs {
		out = append(out, poolEntry{Descriptor: d, Key: d.Key()})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

func (s *Server) handleDrain(c *gin.Context) {
	evicted, err := s.pool.Evict(func(*lazymod.Module) bool { return true })
	if err != nil {
		s.logger.Warn("failed to close evicted modules", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"evicted": len(evicted)})
}

func (s *Server) handleApply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	name := c.Param("name")
	if _, err := s.registry.Get(name); err != nil {
		s.fail(c, err)
		return
	}
	d := s.descriptor(name, req)
	m, err := s.pool.Get(d)
	if err != nil {
		s.fail(c, err)
		return
	}
	fn, err := s.pool.Materialize(c.Request.Context(), m.Descriptor())
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := fn(req.Input)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, applyResponse{Module: m.Descriptor().String(), Output: out})
}

// descriptor fills the fields req omits from the configured module defaults,
// then from the module's built-in default version.
func (s *Server) descriptor(name string, req applyRequest) lazymod.Descriptor {
	defaults, _ := s.opts.Defaults(name)
	d := lazymod.Descriptor{
		Name:       name,
		Version:    firstNonEmpty(req.Version, defaults.Version),
		Coordinate: artifact.Coordinate(firstNonEmpty(req.Coordinate, defaults.Coordinate)),
		Config: lazymod.Config{
			Script:     defaults.Script,
			ConfigFile: firstNonEmpty(req.ConfigFile, defaults.ConfigFile),
		},
	}
	if req.Script != nil {
		d.Config.Script = *req.Script
	}
	if a, ok := s.registry.Lookup(name); ok && d.Version == "" {
		d.Version = a.DefaultVersion()
	}
	return d
}

func (s *Server) fail(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		me *lazymod.MaterializeError
		le *adapter.LintError
	)
	if errors.As(err, &me) {
		resp.Stage = me.Stage
	}
	switch {
	case errors.As(err, &le):
		status = http.StatusUnprocessableEntity
		resp.Diagnostics = le.Diagnostics
	case errors.Is(err, adapter.ErrUnknownModule):
		status = http.StatusNotFound
	case errors.Is(err, adapter.ErrUnsupported),
		errors.Is(err, artifact.ErrInvalidCoordinate),
		errors.Is(err, lazymod.ErrMissingVersion):
		status = http.StatusBadRequest
	case errors.Is(err, artifact.ErrResolution), errors.Is(err, adapter.ErrWiring):
		status = http.StatusFailedDependency
	case errors.Is(err, lazymod.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("apply failed", "err", err)
	}
	c.JSON(status, resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
