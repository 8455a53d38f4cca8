// Package http hosts the REST API: route registration, CORS policy, and the
// server lifecycle.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"smartagri-server-go/internal/platform/config"
	"smartagri-server-go/internal/transport/http/webapi"
)

// RouteRegistrar attaches a handler set to the versioned API group.
type RouteRegistrar interface {
	Register(apiGroup *gin.RouterGroup)
}

// Server owns the gin engine and the underlying HTTP listener.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the engine, applies CORS, and registers all handler sets
// under /api/v1.
func NewServer(cfg *config.Config, logger *slog.Logger, services ...RouteRegistrar) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.Web.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Web.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	apiGroup := engine.Group("/api/v1")
	for _, svc := range services {
		svc.Register(apiGroup)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Compile-time checks that the handler sets satisfy RouteRegistrar.
var (
	_ RouteRegistrar = (*webapi.DiagnoseService)(nil)
	_ RouteRegistrar = (*webapi.TaxonomyService)(nil)
	_ RouteRegistrar = (*webapi.UploadService)(nil)
	_ RouteRegistrar = (*webapi.SystemService)(nil)
)
