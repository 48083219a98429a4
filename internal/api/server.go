// Package api serves the Coordinator over a JSON HTTP API.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dfs-go/internal/auth"
	"dfs-go/internal/dfs"
)

// Server exposes the file operations of a Coordinator to authenticated users.
type Server struct {
	coord  *dfs.Coordinator
	auth   *auth.Service
	logger dfs.Logger
	engine *gin.Engine
}

// NewServer creates the API. /metrics is served only when promReg is non-nil.
func NewServer(coord *dfs.Coordinator, authSvc *auth.Service, promReg *prometheus.Registry, logger dfs.Logger) *Server {
	s := &Server{
		coord:  coord,
		auth:   authSvc,
		logger: logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), RequestLogger(logger))
	s.registerRoutes(promReg)
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(promReg *prometheus.Registry) {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if promReg != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.register)
		authGroup.POST("/login", s.login)
		authGroup.POST("/logout", RequireSession(s.auth), s.logout)
	}

	protected := api.Group("")
	protected.Use(RequireSession(s.auth))
	{
		protected.GET("/me", s.me)
		protected.GET("/list", s.list)
		protected.GET("/peers", s.peers)

		protected.POST("/directories", s.mkdir)

		files := protected.Group("/files")
		{
			files.POST("/upload", s.upload)
			files.POST("/download", s.download)
			files.POST("/delete", s.delete)
			files.POST("/move", s.move)
		}

		shares := protected.Group("/shares")
		{
			shares.POST("", s.share)
			shares.POST("/revoke", s.revoke)
		}
	}
}
