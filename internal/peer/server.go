package peer

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dfs-go/internal/dfs"
)

type spaceResponse struct {
	FreeSpace int64 `json:"free_space"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Peer    string `json:"peer"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Server exposes a dfs.StoragePeer over HTTP so that a coordinator on another
// host can reach it through HTTPPeer.
type Server struct {
	peer   dfs.StoragePeer
	logger dfs.Logger
	engine *gin.Engine
}

// NewServer creates a server for peer.
func NewServer(peer dfs.StoragePeer, logger dfs.Logger) *Server {
	s := &Server{
		peer:   peer,
		logger: logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler serving the peer.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/space", s.space)

	files := s.engine.Group("/files")
	{
		files.PUT("/:id", s.store)
		files.GET("/:id", s.read)
		files.DELETE("/:id", s.delete)
		files.HEAD("/:id", s.exists)
	}
}

func (s *Server) health(c *gin.Context) {
	ok, err := s.peer.IsHealthy()
	resp := healthResponse{Peer: s.peer.ID(), Healthy: ok && err == nil}
	if err != nil {
		resp.Error = err.Error()
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) space(c *gin.Context) {
	free, err := s.peer.FreeSpace()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "free space", "", err)
		return
	}
	c.JSON(http.StatusOK, spaceResponse{FreeSpace: free})
}

func (s *Server) store(c *gin.Context) {
	id := c.Param("id")
	if err := checkID(id); err != nil {
		s.fail(c, http.StatusBadRequest, "store", id, err)
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "store", id, err)
		return
	}
	if data == nil {
		data = []byte{}
	}

	if err := s.peer.Store(id, data); err != nil {
		s.fail(c, http.StatusInternalServerError, "store", id, err)
		return
	}
	s.logger.Debug("blob stored", "file_id", id, "size", len(data))
	c.Status(http.StatusNoContent)
}

func (s *Server) read(c *gin.Context) {
	id := c.Param("id")
	data, err := s.peer.Read(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		s.fail(c, status, "read", id, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (s *Server) delete(c *gin.Context) {
	id := c.Param("id")
	if err := s.peer.Delete(id); err != nil {
		s.fail(c, http.StatusInternalServerError, "delete", id, err)
		return
	}
	s.logger.Debug("blob deleted", "file_id", id)
	c.Status(http.StatusNoContent)
}

func (s *Server) exists(c *gin.Context) {
	ok, err := s.peer.Exists(c.Param("id"))
	switch {
	case err != nil:
		c.Status(http.StatusInternalServerError)
	case ok:
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusNotFound)
	}
}

func (s *Server) fail(c *gin.Context, status int, op, id string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Warn("peer request failed", "op", op, "file_id", id, "error", err)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
