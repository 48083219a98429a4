package api

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"dfs-go/internal/dfs"
	"dfs-go/internal/model"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type pathsRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type uploadItem struct {
	Path string `json:"path" binding:"required"`
	Data []byte `json:"data"` // base64 in JSON
}

type uploadRequest struct {
	Files []uploadItem `json:"files" binding:"required,min=1,dive"`
}

type moveItem struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type moveRequest struct {
	Moves []moveItem `json:"moves" binding:"required,min=1,dive"`
}

type shareRequest struct {
	Paths      []string `json:"paths" binding:"required,min=1"`
	Email      string   `json:"email" binding:"required"`
	Permission string   `json:"permission" binding:"required,oneof=read write"`
}

type revokeRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
	Email string   `json:"email" binding:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Root     string `json:"root"`
}

type uploadResult struct {
	Path    string     `json:"path"`
	FileID  int64      `json:"file_id,omitempty"`
	PeerIDs []string   `json:"peers,omitempty"`
	Error   *errorBody `json:"error"`
}

type downloadResult struct {
	Path   string     `json:"path"`
	Data   []byte     `json:"data"` // null for a failed item
	PeerID string     `json:"peer,omitempty"`
	Error  *errorBody `json:"error"`
}

type entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size,omitempty"`
	Directory bool      `json:"directory"`
	CreatedAt time.Time `json:"created_at"`
}

type peerResponse struct {
	ID        string    `json:"id"`
	Healthy   bool      `json:"healthy"`
	FreeSpace int64     `json:"free_space"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Root: dfs.UserRoot(u.ID)}
}

func bindError(c *gin.Context, err error) {
	failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := s.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, toUserResponse(user))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, user, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  toUserResponse(user),
	})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(c.GetString(ctxToken)); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, nil)
}

func (s *Server) me(c *gin.Context) {
	user, err := s.auth.Authenticate(c.GetString(ctxToken))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, toUserResponse(user))
}

func (s *Server) mkdir(c *gin.Context) {
	var req pathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := s.coord.CreateDirectories(req.Paths, c.GetInt64(ctxUserID)); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"created": req.Paths})
}

// upload answers 200 even when items failed; each item carries its own error.
func (s *Server) upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	paths := make([]string, len(req.Files))
	payloads := make([][]byte, len(req.Files))
	for i, f := range req.Files {
		paths[i] = f.Path
		payloads[i] = f.Data
	}

	results, err := s.coord.Upload(paths, payloads, c.GetInt64(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]uploadResult, len(results))
	for i, r := range results {
		out[i] = uploadResult{Path: r.Path, FileID: r.FileID, PeerIDs: r.PeerIDs, Error: itemError(r.Err)}
	}
	success(c, http.StatusOK, out)
}

func (s *Server) download(c *gin.Context) {
	var req pathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	results := s.coord.Download(req.Paths, c.GetInt64(ctxUserID))
	out := make([]downloadResult, len(results))
	for i, r := range results {
		out[i] = downloadResult{Path: r.Path, Data: r.Data, PeerID: r.PeerID, Error: itemError(r.Err)}
	}
	success(c, http.StatusOK, out)
}

func (s *Server) delete(c *gin.Context) {
	var req pathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := s.coord.Delete(req.Paths, c.GetInt64(ctxUserID)); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"deleted": req.Paths})
}

func (s *Server) move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	from := make([]string, len(req.Moves))
	to := make([]string, len(req.Moves))
	for i, m := range req.Moves {
		from[i], to[i] = m.From, m.To
	}

	if err := s.coord.Move(from, to, c.GetInt64(ctxUserID)); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"moved": len(req.Moves)})
}

func (s *Server) share(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	err := s.coord.Share(req.Paths, req.Email, model.Permission(req.Permission), c.GetInt64(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"shared": req.Paths})
}

func (s *Server) revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := s.coord.RevokeShares(req.Paths, req.Email, c.GetInt64(ctxUserID)); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"revoked": req.Paths})
}

func (s *Server) list(c *gin.Context) {
	userID := c.GetInt64(ctxUserID)
	p := c.DefaultQuery("path", dfs.UserRoot(userID))

	listing, err := s.coord.List(p, userID)
	if err != nil {
		fail(c, err)
		return
	}

	entries := make([]entry, 0, len(listing.Directories)+len(listing.Files))
	for _, d := range listing.Directories {
		entries = append(entries, entry{Path: d.Path, Name: path.Base(d.Path), Directory: true, CreatedAt: d.CreatedAt})
	}
	for _, f := range listing.Files {
		entries = append(entries, entry{Path: f.Path, Name: f.Name, Size: f.Size, CreatedAt: f.CreatedAt})
	}
	success(c, http.StatusOK, gin.H{"path": listing.Path, "entries": entries})
}

func (s *Server) peers(c *gin.Context) {
	statuses := s.coord.Registry().Status()
	out := make([]peerResponse, len(statuses))
	for i, st := range statuses {
		out[i] = peerResponse{ID: st.ID, Healthy: st.Healthy, FreeSpace: st.FreeSpace, CheckedAt: st.CheckedAt}
		if st.Err != nil {
			out[i].Error = st.Err.Error()
		}
	}
	success(c, http.StatusOK, out)
}
