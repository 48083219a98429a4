package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dfs-go/internal/auth"
	"dfs-go/internal/dfs"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Index   *int   `json:"index,omitempty"` // entry that rejected a batch call
}

func success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func failure(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   errorBody{Code: code, Message: message},
	})
}

// fail reports err with the status and code of its kind. Batch rejections
// carry the index of the offending entry.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	body := errorBody{Code: code, Message: err.Error()}

	var batchErr *dfs.BatchError
	if errors.As(err, &batchErr) {
		body.Index = &batchErr.Index
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// classify maps an error kind to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, dfs.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, dfs.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, dfs.ErrAccessDenied):
		return http.StatusForbidden, "ACCESS_DENIED"
	case errors.Is(err, dfs.ErrPlacement):
		return http.StatusServiceUnavailable, "PLACEMENT_FAILURE"
	case errors.Is(err, dfs.ErrPeerIO):
		return http.StatusBadGateway, "PEER_IO_FAILURE"
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, dfs.ErrMetadataTx):
		return http.StatusInternalServerError, "METADATA_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// itemError is the per-item error of a partial-success batch, nil on success.
func itemError(err error) *errorBody {
	if err == nil {
		return nil
	}
	_, code := classify(err)
	return &errorBody{Code: code, Message: err.Error()}
}
