package handler

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"

	"recaudo/internal/middleware"
	"recaudo/internal/service"
	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto HTTP statuses. Unknown errors are logged and
// reported as a bare 500 so storage paths and SQL never leak to clients.
// A bad link signature reads the same as a missing record.
func writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		status, msg = http.StatusForbidden, "Access denied"
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInvalidSignature):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrActaNotOpen):
		status, msg = http.StatusConflict, "Acta is not open for approval"
	case errors.Is(err, service.ErrInvalidTransition):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrReadFailure):
		status, msg = http.StatusInternalServerError, "Failed to read file"
	default:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, response.Error(status, msg))
}

// callerFromContext reads the identity RequireRole stored on the context.
func callerFromContext(c *gin.Context) (service.Caller, bool) {
	caller, err := service.NewCaller(c.GetString(middleware.ContextUserID), c.GetString(middleware.ContextUserRole))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid User ID format"))
		return service.Caller{}, false
	}
	return caller, true
}

// writeArtifact streams a file with a safe Content-Disposition.
func writeArtifact(c *gin.Context, art *service.Artifact) {
	disposition := "attachment"
	if art.Inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": art.FileName}))
	c.Header("Cache-Control", "private, no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Length", strconv.Itoa(len(art.Content)))
	if art.Digest != "" {
		c.Header("X-Acta-Digest", art.Digest)
	}
	c.Data(http.StatusOK, art.ContentType, art.Content)
}
