// Package respond writes the JSON envelopes shared by every API handler:
// {"ok": true, ...} on success and {"ok": false, "error": ..., "kind": ...}
// on failure.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/logging"
)

// OK writes a 2xx envelope with the given fields merged in.
func OK(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error maps err to a status through its kind. Server-side failures are
// logged; their cause is not echoed to the client.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)
	msg := apperrors.Message(err)

	if status >= http.StatusInternalServerError {
		if logger != nil {
			logging.WithContext(c.Request.Context(), logger).Error("request_failed",
				zap.String("path", c.FullPath()),
				zap.String("error_kind", string(kind)),
				zap.Error(err))
		}
		if kind == apperrors.KindPersistence || kind == apperrors.KindInternal {
			msg = "internal error"
		}
	}
	c.JSON(status, gin.H{"ok": false, "error": msg, "kind": kind})
}

// BadRequest reports a body or parameter that could not be decoded.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg, "kind": apperrors.KindValidation})
}
