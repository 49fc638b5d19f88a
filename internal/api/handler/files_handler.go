package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dubsync/dubsync-be/internal/blobstore"
	"github.com/gin-gonic/gin"
)

// GetFile handles GET /dub/files?key=...&exp=...&sig=...
// Serves a blob after verifying the presigned query parameters.
func (h *DubHandler) GetFile(c *gin.Context) {
	key := c.Query("key")
	exp := c.Query("exp")
	sig := c.Query("sig")

	if key == "" || exp == "" || sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "key, exp and sig are required",
		})
		return
	}

	if err := h.signer.Verify(key, exp, sig); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, blobstore.ErrSignatureExpired) {
			status = http.StatusGone
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	data, err := h.blobs.Download(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		h.logger.Error("Failed to download blob",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch file"})
		return
	}

	c.Data(http.StatusOK, "audio/wav", data)
}
