package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dubsync/dubsync-be/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// Synthesize handles POST /dub/synthesize/:clip_id
// Mixes the caller's recorded dub lines into the clip's background track
// and returns a time-limited URL for the rendered audio.
func (h *DubHandler) Synthesize(c *gin.Context) {
	clipID, err := strconv.ParseInt(c.Param("clip_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "clip_id must be an integer",
		})
		return
	}

	userID := userIDFromHeader(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "X-User-ID header is required",
		})
		return
	}

	h.logger.Info("Synthesize called",
		slog.Int64("clip_id", clipID),
		slog.Int64("user_id", *userID),
	)

	key, err := h.synthesizer.Synthesize(c.Request.Context(), clipID, *userID)
	if err != nil {
		h.respondError(c, err, "Failed to synthesize clip")
		return
	}

	c.JSON(http.StatusOK, dto.SynthesizeResponse{
		Status: "completed",
		MixKey: key,
		URL:    h.signer.SignedURL(h.publicBaseURL, key),
	})
}
