package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dubsync/dubsync-be/internal/api/dto"
	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes bounds the dub recording size accepted by SubmitJob.
const maxUploadBytes = 32 << 20

// SubmitJob handles POST /dub/jobs
// Accepts a multipart dub recording and starts an analysis job.
func (h *DubHandler) SubmitJob(c *gin.Context) {
	h.logger.Info("SubmitJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	clipID, err := strconv.ParseInt(c.PostForm("clip_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "clip_id must be an integer",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file is required",
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds upload limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read upload",
		})
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read upload",
		})
		return
	}

	userID := userIDFromHeader(c)

	jobID, err := h.orchestrator.Submit(c.Request.Context(), audioData, fileHeader.Filename, clipID, userID)
	if err != nil {
		h.respondError(c, err, "Failed to submit job")
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:  jobID,
		Status: "processing",
	})
}

// Callback handles POST /dub/jobs/callback?job_id=...
// Receives the analysis worker's completion webhook. Redelivery of a
// callback for a finished job is acknowledged as success.
func (h *DubHandler) Callback(c *gin.Context) {
	jobID := c.Query("job_id")

	h.logger.Info("Callback called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read callback body",
		})
		return
	}

	if err := h.orchestrator.ReceiveCallback(c.Request.Context(), jobID, payload); err != nil {
		h.respondError(c, err, "Failed to process callback")
		return
	}

	c.JSON(http.StatusOK, dto.CallbackResponse{
		Received: true,
		JobID:    jobID,
	})
}

// GetJob handles GET /dub/jobs/:job_id
// Retrieves the current state of an analysis job.
func (h *DubHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.orchestrator.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// StreamJob handles GET /dub/jobs/:job_id/stream
// Pushes job state over server-sent events until the job reaches a
// terminal status, the stream times out, or the client disconnects.
func (h *DubHandler) StreamJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.orchestrator.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("status", dto.FromJob(job))
	c.Writer.Flush()
	if job.IsTerminal() {
		return
	}

	ticker := time.NewTicker(h.streamPollEvery)
	defer ticker.Stop()
	deadline := time.NewTimer(h.streamTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-deadline.C:
			c.SSEvent("timeout", gin.H{"job_id": jobID})
			c.Writer.Flush()
			return
		case <-ticker.C:
			job, err := h.orchestrator.GetStatus(c.Request.Context(), jobID)
			if err != nil {
				h.logger.Error("Stream poll failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
				return
			}
			c.SSEvent("status", dto.FromJob(job))
			c.Writer.Flush()
			if job.IsTerminal() {
				return
			}
		}
	}
}

// userIDFromHeader reads the optional X-User-ID header. Absent or
// malformed values mean an anonymous submission.
func userIDFromHeader(c *gin.Context) *int64 {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// respondError maps domain errors to HTTP status codes.
func (h *DubHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, dubjob.ErrJobNotFound), errors.Is(err, dubjob.ErrClipNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dubjob.ErrJobIDMissing),
		errors.Is(err, dubjob.ErrEmptyAudio),
		errors.Is(err, dubjob.ErrMalformedResult),
		errors.Is(err, dubjob.ErrNoReferenceWords):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dubjob.ErrNoUserRecordings),
		errors.Is(err, dubjob.ErrOverlappingSegments):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
