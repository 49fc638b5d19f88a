package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
)

// processTask runs the analysis pipeline for one delegate message: fetch the
// recording, score it, deliver the result to the callback URL. Scoring
// failures are not errors here; they travel to the callback as a failure
// result so the job still reaches a terminal state.
func (w *Worker) processTask(ctx context.Context, msg *dubjob.DelegateMessage) error {
	taskCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	audioData, err := w.blobs.Download(taskCtx, msg.AudioKey)
	if err != nil {
		return &retryableError{err: fmt.Errorf("failed to download recording %q: %w", msg.AudioKey, err)}
	}

	started := time.Now()
	result := w.scorer.Score(taskCtx, msg.Words, audioData)

	if result.IsFailure() {
		w.logger.Warn("Scoring reported failure",
			slog.String("job_id", msg.JobID),
			slog.String("error", result.Error),
		)
	} else {
		w.logger.Info("Scoring finished",
			slog.String("job_id", msg.JobID),
			slog.Float64("overall_score", result.Score.OverallScore),
			slog.Duration("elapsed", time.Since(started)),
		)
	}

	payload, err := result.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	return w.deliverCallback(taskCtx, msg.JobID, msg.CallbackURL, payload)
}

// deliverCallback POSTs the result payload to the job's callback URL,
// retrying on transport errors and 5xx responses. A 4xx response means the
// receiver rejected the callback for good; retrying cannot help, so that
// comes back as a permanent error while exhausted retries stay retryable.
func (w *Worker) deliverCallback(ctx context.Context, jobID, callbackURL string, payload []byte) error {
	var lastErr error

	for attempt := 1; attempt <= w.callbackRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build callback request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.httpClient.Do(req)
		if err == nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				w.logger.Info("Callback delivered",
					slog.String("job_id", jobID),
					slog.Int("attempt", attempt),
				)
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return fmt.Errorf("callback rejected with status %d: %s", resp.StatusCode, string(body))
			default:
				lastErr = fmt.Errorf("callback returned status %d: %s", resp.StatusCode, string(body))
			}
		} else {
			lastErr = fmt.Errorf("callback request failed: %w", err)
		}

		w.logger.Warn("Callback attempt failed",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.callbackRetries),
			slog.String("error", lastErr.Error()),
		)

		if attempt < w.callbackRetries {
			select {
			case <-time.After(w.callbackInterval):
			case <-ctx.Done():
				return &retryableError{err: fmt.Errorf("callback canceled during backoff: %w", ctx.Err())}
			}
		}
	}

	return &retryableError{err: fmt.Errorf("callback delivery exhausted %d attempts: %w", w.callbackRetries, lastErr)}
}
