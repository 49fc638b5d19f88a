// Package orchestrator drives a dub-analysis job from submission to its
// terminal state: upload the recording, delegate scoring to the analysis
// worker, and correlate the completion callback back to the job record.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/google/uuid"
)

// Progress checkpoints of the background task. The values mirror what
// clients of the original pipeline already display.
const (
	progressUploading = 40
	progressDelegated = 70
	progressAwaiting  = 90
)

// JobStore is the durable job state the orchestrator reads and writes.
type JobStore interface {
	CreateJob(ctx context.Context, job *dubjob.Job) error
	GetJob(ctx context.Context, jobID string) (*dubjob.Job, error)
	UpdateProgress(ctx context.Context, jobID, status string, progress int, message string) error
	MarkFailed(ctx context.Context, jobID, message string) error
	CompleteJob(ctx context.Context, jobID string, payload []byte) (bool, error)
	DeleteAnonymousBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ClipExists(ctx context.Context, clipID int64) (bool, error)
	GetReferenceWords(ctx context.Context, clipID int64) ([]dubjob.ReferenceWord, error)
}

// BlobStore is the blob access the orchestrator needs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Delegator hands a job to the analysis worker.
type Delegator interface {
	Delegate(ctx context.Context, msg *dubjob.DelegateMessage) error
}

// Config holds orchestrator settings.
type Config struct {
	// PublicBaseURL is this service's externally reachable base URL; the
	// callback reference handed to the worker is built from it.
	PublicBaseURL   string
	DelegateTimeout time.Duration
	Retention       time.Duration
}

// Orchestrator owns the job lifecycle.
type Orchestrator struct {
	store     JobStore
	blobs     BlobStore
	delegator Delegator
	config    Config
	logger    *slog.Logger
}

// New creates an orchestrator.
func New(store JobStore, blobs BlobStore, delegator Delegator, config Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		blobs:     blobs,
		delegator: delegator,
		config:    config,
		logger:    logger,
	}
}

// Submit validates the owning clip, inserts a queued job row, and schedules
// the upload-and-delegate work in the background. It returns as soon as the
// row exists; downstream outages can only fail the job, never this call.
// userID is nil for anonymous submissions.
func (o *Orchestrator) Submit(ctx context.Context, audioData []byte, filename string, clipID int64, userID *int64) (string, error) {
	if len(audioData) == 0 {
		return "", dubjob.ErrEmptyAudio
	}

	exists, err := o.store.ClipExists(ctx, clipID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", dubjob.ErrClipNotFound
	}

	// Reference words are prefetched here so the delegate message carries
	// plain data and the worker never needs our database.
	words, err := o.store.GetReferenceWords(ctx, clipID)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	job := &dubjob.Job{
		JobID:     jobID,
		ClipID:    clipID,
		Status:    dubjob.StatusQueued,
		Progress:  10,
		Message:   "upload queued",
		CreatedAt: time.Now().UTC(),
	}
	if userID != nil {
		job.UserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return "", err
	}

	go o.runPipeline(jobID, audioData, filename, words)

	o.logger.Info("Job submitted",
		slog.String("job_id", jobID),
		slog.Int64("clip_id", clipID),
		slog.Bool("anonymous", userID == nil),
	)

	return jobID, nil
}

// runPipeline is the background task owning the transient states. It runs
// detached from the submitting request; any error lands the job in the
// terminal failed state with progress reset to 0.
func (o *Orchestrator) runPipeline(jobID string, audioData []byte, filename string, words []dubjob.ReferenceWord) {
	ctx := context.Background()

	fail := func(err error) {
		o.logger.Error("Job pipeline failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		if markErr := o.store.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			o.logger.Error("Failed to record job failure",
				slog.String("job_id", jobID),
				slog.Any("error", markErr),
			)
		}
	}

	if err := o.store.UpdateProgress(ctx, jobID, dubjob.StatusUploading, progressUploading, "uploading recording"); err != nil {
		fail(err)
		return
	}

	audioKey := fmt.Sprintf("recordings/%s_%s", uuid.New().String(), filename)
	if err := o.blobs.Upload(ctx, audioKey, audioData); err != nil {
		fail(fmt.Errorf("blob upload failed: %w", err))
		return
	}

	if err := o.store.UpdateProgress(ctx, jobID, dubjob.StatusDelegated, progressDelegated, "delegating to analysis worker"); err != nil {
		fail(err)
		return
	}

	msg := &dubjob.DelegateMessage{
		JobID:       jobID,
		AudioKey:    audioKey,
		CallbackURL: fmt.Sprintf("%s/dub/jobs/callback?job_id=%s", o.config.PublicBaseURL, jobID),
		Words:       words,
	}

	delegateCtx, cancel := context.WithTimeout(ctx, o.config.DelegateTimeout)
	defer cancel()

	if err := o.delegator.Delegate(delegateCtx, msg); err != nil {
		fail(fmt.Errorf("delegate request failed: %w", err))
		return
	}

	if err := o.store.UpdateProgress(ctx, jobID, dubjob.StatusAwaitingResult, progressAwaiting, "analyzing"); err != nil {
		fail(err)
		return
	}

	o.logger.Info("Job awaiting analysis result",
		slog.String("job_id", jobID),
		slog.String("audio_key", audioKey),
	)
}

// ReceiveCallback finalizes a job from the worker's completion webhook.
// Unknown jobs are rejected; a duplicate callback for an already-completed
// job is acknowledged without touching the record.
func (o *Orchestrator) ReceiveCallback(ctx context.Context, jobID string, payload json.RawMessage) error {
	if jobID == "" {
		return dubjob.ErrJobIDMissing
	}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.IsTerminal() {
		o.logger.Info("Duplicate callback ignored",
			slog.String("job_id", jobID),
			slog.String("status", job.Status),
		)
		return nil
	}

	result, err := dubjob.UnmarshalResult(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", dubjob.ErrMalformedResult, err)
	}

	if result.IsFailure() {
		if err := o.store.MarkFailed(ctx, jobID, result.Error); err != nil {
			return err
		}
		o.logger.Info("Job failed by worker",
			slog.String("job_id", jobID),
			slog.String("error", result.Error),
		)
		return nil
	}

	applied, err := o.store.CompleteJob(ctx, jobID, payload)
	if err != nil {
		return err
	}

	if !applied {
		// A concurrent callback won the compare-and-set. Same outcome.
		o.logger.Info("Callback lost terminal race, treated as duplicate",
			slog.String("job_id", jobID),
		)
		return nil
	}

	o.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.Int("payload_size", len(payload)),
	)

	return nil
}

// GetStatus is a pure read of the job record.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*dubjob.Job, error) {
	return o.store.GetJob(ctx, jobID)
}
