// Package jobstore is the durable record of dub-analysis jobs and the read
// side of the clip catalogue (clips, lines, reference words). All cross-task
// job state lives here; concurrent writers are serialized by row-level
// guards, not in-process locks.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/dubsync/dubsync-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// CreateJob inserts a fresh job row.
func (s *Storage) CreateJob(ctx context.Context, job *dubjob.Job) error {
	query := `
		INSERT INTO dub_jobs (
			job_id, clip_id, user_id, status, progress, message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.ClipID,
		job.UserID,
		job.Status,
		job.Progress,
		job.Message,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob returns the job row for jobID.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*dubjob.Job, error) {
	var job dubjob.Job
	query := `
		SELECT job_id, clip_id, user_id, status, progress, message, result, created_at
		FROM dub_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dubjob.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateProgress advances a job's forward progress. Terminal rows are left
// untouched: a late progress write from the background task must never
// overwrite a completed or failed job.
func (s *Storage) UpdateProgress(ctx context.Context, jobID, status string, progress int, message string) error {
	query := `
		UPDATE dub_jobs
		SET status = $1, progress = $2, message = $3
		WHERE job_id = $4
		  AND status NOT IN ($5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		status, progress, message, jobID,
		dubjob.StatusCompleted, dubjob.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// MarkFailed records the terminal failed state with progress reset to 0.
// Already-terminal rows are left untouched.
func (s *Storage) MarkFailed(ctx context.Context, jobID, message string) error {
	result := dubjob.Result{Status: dubjob.ResultStatusFailed, Error: message}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal failure result: %w", err)
	}

	query := `
		UPDATE dub_jobs
		SET status = $1, progress = 0, message = $2, result = $3
		WHERE job_id = $4
		  AND status NOT IN ($1, $5)
	`

	_, err = s.db.ExecContext(ctx, query,
		dubjob.StatusFailed, message, resultJSON, jobID, dubjob.StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Info("Job marked failed",
		slog.String("job_id", jobID),
		slog.String("message", message),
	)

	return nil
}

// CompleteJob records the terminal completed state with the result payload.
// The compare-and-set on status makes duplicate callbacks no-ops: the first
// writer wins and later calls report applied=false without touching the row.
func (s *Storage) CompleteJob(ctx context.Context, jobID string, payload []byte) (applied bool, err error) {
	query := `
		UPDATE dub_jobs
		SET status = $1, progress = 100, message = 'done', result = $2
		WHERE job_id = $3
		  AND status NOT IN ($1, $4)
	`

	res, err := s.db.ExecContext(ctx, query,
		dubjob.StatusCompleted, payload, jobID, dubjob.StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// DeleteAnonymousBefore removes jobs with no owning user created before the
// cutoff. Housekeeping only; correctness never depends on it.
func (s *Storage) DeleteAnonymousBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM dub_jobs
		WHERE user_id IS NULL
		  AND created_at < $1
	`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete anonymous jobs: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// ClipExists reports whether the owning resource is known.
func (s *Storage) ClipExists(ctx context.Context, clipID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM clips WHERE id = $1)`

	if err := s.db.GetContext(ctx, &exists, query, clipID); err != nil {
		return false, fmt.Errorf("failed to check clip: %w", err)
	}

	return exists, nil
}

// GetClip returns the clip row.
func (s *Storage) GetClip(ctx context.Context, clipID int64) (*dubjob.Clip, error) {
	var clip dubjob.Clip
	query := `
		SELECT id, title, youtube_url, start_time, background_audio_key, original_vocal_key
		FROM clips
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &clip, query, clipID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dubjob.ErrClipNotFound
		}
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}

	return &clip, nil
}

// GetLines returns a clip's reference sentences ordered by position.
func (s *Storage) GetLines(ctx context.Context, clipID int64) ([]dubjob.Line, error) {
	var lines []dubjob.Line
	query := `
		SELECT id, clip_id, position, start_time, end_time, text
		FROM clip_lines
		WHERE clip_id = $1
		ORDER BY position
	`

	if err := s.db.SelectContext(ctx, &lines, query, clipID); err != nil {
		return nil, fmt.Errorf("failed to list clip lines: %w", err)
	}

	return lines, nil
}

// referenceWordRow is the scan target for the word join; the MFCC column is
// JSONB and needs a manual unmarshal.
type referenceWordRow struct {
	LineID        int64          `db:"line_id"`
	Position      int            `db:"position"`
	Word          string         `db:"word"`
	Start         float64        `db:"start_time"`
	End           float64        `db:"end_time"`
	LineStart     float64        `db:"line_start"`
	ClipStartTime float64        `db:"clip_start_time"`
	MFCC          sql.NullString `db:"mfcc"`
}

// GetReferenceWords returns a clip's full reference transcript ordered by
// line position then word position, as plain value objects: offsets are kept
// line-relative and also projected onto the clip-local timeline so callers
// never need the ORM-style object graph back.
func (s *Storage) GetReferenceWords(ctx context.Context, clipID int64) ([]dubjob.ReferenceWord, error) {
	query := `
		SELECT w.line_id, w.position, w.word, w.start_time, w.end_time,
		       l.start_time AS line_start, c.start_time AS clip_start_time, w.mfcc
		FROM line_words w
		JOIN clip_lines l ON l.id = w.line_id
		JOIN clips c ON c.id = l.clip_id
		WHERE l.clip_id = $1
		ORDER BY l.position, w.position
	`

	var rows []referenceWordRow
	if err := s.db.SelectContext(ctx, &rows, query, clipID); err != nil {
		return nil, fmt.Errorf("failed to list reference words: %w", err)
	}

	words := make([]dubjob.ReferenceWord, 0, len(rows))
	for _, row := range rows {
		word := dubjob.ReferenceWord{
			LineID:   row.LineID,
			Position: row.Position,
			Word:     row.Word,
			Start:    row.Start,
			End:      row.End,
			AbsStart: row.LineStart - row.ClipStartTime + row.Start,
			AbsEnd:   row.LineStart - row.ClipStartTime + row.End,
		}

		if row.MFCC.Valid && row.MFCC.String != "" && row.MFCC.String != "null" {
			if err := json.Unmarshal([]byte(row.MFCC.String), &word.MFCC); err != nil {
				return nil, fmt.Errorf("failed to parse mfcc for word %q (line %d): %w", row.Word, row.LineID, err)
			}
		}

		words = append(words, word)
	}

	return words, nil
}
