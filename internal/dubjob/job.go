package dubjob

import (
	"database/sql"
	"time"
)

// Job lifecycle statuses. The first four are forward progress owned by the
// orchestrator's background task; completed/failed are terminal and written
// at most once.
const (
	StatusQueued         = "queued"
	StatusUploading      = "uploading"
	StatusDelegated      = "delegated"
	StatusAwaitingResult = "awaiting_result"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Job is the durable record of one dubbing-analysis request.
type Job struct {
	JobID     string         `db:"job_id"`
	ClipID    int64          `db:"clip_id"`
	UserID    sql.NullInt64  `db:"user_id"`
	Status    string         `db:"status"`
	Progress  int            `db:"progress"`
	Message   string         `db:"message"`
	Result    sql.NullString `db:"result"`
	CreatedAt time.Time      `db:"created_at"`
}

// IsTerminal reports whether the job admits no further transitions.
func (j *Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// Clip is the owning resource a job scores against: one short video excerpt
// with a background track and the counterpart's original vocal in the blob
// store. StartTime is the excerpt's offset within its source video; line
// times in the database are on the source-video timeline and must be shifted
// by it to land on the clip-local timeline.
type Clip struct {
	ID                 int64   `db:"id"`
	Title              string  `db:"title"`
	YoutubeURL         string  `db:"youtube_url"`
	StartTime          float64 `db:"start_time"`
	BackgroundAudioKey string  `db:"background_audio_key"`
	OriginalVocalKey   string  `db:"original_vocal_key"`
}

// Line is one reference sentence of a clip.
type Line struct {
	ID        int64   `db:"id"`
	ClipID    int64   `db:"clip_id"`
	Position  int     `db:"position"`
	StartTime float64 `db:"start_time"`
	EndTime   float64 `db:"end_time"`
	Text      string  `db:"text"`
}

// ReferenceWord is one word of the reference transcript. Start/End are
// seconds relative to the owning line; AbsStart/AbsEnd are the same offsets
// projected onto the clip-local timeline so the scorer never needs the line
// rows. MFCC is the pre-computed timbre fingerprint (frame x coefficient),
// nil when enrollment produced none.
type ReferenceWord struct {
	LineID   int64       `json:"-"`
	Position int         `json:"position"`
	Word     string      `json:"word"`
	Start    float64     `json:"start_time"`
	End      float64     `json:"end_time"`
	AbsStart float64     `json:"abs_start"`
	AbsEnd   float64     `json:"abs_end"`
	MFCC     [][]float64 `json:"mfcc,omitempty"`
}
