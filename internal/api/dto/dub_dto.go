package dto

import (
	"encoding/json"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
)

type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type JobStatusResponse struct {
	JobID     string          `json:"job_id"`
	ClipID    int64           `json:"clip_id"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type CallbackResponse struct {
	Received bool   `json:"received"`
	JobID    string `json:"job_id"`
}

type SynthesizeResponse struct {
	Status string `json:"status"`
	MixKey string `json:"mix_key"`
	URL    string `json:"dubbing_audio_url"`
}

// FromJob maps a job record to its API representation. The stored result
// payload passes through untouched.
func FromJob(job *dubjob.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     job.JobID,
		ClipID:    job.ClipID,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.Result.Valid {
		resp.Result = json.RawMessage(job.Result.String)
	}
	return resp
}
