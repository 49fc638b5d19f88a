package dubjob

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrClipNotFound is returned when the owning clip does not exist.
	ErrClipNotFound = errors.New("clip not found")

	// ErrJobIDMissing is returned when a callback arrives without a job id.
	ErrJobIDMissing = errors.New("job_id is required")

	// ErrEmptyAudio is returned when a submitted recording has no data.
	ErrEmptyAudio = errors.New("audio file is empty")

	// ErrMalformedResult is returned when a callback body is not a valid
	// result payload.
	ErrMalformedResult = errors.New("malformed result payload")

	// ErrNoReferenceWords is returned when a clip carries no reference
	// transcript to score against.
	ErrNoReferenceWords = errors.New("clip has no reference words")

	// ErrOverlappingSegments is returned when dub segments overlap on the
	// synthesis timeline. Overlap is rejected, never silently mixed.
	ErrOverlappingSegments = errors.New("dub segments overlap")

	// ErrNoUserRecordings is returned when synthesis finds no recorded
	// lines for the requesting user.
	ErrNoUserRecordings = errors.New("no user recordings for clip")
)
