// Package synthesizer assembles the final dub track for one user and clip:
// background bed, the counterpart's original vocal, and the user's recorded
// lines where they exist.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dubsync/dubsync-be/internal/audio"
	"github.com/dubsync/dubsync-be/internal/blobstore"
	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/google/uuid"
)

// ClipStore is the read side of the clip catalogue the synthesizer needs.
type ClipStore interface {
	GetClip(ctx context.Context, clipID int64) (*dubjob.Clip, error)
	GetLines(ctx context.Context, clipID int64) ([]dubjob.Line, error)
}

// BlobStore is the blob access the synthesizer needs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// Synthesizer mixes and persists dub tracks.
type Synthesizer struct {
	store  ClipStore
	blobs  BlobStore
	logger *slog.Logger
}

// New creates a synthesizer.
func New(store ClipStore, blobs BlobStore, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		store:  store,
		blobs:  blobs,
		logger: logger,
	}
}

// Synthesize builds the mixed dub track for the user's recordings on the
// clip and uploads it under "<user>/<clip>/<random>.wav", returning that
// key. Lines the user never recorded keep the original vocal; recorded
// lines fully replace it. The in-memory mix is dropped once uploaded.
func (s *Synthesizer) Synthesize(ctx context.Context, clipID, userID int64) (string, error) {
	clip, err := s.store.GetClip(ctx, clipID)
	if err != nil {
		return "", err
	}

	lines, err := s.store.GetLines(ctx, clipID)
	if err != nil {
		return "", err
	}

	background, err := s.downloadTrack(ctx, clip.BackgroundAudioKey)
	if err != nil {
		return "", fmt.Errorf("background track: %w", err)
	}

	vocal, err := s.downloadTrack(ctx, clip.OriginalVocalKey)
	if err != nil {
		return "", fmt.Errorf("original vocal track: %w", err)
	}

	segments, err := s.gatherSegments(ctx, clip, lines, userID)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", dubjob.ErrNoUserRecordings
	}

	s.logger.Info("Synthesizing dub track",
		slog.Int64("clip_id", clipID),
		slog.Int64("user_id", userID),
		slog.Int("lines", len(lines)),
		slog.Int("recorded_segments", len(segments)),
	)

	mixed, err := audio.Mix(background, vocal, segments)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%d/%d/%s.wav", userID, clipID, uuid.New().String())
	if err := s.blobs.Upload(ctx, key, audio.EncodeWAV(mixed)); err != nil {
		return "", fmt.Errorf("failed to upload mixed track: %w", err)
	}

	s.logger.Info("Dub track uploaded",
		slog.Int64("clip_id", clipID),
		slog.Int64("user_id", userID),
		slog.String("key", key),
	)

	return key, nil
}

// gatherSegments collects the user's per-line recordings. Line times are on
// the source-video timeline; subtracting the clip's own start offset puts
// the segments on the same absolute timeline as the downloaded tracks.
func (s *Synthesizer) gatherSegments(ctx context.Context, clip *dubjob.Clip, lines []dubjob.Line, userID int64) ([]audio.Segment, error) {
	var segments []audio.Segment

	for _, line := range lines {
		key := fmt.Sprintf("%d/%d/%d", userID, clip.ID, line.ID)

		data, err := s.blobs.Download(ctx, key)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("recording for line %d: %w", line.ID, err)
		}

		take, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("recording for line %d: %w", line.ID, err)
		}

		segments = append(segments, audio.Segment{
			Start: line.StartTime - clip.StartTime,
			End:   line.EndTime - clip.StartTime,
			Audio: take,
		})
	}

	return segments, nil
}

func (s *Synthesizer) downloadTrack(ctx context.Context, key string) (*audio.Clip, error) {
	data, err := s.blobs.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return audio.DecodeWAV(data)
}
