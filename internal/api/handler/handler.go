package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/dubsync/dubsync-be/internal/blobstore"
	"github.com/dubsync/dubsync-be/internal/orchestrator"
	"github.com/dubsync/dubsync-be/internal/synthesizer"
)

// BlobDownloader is the read side of blob storage the file endpoint needs.
type BlobDownloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Orchestrator *orchestrator.Orchestrator
	Synthesizer  *synthesizer.Synthesizer
	Blobs        BlobDownloader
	Signer       *blobstore.Signer

	// PublicBaseURL is prepended to signed file paths handed to clients.
	PublicBaseURL   string
	StreamTimeout   time.Duration
	StreamPollEvery time.Duration
}

// DubHandler handles dub job HTTP requests
type DubHandler struct {
	logger          *slog.Logger
	orchestrator    *orchestrator.Orchestrator
	synthesizer     *synthesizer.Synthesizer
	blobs           BlobDownloader
	signer          *blobstore.Signer
	publicBaseURL   string
	streamTimeout   time.Duration
	streamPollEvery time.Duration
}

// NewDubHandler creates a new DubHandler instance
func NewDubHandler(deps *Dependencies) *DubHandler {
	return &DubHandler{
		logger:          deps.Logger,
		orchestrator:    deps.Orchestrator,
		synthesizer:     deps.Synthesizer,
		blobs:           deps.Blobs,
		signer:          deps.Signer,
		publicBaseURL:   deps.PublicBaseURL,
		streamTimeout:   deps.StreamTimeout,
		streamPollEvery: deps.StreamPollEvery,
	}
}
