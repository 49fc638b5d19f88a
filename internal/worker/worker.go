// Package worker consumes delegate messages from the analysis queue,
// scores each recording, and reports the result back over the job's
// callback URL. It never touches the job database; everything it needs
// arrives in the message.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/dubsync/dubsync-be/shared/rabbitmq"
	"github.com/google/uuid"
)

// BlobStore is the read side of blob storage the worker needs.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Scorer analyzes a recording against reference words. It reports scoring
// failures inside the returned result rather than as errors.
type Scorer interface {
	Score(ctx context.Context, reference []dubjob.ReferenceWord, wav []byte) dubjob.Result
}

// Config holds worker configuration
type Config struct {
	Logger           *slog.Logger
	RabbitClient     *rabbitmq.Client
	Blobs            BlobStore
	Scorer           Scorer
	Concurrency      int
	PrefetchCount    int
	JobTimeout       time.Duration
	CallbackRetries  int
	CallbackInterval time.Duration
}

// Worker represents the analysis worker
type Worker struct {
	logger           *slog.Logger
	rabbitClient     *rabbitmq.Client
	blobs            BlobStore
	scorer           Scorer
	httpClient       *http.Client
	workerID         string
	concurrency      int
	prefetchCount    int
	jobTimeout       time.Duration
	callbackRetries  int
	callbackInterval time.Duration
	jobsChan         chan *analysisTask
	wg               sync.WaitGroup
	stopChan         chan struct{}
}

// analysisTask pairs a parsed delegate message with its delivery tag so the
// pool can ACK or NACK the exact delivery it processed.
type analysisTask struct {
	msg         *dubjob.DelegateMessage
	deliveryTag uint64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:           cfg.Logger,
		rabbitClient:     cfg.RabbitClient,
		blobs:            cfg.Blobs,
		scorer:           cfg.Scorer,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		workerID:         fmt.Sprintf("analysis-worker-%s", uuid.New().String()[:8]),
		concurrency:      cfg.Concurrency,
		prefetchCount:    cfg.PrefetchCount,
		jobTimeout:       cfg.JobTimeout,
		callbackRetries:  cfg.CallbackRetries,
		callbackInterval: cfg.CallbackInterval,
		jobsChan:         make(chan *analysisTask),
		stopChan:         make(chan struct{}),
	}
}

// Start begins consuming and processing until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
