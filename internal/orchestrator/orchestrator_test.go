package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJobStore is an in-memory JobStore recording every transition.
type fakeJobStore struct {
	mu          sync.Mutex
	jobs        map[string]*dubjob.Job
	progression []int
	clips       map[int64][]dubjob.ReferenceWord

	failCreate error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs: make(map[string]*dubjob.Job),
		clips: map[int64][]dubjob.ReferenceWord{
			1: {{Word: "hello", AbsStart: 0, AbsEnd: 0.5}},
		},
	}
}

func (f *fakeJobStore) CreateJob(_ context.Context, job *dubjob.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	copied := *job
	f.jobs[job.JobID] = &copied
	f.progression = append(f.progression, job.Progress)
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, jobID string) (*dubjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, dubjob.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) UpdateProgress(_ context.Context, jobID, status string, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || dubjob.IsTerminal(job.Status) {
		return nil
	}
	job.Status = status
	job.Progress = progress
	job.Message = message
	f.progression = append(f.progression, progress)
	return nil
}

func (f *fakeJobStore) MarkFailed(_ context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || dubjob.IsTerminal(job.Status) {
		return nil
	}
	job.Status = dubjob.StatusFailed
	job.Progress = 0
	job.Message = message
	payload, _ := dubjob.Result{Status: dubjob.ResultStatusFailed, Error: message}.Marshal()
	job.Result = sql.NullString{String: string(payload), Valid: true}
	return nil
}

func (f *fakeJobStore) CompleteJob(_ context.Context, jobID string, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || dubjob.IsTerminal(job.Status) {
		return false, nil
	}
	job.Status = dubjob.StatusCompleted
	job.Progress = 100
	job.Message = "done"
	job.Result = sql.NullString{String: string(payload), Valid: true}
	return true, nil
}

func (f *fakeJobStore) DeleteAnonymousBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, job := range f.jobs {
		if !job.UserID.Valid && job.CreatedAt.Before(cutoff) {
			delete(f.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeJobStore) ClipExists(_ context.Context, clipID int64) (bool, error) {
	_, ok := f.clips[clipID]
	return ok, nil
}

func (f *fakeJobStore) GetReferenceWords(_ context.Context, clipID int64) ([]dubjob.ReferenceWord, error) {
	return f.clips[clipID], nil
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.blobs[key] = data
	return nil
}

type fakeDelegator struct {
	mu       sync.Mutex
	messages []*dubjob.DelegateMessage
	err      error
}

func (f *fakeDelegator) Delegate(_ context.Context, msg *dubjob.DelegateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(store *fakeJobStore, blobs *fakeBlobStore, delegator *fakeDelegator) *Orchestrator {
	return New(store, blobs, delegator, Config{
		PublicBaseURL:   "http://localhost:8080",
		DelegateTimeout: time.Second,
		Retention:       time.Hour,
	}, testLogger())
}

// waitForStatus polls until the job settles in one of the given statuses.
func waitForStatus(t *testing.T, store *fakeJobStore, jobID string, statuses ...string) *dubjob.Job {
	t.Helper()

	var job *dubjob.Job
	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		for _, s := range statuses {
			if got.Status == s {
				job = got
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	return job
}

func TestOrchestrator_Submit_HappyPath(t *testing.T) {
	store := newFakeJobStore()
	blobs := newFakeBlobStore()
	delegator := &fakeDelegator{}
	orch := newTestOrchestrator(store, blobs, delegator)

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForStatus(t, store, jobID, dubjob.StatusAwaitingResult)
	assert.Equal(t, 90, job.Progress)

	// Progress never moves backwards before the terminal state.
	store.mu.Lock()
	progression := append([]int(nil), store.progression...)
	store.mu.Unlock()
	for i := 1; i < len(progression); i++ {
		assert.GreaterOrEqual(t, progression[i], progression[i-1])
	}

	// One blob uploaded under recordings/, one delegate message sent.
	blobs.mu.Lock()
	assert.Len(t, blobs.blobs, 1)
	blobs.mu.Unlock()

	delegator.mu.Lock()
	require.Len(t, delegator.messages, 1)
	msg := delegator.messages[0]
	delegator.mu.Unlock()

	assert.Equal(t, jobID, msg.JobID)
	assert.Contains(t, msg.AudioKey, "recordings/")
	assert.Contains(t, msg.AudioKey, "take.wav")
	assert.Equal(t, "http://localhost:8080/dub/jobs/callback?job_id="+jobID, msg.CallbackURL)
	require.Len(t, msg.Words, 1)
	assert.Equal(t, "hello", msg.Words[0].Word)
}

func TestOrchestrator_Submit_UnknownClip(t *testing.T) {
	orch := newTestOrchestrator(newFakeJobStore(), newFakeBlobStore(), &fakeDelegator{})

	_, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 42, nil)
	assert.ErrorIs(t, err, dubjob.ErrClipNotFound)
}

func TestOrchestrator_Submit_EmptyAudio(t *testing.T) {
	orch := newTestOrchestrator(newFakeJobStore(), newFakeBlobStore(), &fakeDelegator{})

	_, err := orch.Submit(context.Background(), nil, "take.wav", 1, nil)
	assert.ErrorIs(t, err, dubjob.ErrEmptyAudio)
}

func TestOrchestrator_Submit_UserAttribution(t *testing.T) {
	store := newFakeJobStore()
	orch := newTestOrchestrator(store, newFakeBlobStore(), &fakeDelegator{})

	userID := int64(7)
	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, &userID)
	require.NoError(t, err)

	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.True(t, job.UserID.Valid)
	assert.Equal(t, int64(7), job.UserID.Int64)
}

func TestOrchestrator_Submit_UploadFailureFailsJob(t *testing.T) {
	store := newFakeJobStore()
	blobs := newFakeBlobStore()
	blobs.err = errors.New("bucket unavailable")
	orch := newTestOrchestrator(store, blobs, &fakeDelegator{})

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)

	job := waitForStatus(t, store, jobID, dubjob.StatusFailed)
	assert.Equal(t, 0, job.Progress)
	assert.Contains(t, job.Message, "bucket unavailable")
}

func TestOrchestrator_Submit_DelegateFailureFailsJob(t *testing.T) {
	store := newFakeJobStore()
	delegator := &fakeDelegator{err: errors.New("broker down")}
	orch := newTestOrchestrator(store, newFakeBlobStore(), delegator)

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)

	job := waitForStatus(t, store, jobID, dubjob.StatusFailed)
	assert.Equal(t, 0, job.Progress)
	assert.Contains(t, job.Message, "broker down")
}

func scorePayload(t *testing.T) []byte {
	t.Helper()

	payload, err := dubjob.NewScoreResult(dubjob.ScoreResult{
		OverallScore: 0.8,
		Summary:      dubjob.Summary{TotalWords: 1, PassedWords: 1, TextAccuracy: 1},
	}).Marshal()
	require.NoError(t, err)
	return payload
}

func TestOrchestrator_ReceiveCallback_CompletesJob(t *testing.T) {
	store := newFakeJobStore()
	orch := newTestOrchestrator(store, newFakeBlobStore(), &fakeDelegator{})

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)
	waitForStatus(t, store, jobID, dubjob.StatusAwaitingResult)

	payload := scorePayload(t)
	require.NoError(t, orch.ReceiveCallback(context.Background(), jobID, payload))

	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, dubjob.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.JSONEq(t, string(payload), job.Result.String)
}

func TestOrchestrator_ReceiveCallback_DuplicateIsNoOp(t *testing.T) {
	store := newFakeJobStore()
	orch := newTestOrchestrator(store, newFakeBlobStore(), &fakeDelegator{})

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)
	waitForStatus(t, store, jobID, dubjob.StatusAwaitingResult)

	payload := scorePayload(t)
	require.NoError(t, orch.ReceiveCallback(context.Background(), jobID, payload))

	first, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)

	// The duplicate succeeds and the record is byte-identical afterwards.
	other, err := dubjob.NewScoreResult(dubjob.ScoreResult{OverallScore: 0.1}).Marshal()
	require.NoError(t, err)
	require.NoError(t, orch.ReceiveCallback(context.Background(), jobID, other))

	second, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, first.Result.String, second.Result.String)
	assert.Equal(t, first.Status, second.Status)
}

func TestOrchestrator_ReceiveCallback_FailureResult(t *testing.T) {
	store := newFakeJobStore()
	orch := newTestOrchestrator(store, newFakeBlobStore(), &fakeDelegator{})

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)
	waitForStatus(t, store, jobID, dubjob.StatusAwaitingResult)

	payload, err := dubjob.NewErrorResult(errors.New("audio undecodable")).Marshal()
	require.NoError(t, err)
	require.NoError(t, orch.ReceiveCallback(context.Background(), jobID, payload))

	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, dubjob.StatusFailed, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "audio undecodable", job.Message)
}

func TestOrchestrator_ReceiveCallback_UnknownJob(t *testing.T) {
	orch := newTestOrchestrator(newFakeJobStore(), newFakeBlobStore(), &fakeDelegator{})

	err := orch.ReceiveCallback(context.Background(), "1b4e28ba-2fa1-11d2-883f-0016d3cca427", scorePayload(t))
	assert.ErrorIs(t, err, dubjob.ErrJobNotFound)
}

func TestOrchestrator_ReceiveCallback_MissingJobID(t *testing.T) {
	orch := newTestOrchestrator(newFakeJobStore(), newFakeBlobStore(), &fakeDelegator{})

	err := orch.ReceiveCallback(context.Background(), "", scorePayload(t))
	assert.ErrorIs(t, err, dubjob.ErrJobIDMissing)
}

func TestOrchestrator_ReceiveCallback_MalformedPayload(t *testing.T) {
	store := newFakeJobStore()
	orch := newTestOrchestrator(store, newFakeBlobStore(), &fakeDelegator{})

	jobID, err := orch.Submit(context.Background(), []byte("audio"), "take.wav", 1, nil)
	require.NoError(t, err)
	waitForStatus(t, store, jobID, dubjob.StatusAwaitingResult)

	err = orch.ReceiveCallback(context.Background(), jobID, json.RawMessage("{not json"))
	require.ErrorIs(t, err, dubjob.ErrMalformedResult)
}

func TestSweeper_DeletesExpiredAnonymousJobs(t *testing.T) {
	store := newFakeJobStore()

	old := &dubjob.Job{JobID: "old-anon", ClipID: 1, Status: dubjob.StatusCompleted, CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := &dubjob.Job{JobID: "fresh-anon", ClipID: 1, Status: dubjob.StatusCompleted, CreatedAt: time.Now()}
	owned := &dubjob.Job{JobID: "old-owned", ClipID: 1, Status: dubjob.StatusCompleted, CreatedAt: time.Now().Add(-2 * time.Hour), UserID: sql.NullInt64{Int64: 1, Valid: true}}

	for _, j := range []*dubjob.Job{old, fresh, owned} {
		require.NoError(t, store.CreateJob(context.Background(), j))
	}

	sweeper := NewSweeper(store, time.Hour, 10*time.Millisecond, testLogger())
	sweeper.Start()

	require.Eventually(t, func() bool {
		_, err := store.GetJob(context.Background(), "old-anon")
		return errors.Is(err, dubjob.ErrJobNotFound)
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()

	_, err := store.GetJob(context.Background(), "fresh-anon")
	assert.NoError(t, err)
	_, err = store.GetJob(context.Background(), "old-owned")
	assert.NoError(t, err)
}
