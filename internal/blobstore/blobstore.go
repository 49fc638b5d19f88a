// Package blobstore persists audio blobs in a NATS JetStream object-store
// bucket. Keys are opaque to this package; layout conventions live with the
// callers (recordings under "recordings/", per-line takes under
// "<user>/<clip>/<line>", mixed dubs under "<user>/<clip>/<random>").
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotFound is returned when a key has no object behind it.
var ErrNotFound = errors.New("blob not found")

// Store is the object-store adapter used by the orchestrator, the analysis
// worker, and the synthesizer.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New binds to the named bucket, creating it when absent.
func New(js nats.JetStreamContext, bucketName string) (*Store, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Audio blobs for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = js.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf("failed to bind to existing bucket %q: %w", bucketName, err)
			}
		} else {
			return nil, fmt.Errorf("failed to create bucket %q: %w", bucketName, err)
		}
	}

	return &Store{bucket: bucketName, store: store}, nil
}

// Upload saves an object under the given key, replacing any previous value.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	_, err := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object %q to bucket %q: %w", key, s.bucket, err)
	}

	return nil
}

// Download retrieves the object stored under key.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object %q from bucket %q: %w", key, s.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object %q: %w", key, closeErr)
	}

	return data, nil
}

// Delete removes the object stored under key. Missing keys are not an error;
// the cleanup paths calling this are best-effort.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object %q from bucket %q: %w", key, s.bucket, err)
	}

	return nil
}
