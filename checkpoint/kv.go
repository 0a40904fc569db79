package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/matrixor/tsg-officer/state"
)

// DefaultBucket is the KV bucket name for case checkpoints.
const DefaultBucket = "TSG_CASES"

// KVStore persists case checkpoints in a NATS JetStream key-value bucket.
// JetStream journals every write, so a snapshot acknowledged by Save survives
// process and server restarts.
type KVStore struct {
	bucket jetstream.KeyValue
	nc     *nats.Conn
}

// NewKVStore connects to NATS and binds the checkpoint bucket, creating it if
// needed.
func NewKVStore(ctx context.Context, natsURL, bucketName string) (*KVStore, error) {
	if bucketName == "" {
		bucketName = DefaultBucket
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Case state checkpoints for suspended workflows",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	return &KVStore{bucket: bucket, nc: nc}, nil
}

// NewKVStoreFromBucket wraps an existing bucket, for callers that manage the
// NATS connection themselves.
func NewKVStoreFromBucket(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{bucket: bucket}
}

// Load implements Store.
func (s *KVStore) Load(ctx context.Context, caseID string) (*state.CaseState, error) {
	entry, err := s.bucket.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	var record Record
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", caseID, err)
	}
	if record.State == nil {
		return nil, fmt.Errorf("checkpoint %s has no state", caseID)
	}
	return record.State, nil
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, cs *state.CaseState) error {
	data, err := json.Marshal(NewRecord(cs))
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if _, err := s.bucket.Put(ctx, cs.CaseID, data); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// List implements Store.
func (s *KVStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		// Empty bucket returns ErrNoKeysFound - this is not an error
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return keys, nil
}

// Durable implements Store.
func (s *KVStore) Durable() bool { return true }

// Close drains the NATS connection if this store owns one.
func (s *KVStore) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
