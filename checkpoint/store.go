// Package checkpoint persists case state snapshots so a suspended workflow
// can resume after an arbitrary delay or process restart.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/matrixor/tsg-officer/state"
)

// ErrNotFound is returned when no checkpoint exists for a case.
var ErrNotFound = errors.New("case not found")

// RecordSchemaVersion is stamped on checkpoint envelopes written by this build.
const RecordSchemaVersion = "1.0"

// Record is the envelope persisted per case. The envelope is versioned so
// loading tolerates records written by older builds.
type Record struct {
	SchemaVersion string           `json:"schema_version"`
	SavedAt       time.Time        `json:"saved_at"`
	State         *state.CaseState `json:"state"`
}

// NewRecord wraps a case state in a stamped envelope.
func NewRecord(s *state.CaseState) *Record {
	return &Record{
		SchemaVersion: RecordSchemaVersion,
		SavedAt:       time.Now().UTC(),
		State:         s,
	}
}

// Store persists case state keyed by case identifier. Implementations must
// support concurrent access to distinct keys; serialization of writes to the
// same case is the engine's responsibility.
type Store interface {
	// Load returns the latest snapshot for a case, or ErrNotFound.
	Load(ctx context.Context, caseID string) (*state.CaseState, error)

	// Save persists a snapshot, replacing any previous one for the case.
	Save(ctx context.Context, s *state.CaseState) error

	// List returns all known case identifiers.
	List(ctx context.Context) ([]string, error)

	// Durable reports whether snapshots survive process restart. Operators
	// running a non-durable store must be warned, not misled.
	Durable() bool
}
