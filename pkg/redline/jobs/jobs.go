// Package jobs keeps the status record of each document processed by a batch run.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("job not found")

// State is the lifecycle position of a job.
type State string

const (
	Queued  State = "queued"
	Running State = "running"
	Done    State = "done"
	Failed  State = "failed"
)

// Terminal reports whether the job will not change state again.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Record is the externally visible status of one job.
type Record struct {
	ID       string `json:"id"`
	Document string `json:"document"`
	State    State  `json:"state"`
	// Strategy names the output form that was delivered.
	Strategy   string    `json:"strategy,omitempty"`
	Output     string    `json:"output,omitempty"`
	Applied    int       `json:"applied"`
	Unresolved int       `json:"unresolved"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRecord returns a queued record with a fresh id.
func NewRecord(document string) *Record {
	return &Record{ID: uuid.NewString(), Document: document, State: Queued, UpdatedAt: time.Now().UTC()}
}

// Store persists job records.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
}
