// Package history keeps an append-only log of task runs.
package history

import (
	"context"
	"time"
)

// Status is the outcome of a task run.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Run is one executed task.
type Run struct {
	ID         string // unique per task run
	Invocation string // shared by every task of one invocation
	Target     string
	Task       string
	Status     Status
	StartedAt  time.Time
	Duration   time.Duration
	Error      string
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
