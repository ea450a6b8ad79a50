package port

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermanent marks a handler error that retrying cannot fix.
	ErrPermanent = errors.New("queue: permanent failure")
	// ErrDuplicateTask is returned by Enqueue when a task with the same TaskID is already queued.
	ErrDuplicateTask = errors.New("queue: duplicate task id")
)

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry unless
// it wraps ErrPermanent, so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls scheduling. Zero values mean "backend default".
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	Timeout   time.Duration
	TaskID    string // backend-level uniqueness; a second enqueue with the same id is rejected
}

// Client enqueues tasks.
type Client interface {
	Enqueue(ctx context.Context, t Task, opt EnqueueOption) (id string, err error)
	Close() error
}

// Server runs handlers until Run's context is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
