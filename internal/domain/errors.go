package domain

import (
	"errors"
	"fmt"
)

// ErrWorkerStopped indicates a job was submitted after the worker began draining
var ErrWorkerStopped = errors.New("fetch worker stopped")

// ErrQueueFull indicates the job queue reached its configured limit
var ErrQueueFull = errors.New("fetch queue full")

// ErrAlreadyStarted is returned by a second Start call
var ErrAlreadyStarted = errors.New("fetch worker already started")

// FetchError wraps a network or decoding failure for a single URL.
// It is never fatal to the worker.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
