package cutjoin

import (
	"errors"
	"fmt"
)

var (
	ErrNotSavable    = errors.New("cutjoin: clip list is empty or has a clip in progress")
	ErrBackendFailed = errors.New("cutjoin: backend failed")
	ErrIO            = errors.New("cutjoin: file system error")
	ErrCancelled     = errors.New("cutjoin: cancelled")
)

// BackendError reports a failed cut (Index >= 1) or join (Index == 0).
type BackendError struct {
	Index int
	Err   error
}

func (e *BackendError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("cutjoin: join failed: %v", e.Err)
	}
	return fmt.Sprintf("cutjoin: cut of clip %d failed: %v", e.Index, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendFailed, e.Err}
}

// IOError reports a failed file system operation on Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cutjoin: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
