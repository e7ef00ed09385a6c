// Package cliplist holds the ordered list of clip ranges marked on a media
// timeline and the in-cut/out-of-cut state machine that guards it.
package cliplist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cutlist/cutlist-agent/internal/timecode"
)

var (
	ErrInvalidRange = errors.New("cliplist: clip end must be after start")
	ErrPrecondition = errors.New("cliplist: operation not allowed in current state")
	// ErrReadOnly is returned by every mutator while a lease is held.
	ErrReadOnly = fmt.Errorf("%w: list is read-only while a save is running", ErrPrecondition)
)

// RangeError reports an end mark that is not after the pending start.
type RangeError struct {
	Start time.Duration
	End   time.Duration
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("cliplist: end %s is not after start %s",
		timecode.FormatDuration(e.End, timecode.Precise),
		timecode.FormatDuration(e.Start, timecode.Precise))
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

func precondition(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrPrecondition}, args...)...)
}

// ImageRef points at a captured thumbnail. The zero value means none.
type ImageRef string

func (r ImageRef) IsZero() bool {
	return r == ""
}

// End is either pending or a completed end offset.
type End struct {
	at   time.Duration
	done bool
}

func Pending() End {
	return End{}
}

func Completed(at time.Duration) End {
	return End{at: at, done: true}
}

func (e End) IsPending() bool {
	return !e.done
}

// Value returns the end offset and whether it has been set.
func (e End) Value() (time.Duration, bool) {
	return e.at, e.done
}

// Clip is one marked range of the source media.
type Clip struct {
	Start     time.Duration
	End       End
	Thumbnail ImageRef
}

// Duration is end-start for completed clips and zero otherwise.
func (c Clip) Duration() time.Duration {
	end, ok := c.End.Value()
	if !ok {
		return 0
	}
	return end - c.Start
}

func (c Clip) valid() bool {
	end, ok := c.End.Value()
	return !ok || end > c.Start
}

// State is derived from whether the last clip is pending.
type State int

const (
	Idle State = iota
	InProgress
)

func (s State) String() string {
	if s == InProgress {
		return "in_progress"
	}
	return "idle"
}

// FrameCapturer grabs a thumbnail at an offset of the bound media file.
type FrameCapturer interface {
	Capture(ctx context.Context, at time.Duration) (ImageRef, error)
}
