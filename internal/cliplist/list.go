package cliplist

import (
	"sync"
	"time"
)

// List is an ordered clip collection in output order.
// Overlapping and out-of-order ranges are allowed.
type List struct {
	mu     sync.Mutex
	clips  []Clip
	leased bool
}

func New() *List {
	return &List{}
}

func (l *List) state() State {
	if n := len(l.clips); n > 0 && l.clips[n-1].End.IsPending() {
		return InProgress
	}
	return Idle
}

func (l *List) writable() error {
	if l.leased {
		return ErrReadOnly
	}
	return nil
}

func (l *List) index(i int) error {
	if i < 0 || i >= len(l.clips) {
		return precondition("index %d out of range [0,%d)", i, len(l.clips))
	}
	return nil
}

func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state()
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clips)
}

// Snapshot returns a copy of the clips.
func (l *List) Snapshot() []Clip {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Clip, len(l.clips))
	copy(out, l.clips)
	return out
}

// MarkStart opens a new pending clip at the given offset.
func (l *List) MarkStart(at time.Duration, thumb ImageRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(); err != nil {
		return err
	}
	if l.state() != Idle {
		return precondition("mark start while a clip is in progress")
	}
	if at < 0 {
		return precondition("negative start offset %s", at)
	}
	l.clips = append(l.clips, Clip{Start: at, End: Pending(), Thumbnail: thumb})
	return nil
}

// MarkEnd completes the pending clip. On a range error the clip stays pending.
func (l *List) MarkEnd(at time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(); err != nil {
		return err
	}
	if l.state() != InProgress {
		return precondition("mark end with no clip in progress")
	}
	last := &l.clips[len(l.clips)-1]
	if at <= last.Start {
		return &RangeError{Start: last.Start, End: at}
	}
	last.End = Completed(at)
	return nil
}

// MoveUp swaps clip i with its predecessor.
func (l *List) MoveUp(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reorderable(i); err != nil {
		return err
	}
	if i == 0 {
		return precondition("clip 0 is already first")
	}
	l.clips[i-1], l.clips[i] = l.clips[i], l.clips[i-1]
	return nil
}

// MoveDown swaps clip i with its successor.
func (l *List) MoveDown(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reorderable(i); err != nil {
		return err
	}
	if i == len(l.clips)-1 {
		return precondition("clip %d is already last", i)
	}
	l.clips[i], l.clips[i+1] = l.clips[i+1], l.clips[i]
	return nil
}

// MoveTo removes clip from and reinserts it so it ends up at index to.
// Clips in between shift by one.
func (l *List) MoveTo(from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reorderable(from); err != nil {
		return err
	}
	if err := l.index(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	c := l.clips[from]
	if from < to {
		copy(l.clips[from:to], l.clips[from+1:to+1])
	} else {
		copy(l.clips[to+1:from+1], l.clips[to:from])
	}
	l.clips[to] = c
	return nil
}

func (l *List) reorderable(i int) error {
	if err := l.writable(); err != nil {
		return err
	}
	if l.state() != Idle {
		return precondition("reorder while a clip is in progress")
	}
	return l.index(i)
}

// RemoveAt deletes clip i. Removing the pending clip returns to Idle.
func (l *List) RemoveAt(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(); err != nil {
		return err
	}
	if err := l.index(i); err != nil {
		return err
	}
	l.clips = append(l.clips[:i], l.clips[i+1:]...)
	return nil
}

// Clear empties the list and forces Idle.
func (l *List) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(); err != nil {
		return err
	}
	l.clips = nil
	return nil
}

// Replace swaps in clips as a whole, as done on EDL import.
func (l *List) Replace(clips []Clip) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(); err != nil {
		return err
	}
	for i, c := range clips {
		if !c.valid() {
			end, _ := c.End.Value()
			return &RangeError{Start: c.Start, End: end}
		}
		if c.End.IsPending() && i != len(clips)-1 {
			return precondition("pending clip %d is not last", i)
		}
	}
	next := make([]Clip, len(clips))
	copy(next, clips)
	l.clips = next
	return nil
}

// TotalRuntime sums the durations of completed clips.
func (l *List) TotalRuntime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total time.Duration
	for _, c := range l.clips {
		total += c.Duration()
	}
	return total
}

// IsSavable reports a non-empty list with no clip in progress.
func (l *List) IsSavable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clips) > 0 && l.state() == Idle
}

// Acquire takes the read-only lease. Mutators fail with ErrReadOnly until
// release is called. Only one lease may be held at a time.
func (l *List) Acquire() (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.leased {
		return nil, ErrReadOnly
	}
	l.leased = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.leased = false
			l.mu.Unlock()
		})
	}, nil
}

// ReadOnly reports whether a lease is held.
func (l *List) ReadOnly() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.leased
}
