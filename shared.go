// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/go-cmp/cmp"
)

// SharedOption configures a [Shared] cell.
type SharedOption func(*sharedOptions)

type sharedOptions struct {
	logger  *slog.Logger
	onIssue func(Issue)
}

// WithCellLogger sets the logger used for persistence failures.
func WithCellLogger(logger *slog.Logger) SharedOption {
	return func(o *sharedOptions) { o.logger = logger }
}

// WithCellIssueHandler sets the function that receives persistence issues.
func WithCellIssueHandler(fn func(Issue)) SharedOption {
	return func(o *sharedOptions) { o.onIssue = fn }
}

// Shared is a handle to a mutable value shared across stores and
// goroutines.
//
// Reads and writes are serialized by a per-cell lock. Writes to a cell
// bound to a [Persistence] are saved while the lock is held; a failed save
// leaves the previous value in place. Copies of a Shared handle refer to
// the same cell.
//
// The cell lock is not re-entrant: a function passed to [Shared.Mutate]
// that calls back into the same cell deadlocks.
//
// The zero Shared holds no cell. It reads as the zero value, has no
// snapshot, never changes, and rejects writes with [ErrClosed].
type Shared[T any] struct {
	c *cell[T]
}

type cell[T any] struct {
	mu       sync.Mutex
	value    T
	initial  T
	snapshot *T
	version  uint64
	released bool

	key         string
	persistence Persistence[T]
	owner       *References
	stop        context.CancelFunc
	ctx         context.Context

	onIssue   func(Issue)
	observers observers[T]
}

func newCell[T any](v T, opts []SharedOption) *cell[T] {
	var o sharedOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.onIssue == nil {
		o.onIssue = LogIssues(o.logger)
	}
	return &cell[T]{
		value:   v,
		initial: v,
		ctx:     context.Background(),
		onIssue: o.onIssue,
	}
}

// NewShared returns an unpersisted cell holding v.
func NewShared[T any](v T, opts ...SharedOption) Shared[T] {
	return Shared[T]{c: newCell(v, opts)}
}

// Key returns the persistence key, or "" for an unpersisted cell.
func (s Shared[T]) Key() string {
	if s.c == nil {
		return ""
	}
	return s.c.key
}

// Get returns the current value.
func (s Shared[T]) Get() T {
	if s.c == nil {
		var zero T
		return zero
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.value
}

// Set replaces the value. See [Shared.Mutate].
func (s Shared[T]) Set(v T) error {
	return s.Mutate(func(p *T) { *p = v })
}

// Mutate applies fn to a copy of the value and commits the copy.
//
// For a persisted cell the copy is saved first; if saving fails the value
// is not committed, an [IssuePersistence] is raised and the error returned.
// Observers are notified after the lock is released.
func (s Shared[T]) Mutate(fn func(*T)) error {
	c := s.c
	if c == nil {
		return ErrClosed
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return ErrClosed
	}
	next := c.value
	fn(&next)
	if c.persistence != nil {
		if err := c.persistence.Save(c.ctx, next); err != nil {
			c.mu.Unlock()
			err = fmt.Errorf("flux: save %q: %w", c.key, err)
			c.onIssue(Issue{Kind: IssuePersistence, Scope: c.key, Message: "save failed", Err: err})
			return err
		}
	}
	c.value = next
	c.version++
	version := c.version
	c.mu.Unlock()
	c.observers.notify(version, next)
	return nil
}

// Snapshot returns the pinned snapshot, if any.
func (s Shared[T]) Snapshot() (T, bool) {
	var zero T
	if s.c == nil {
		return zero, false
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.snapshot == nil {
		return zero, false
	}
	return *s.c.snapshot, true
}

// PinSnapshot pins the current value as the snapshot.
func (s Shared[T]) PinSnapshot() {
	if s.c == nil {
		return
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	v := s.c.value
	s.c.snapshot = &v
}

// SetSnapshot pins v as the snapshot.
func (s Shared[T]) SetSnapshot(v T) {
	if s.c == nil {
		return
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.snapshot = &v
}

// ClearSnapshot drops the snapshot.
func (s Shared[T]) ClearSnapshot() {
	if s.c == nil {
		return
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.snapshot = nil
}

// Equal compares two cells by value.
//
// Two handles to the same cell compare the pinned snapshot against the
// current value, or are trivially equal when no snapshot is pinned.
// Handles to different cells compare their current values.
func (s Shared[T]) Equal(other Shared[T]) bool {
	if s.c == other.c {
		if s.c == nil {
			return true
		}
		s.c.mu.Lock()
		defer s.c.mu.Unlock()
		if s.c.snapshot == nil {
			return true
		}
		return cmp.Equal(*s.c.snapshot, s.c.value)
	}
	if s.c == nil || other.c == nil {
		return false
	}
	return cmp.Equal(s.Get(), other.Get())
}

// Subscribe calls fn with every committed value, on the writing goroutine.
func (s Shared[T]) Subscribe(fn func(T)) (cancel func()) {
	if s.c == nil {
		return func() {}
	}
	return s.c.observers.add(func(_ uint64, v T) { fn(v) })
}

// Observe returns a channel yielding the current value and every later
// one until ctx is done. Values may be coalesced; the latest never is lost.
func (s Shared[T]) Observe(ctx context.Context) <-chan T {
	if s.c == nil {
		ch := make(chan T, 1)
		var zero T
		ch <- zero
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch
	}
	return s.c.observers.observe(ctx, func() (uint64, T) {
		s.c.mu.Lock()
		defer s.c.mu.Unlock()
		return s.c.version, s.c.value
	})
}

// Release gives up this holder's reference. When the last holder of a
// persisted cell releases it, the update stream stops, the cell is evicted
// from its [References] and later writes fail with [ErrClosed]. Releasing
// an unpersisted cell does nothing.
func (s Shared[T]) Release() {
	if s.c == nil || s.c.owner == nil {
		return
	}
	s.c.owner.release(s.c.key)
}

func (c *cell[T]) close() {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
	if c.stop != nil {
		c.stop()
	}
}

// watch applies inbound updates, last writer wins. A deleted value
// resets the cell to its initial value.
func (c *cell[T]) watch(updates <-chan Update[T]) {
	for u := range updates {
		c.mu.Lock()
		if c.released {
			c.mu.Unlock()
			return
		}
		if u.Present {
			c.value = u.Value
		} else {
			c.value = c.initial
		}
		c.version++
		version, value := c.version, c.value
		c.mu.Unlock()
		c.observers.notify(version, value)
	}
}
