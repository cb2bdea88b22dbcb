// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"sync"
)

// observers fans versioned values out to subscribers.
// Callbacks run on the notifying goroutine, outside the observer lock,
// so a callback may subscribe or unsubscribe.
type observers[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(uint64, T)
}

func (o *observers[T]) add(fn func(version uint64, v T)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[uint64]func(uint64, T))
	}
	id := o.next
	o.next++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *observers[T]) notify(version uint64, v T) {
	o.mu.Lock()
	fns := make([]func(uint64, T), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(version, v)
	}
}

// latest is a one-slot mailbox that keeps only the newest version.
// Intermediate values may be skipped; the final value never is, even when
// notifications race and arrive out of order.
type latest[T any] struct {
	mu      sync.Mutex
	ch      chan T
	version uint64
	closed  bool
}

func (l *latest[T]) put(version uint64, v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || version < l.version {
		return
	}
	l.version = version
	select {
	case <-l.ch:
	default:
	}
	l.ch <- v
}

func (l *latest[T]) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}

// observe returns a coalescing channel that yields current() and then
// every later notification until ctx is done, when it is closed.
func (o *observers[T]) observe(ctx context.Context, current func() (uint64, T)) <-chan T {
	l := &latest[T]{ch: make(chan T, 1)}
	cancel := o.add(l.put)
	l.put(current())
	context.AfterFunc(ctx, func() {
		cancel()
		l.close()
	})
	return l.ch
}
