// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"sync/atomic"
)

// task is the handle of one running effect.
//
// Cancellation is one-shot: the first Cancel flips the flag and signals
// the context, later calls do nothing. A task is cancelled when it or any
// ancestor was cancelled; finishing naturally is not cancellation.
//
// A task stays registered while its body runs and while actions it sent
// are still queued, so removing its state can still drop them.
type task struct {
	ctx       context.Context
	stop      context.CancelFunc
	done      chan struct{}
	parent    *task
	registry  *Registry
	scope     string
	key       cancelKey
	keyed     bool
	cancelled atomic.Bool
	refs      atomic.Int64
}

func newTask(parent *task, registry *Registry, scope string) *task {
	base := context.Background()
	if parent != nil {
		base = parent.ctx
	}
	ctx, stop := context.WithCancel(base)
	t := &task{
		ctx:      ctx,
		stop:     stop,
		done:     make(chan struct{}),
		parent:   parent,
		registry: registry,
		scope:    scope,
	}
	t.refs.Store(1)
	return t
}

// Cancel signals cancellation. It reports whether this call cancelled t.
func (t *task) Cancel() bool {
	if !t.cancelled.CompareAndSwap(false, true) {
		return false
	}
	t.stop()
	return true
}

// Cancelled reports whether t or one of its ancestors was cancelled.
func (t *task) Cancelled() bool {
	for p := t; p != nil; p = p.parent {
		if p.cancelled.Load() {
			return true
		}
	}
	return false
}

// retain pins t and its ancestors in the registry.
func (t *task) retain() {
	for p := t; p != nil; p = p.parent {
		p.refs.Add(1)
	}
}

// release drops a pin taken by retain.
func (t *task) release() {
	for p := t; p != nil; p = p.parent {
		p.unref()
	}
}

func (t *task) unref() {
	if t.refs.Add(-1) == 0 {
		t.registry.unregister(t)
	}
}

// wait blocks until every task in ts has finished or ctx is done.
func wait(ctx context.Context, ts []*task) bool {
	for _, t := range ts {
		select {
		case <-t.done:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
