// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"fmt"
	"sync"
)

// SharedReferences is the process-wide cache used by [Persistent] when
// given a nil *References.
var SharedReferences = NewReferences()

// References deduplicates persisted cells by key: every holder of the same
// key shares one cell, one load and one update stream.
type References struct {
	mu    sync.Mutex
	cells map[string]*reference
}

type reference struct {
	cell  any
	close func()
	refs  int
}

// NewReferences returns an empty cache.
func NewReferences() *References {
	return &References{cells: make(map[string]*reference)}
}

// Len returns the number of live cells.
func (r *References) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

// Persistent returns the cell bound to p.Key() in refs, creating it on
// first reference.
//
// A new cell loads its value from p; when nothing is stored or loading
// fails it starts at initial, and a failure is raised as an
// [IssuePersistence] rather than returned. It then follows p.Updates until
// its last holder calls [Shared.Release]. The only error is
// [ErrTypeMismatch], when the key is already bound to another value type.
func Persistent[T any](ctx context.Context, refs *References, p Persistence[T], initial T, opts ...SharedOption) (Shared[T], error) {
	if refs == nil {
		refs = SharedReferences
	}
	key := p.Key()

	refs.mu.Lock()
	defer refs.mu.Unlock()
	if ref, ok := refs.cells[key]; ok {
		c, ok := ref.cell.(*cell[T])
		if !ok {
			return Shared[T]{}, fmt.Errorf("%w: %q holds %T", ErrTypeMismatch, key, ref.cell)
		}
		ref.refs++
		return Shared[T]{c: c}, nil
	}

	c := newCell(initial, opts)
	c.key = key
	c.persistence = p
	c.owner = refs
	switch v, ok, err := p.Load(ctx); {
	case err != nil:
		c.onIssue(Issue{Kind: IssuePersistence, Scope: key, Message: "load failed, using initial value", Err: err})
	case ok:
		c.value = v
	}
	c.ctx, c.stop = context.WithCancel(context.WithoutCancel(ctx))
	go c.watch(p.Updates(c.ctx))

	refs.cells[key] = &reference{cell: c, close: c.close, refs: 1}
	return Shared[T]{c: c}, nil
}

func (r *References) release(key string) {
	r.mu.Lock()
	ref, ok := r.cells[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	ref.refs--
	if ref.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.cells, key)
	r.mu.Unlock()
	ref.close()
}
