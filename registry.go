// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"strings"
	"sync"
)

// Cancellations is the process-wide registry used by stores that are not
// given one with [WithRegistry].
var Cancellations = NewRegistry()

// cancelKey is a composite identity: the scope the effect was lifted into
// plus the id the reducer tagged it with.
type cancelKey struct {
	scope string
	id    any
}

// Registry tracks running effects by composite identity and by scope.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	keyed  map[cancelKey]map[*task]struct{}
	scopes map[string]map[*task]struct{}
	n      int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		keyed:  make(map[cancelKey]map[*task]struct{}),
		scopes: make(map[string]map[*task]struct{}),
	}
}

// Len returns the number of registered tasks, including cancelled tasks
// that have not exited yet.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// register adds t and returns the tasks under t's key it must wait for
// before starting. Unless concurrent, every task already running under the
// key is cancelled and returned. Concurrent tasks still wait for tasks that
// were cancelled but have not exited yet.
func (r *Registry) register(t *task, concurrent bool) (prior []*task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	indexAdd(r.scopes, t.scope, t)
	r.n++
	if !t.keyed {
		return nil
	}
	set := r.keyed[t.key]
	for p := range set {
		if !concurrent {
			p.Cancel()
		}
		if p.Cancelled() {
			prior = append(prior, p)
		}
	}
	indexAdd(r.keyed, t.key, t)
	return prior
}

func (r *Registry) unregister(t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scopes[t.scope][t]; !ok {
		return
	}
	r.n--
	indexDrop(r.scopes, t.scope, t)
	if t.keyed {
		indexDrop(r.keyed, t.key, t)
	}
}

func indexAdd[K comparable](index map[K]map[*task]struct{}, k K, t *task) {
	set := index[k]
	if set == nil {
		set = make(map[*task]struct{})
		index[k] = set
	}
	set[t] = struct{}{}
}

func indexDrop[K comparable](index map[K]map[*task]struct{}, k K, t *task) {
	set := index[k]
	delete(set, t)
	if len(set) == 0 {
		delete(index, k)
	}
}

// cancel cancels every task registered under key and returns how many
// were signalled. Unknown keys are a no-op.
func (r *Registry) cancel(key cancelKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for t := range r.keyed[key] {
		if t.Cancel() {
			n++
		}
	}
	return n
}

// cancelScope cancels every task whose scope is prefix or nested below it.
// Scopes end in a separator, so a prefix never matches a sibling.
func (r *Registry) cancelScope(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for scope, set := range r.scopes {
		if !strings.HasPrefix(scope, prefix) {
			continue
		}
		for t := range set {
			if t.Cancel() {
				n++
			}
		}
	}
	return n
}

// running counts the tasks whose scope is prefix or nested below it.
func (r *Registry) running(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for scope, set := range r.scopes {
		if strings.HasPrefix(scope, prefix) {
			n += len(set)
		}
	}
	return n
}
