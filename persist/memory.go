// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package persist

import (
	"context"
	"fmt"
	"sync"

	"code.hybscloud.com/flux"
)

// MemoryStore holds values in process memory, keyed by name.
// Keys opened on the same store see each other's writes.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]any
	subs   map[string]map[*memorySub]struct{}
}

type memorySub struct {
	owner any
	put   func(flux.Update[any])
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]any),
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

// MemoryKey is a [flux.Persistence] for one name in a [MemoryStore].
type MemoryKey[T any] struct {
	store *MemoryStore
	name  string
}

// Memory returns the key called name in store.
func Memory[T any](store *MemoryStore, name string) *MemoryKey[T] {
	return &MemoryKey[T]{store: store, name: name}
}

// Key implements [flux.Persistence].
func (k *MemoryKey[T]) Key() string {
	return "memory:" + k.name
}

// Load implements [flux.Persistence].
func (k *MemoryKey[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	raw, ok := k.store.values[k.name]
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("memory %q holds %T", k.name, raw)
	}
	return v, true, nil
}

// Save implements [flux.Persistence]. Other keys with the same name are
// notified; k itself is not.
func (k *MemoryKey[T]) Save(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.store.write(k, k.name, v, true)
	return nil
}

// Put writes v as an external writer would: every key is notified.
func (k *MemoryKey[T]) Put(v T) {
	k.store.write(nil, k.name, v, true)
}

// Delete removes the value and notifies every key.
func (k *MemoryKey[T]) Delete() {
	k.store.write(nil, k.name, nil, false)
}

// Updates implements [flux.Persistence].
func (k *MemoryKey[T]) Updates(ctx context.Context) <-chan flux.Update[T] {
	ch := make(chan flux.Update[T], 1)
	var mu sync.Mutex
	closed := false
	sub := &memorySub{owner: k, put: func(u flux.Update[any]) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		var out flux.Update[T]
		if u.Present {
			v, ok := u.Value.(T)
			if !ok {
				return
			}
			out = flux.Update[T]{Value: v, Present: true}
		}
		select {
		case <-ch:
		default:
		}
		ch <- out
	}}

	s := k.store
	s.mu.Lock()
	if s.subs[k.name] == nil {
		s.subs[k.name] = make(map[*memorySub]struct{})
	}
	s.subs[k.name][sub] = struct{}{}
	s.mu.Unlock()

	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		delete(s.subs[k.name], sub)
		s.mu.Unlock()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	})
	return ch
}

func (s *MemoryStore) write(origin any, name string, v any, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if present {
		s.values[name] = v
	} else {
		delete(s.values, name)
	}
	for sub := range s.subs[name] {
		if origin == nil || sub.owner != origin {
			sub.put(flux.Update[any]{Value: v, Present: present})
		}
	}
}

// Names returns the names holding a value.
func (s *MemoryStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	return names
}
