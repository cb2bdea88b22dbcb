// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Stack is an ordered collection of values keyed by stable identity.
//
// Lookups by ID are O(1); iteration follows positional order. Stack has
// value semantics: mutating methods copy the backing storage first, so a
// copied Stack (for example inside a copied state) is never affected by
// changes to the original. The zero Stack is empty and draws IDs from a
// live generator.
//
// Each mutating call copies the storage, so it costs O(n). Use
// [Stack.AppendAll] to add many elements at once.
//
// Removing elements does not cancel anything by itself; reducers built
// with [ForEach] cancel the effects of every element that disappears.
type Stack[T any] struct {
	ids    []ID
	values map[ID]T
	gen    *IDGenerator
}

// NewStack returns a stack holding values, with IDs drawn from ids.
// A nil ids uses a live generator.
func NewStack[T any](ids *IDGenerator, values ...T) Stack[T] {
	s := Stack[T]{gen: ids}
	s.AppendAll(values...)
	return s
}

func (s *Stack[T]) generator() *IDGenerator {
	if s.gen == nil {
		return liveIDs
	}
	return s.gen
}

// own gives s private copies of its storage.
func (s *Stack[T]) own() {
	s.ids = slices.Clone(s.ids)
	values := make(map[ID]T, len(s.values)+1)
	maps.Copy(values, s.values)
	s.values = values
}

// Len returns the number of elements.
func (s Stack[T]) Len() int {
	return len(s.ids)
}

// IDs returns the element IDs in order.
func (s Stack[T]) IDs() []ID {
	return slices.Clone(s.ids)
}

// Contains reports whether id names an element.
func (s Stack[T]) Contains(id ID) bool {
	_, ok := s.values[id]
	return ok
}

// Index returns the position of id, or -1.
func (s Stack[T]) Index(id ID) int {
	if !s.Contains(id) {
		return -1
	}
	return slices.Index(s.ids, id)
}

// Get returns the element named id.
func (s Stack[T]) Get(id ID) (T, bool) {
	v, ok := s.values[id]
	return v, ok
}

// At returns the element at position i.
func (s Stack[T]) At(i int) (ID, T) {
	id := s.ids[i]
	return id, s.values[id]
}

// Last returns the top element.
func (s Stack[T]) Last() (ID, T, bool) {
	if len(s.ids) == 0 {
		var zero T
		return ID{}, zero, false
	}
	id := s.ids[len(s.ids)-1]
	return id, s.values[id], true
}

// All iterates over IDs and elements in order.
func (s Stack[T]) All() iter.Seq2[ID, T] {
	return func(yield func(ID, T) bool) {
		for _, id := range s.ids {
			if !yield(id, s.values[id]) {
				return
			}
		}
	}
}

// Values returns the elements in order.
func (s Stack[T]) Values() []T {
	out := make([]T, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.values[id])
	}
	return out
}

// Append adds v at the end under a fresh ID and returns the ID.
func (s *Stack[T]) Append(v T) ID {
	id := s.generator().Next()
	s.own()
	s.ids = append(s.ids, id)
	s.values[id] = v
	return id
}

// AppendAll adds values at the end under fresh IDs, copying the storage
// once, and returns the new IDs in order.
func (s *Stack[T]) AppendAll(values ...T) []ID {
	if len(values) == 0 {
		return nil
	}
	ids := make([]ID, len(values))
	for i := range values {
		ids[i] = s.generator().Next()
	}
	next := make([]ID, 0, len(s.ids)+len(ids))
	s.ids = append(append(next, s.ids...), ids...)
	m := make(map[ID]T, len(s.ids))
	maps.Copy(m, s.values)
	for i, id := range ids {
		m[id] = values[i]
	}
	s.values = m
	return ids
}

// Insert adds v under a fresh ID right before the element named before.
// It reports false and changes nothing if before is absent.
func (s *Stack[T]) Insert(v T, before ID) (ID, bool) {
	i := s.Index(before)
	if i < 0 {
		return ID{}, false
	}
	id := s.generator().Next()
	s.own()
	s.ids = slices.Insert(s.ids, i, id)
	s.values[id] = v
	return id, true
}

// Push adds v at the end under an explicit id. It reports false if id is
// zero or already present. Deterministic generators are advanced past id.
func (s *Stack[T]) Push(id ID, v T) bool {
	if id.IsZero() || s.Contains(id) {
		return false
	}
	s.generator().Reserve(id)
	s.own()
	s.ids = append(s.ids, id)
	s.values[id] = v
	return true
}

// Set replaces the element named id. It reports false if id is absent.
func (s *Stack[T]) Set(id ID, v T) bool {
	if !s.Contains(id) {
		return false
	}
	s.own()
	s.values[id] = v
	return true
}

// Update applies fn to the element named id in place.
func (s *Stack[T]) Update(id ID, fn func(*T)) bool {
	v, ok := s.Get(id)
	if !ok {
		return false
	}
	fn(&v)
	return s.Set(id, v)
}

// Remove deletes the element named id and returns it.
func (s *Stack[T]) Remove(id ID) (T, bool) {
	v, ok := s.values[id]
	if !ok {
		return v, false
	}
	i := slices.Index(s.ids, id)
	s.own()
	s.ids = slices.Delete(s.ids, i, i+1)
	delete(s.values, id)
	return v, true
}

// RemoveLast deletes the top element.
func (s *Stack[T]) RemoveLast() (ID, T, bool) {
	id, v, ok := s.Last()
	if ok {
		s.Remove(id)
	}
	return id, v, ok
}

// PopFrom deletes the element named id and every element after it.
func (s *Stack[T]) PopFrom(id ID) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.truncate(i)
	return true
}

// PopTo deletes every element after the one named id.
func (s *Stack[T]) PopTo(id ID) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.truncate(i + 1)
	return true
}

func (s *Stack[T]) truncate(n int) {
	s.own()
	for _, id := range s.ids[n:] {
		delete(s.values, id)
	}
	s.ids = s.ids[:n:n]
}

// RemoveAll deletes every element.
func (s *Stack[T]) RemoveAll() {
	s.ids = nil
	s.values = nil
}

// Equal reports whether both stacks hold equal elements under the same IDs
// in the same order. Generators are not compared.
func (s Stack[T]) Equal(other Stack[T]) bool {
	if !slices.Equal(s.ids, other.ids) {
		return false
	}
	for _, id := range s.ids {
		if !cmp.Equal(s.values[id], other.values[id]) {
			return false
		}
	}
	return true
}

func (s Stack[T]) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range s.ids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v: %+v", id, s.values[id])
	}
	b.WriteByte(']')
	return b.String()
}
