// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux_test

import (
	"slices"
	"testing"

	"code.hybscloud.com/flux"
)

func ids(ns ...uint64) []flux.ID {
	out := make([]flux.ID, len(ns))
	for i, n := range ns {
		out[i] = flux.IntID(n)
	}
	return out
}

func TestStackAppend(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), "a", "b")
	id := s.Append("c")
	if id != flux.IntID(2) {
		t.Fatalf("got %v, want #2", id)
	}
	if got, want := s.IDs(), ids(0, 1, 2); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := s.Values(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("got %v, want [a b c]", got)
	}
	if v, ok := s.Get(flux.IntID(1)); !ok || v != "b" {
		t.Fatalf("got %q, %v, want b, true", v, ok)
	}
}

func TestStackAppendAll(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), "a")
	before := s
	if got, want := s.AppendAll("b", "c"), ids(1, 2); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := s.Values(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("got %v, want [a b c]", got)
	}
	if got := before.Values(); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("copy changed to %v", got)
	}
	if got := s.AppendAll(); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestStackInsert(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), "a", "c")
	id, ok := s.Insert("b", flux.IntID(1))
	if !ok || id != flux.IntID(2) {
		t.Fatalf("got %v, %v, want #2, true", id, ok)
	}
	if got := s.Values(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("got %v, want [a b c]", got)
	}
	if _, ok := s.Insert("x", flux.IntID(9)); ok {
		t.Fatal("insert before absent id succeeded")
	}
	if s.Len() != 3 {
		t.Fatalf("got len %d, want 3", s.Len())
	}
}

func TestStackPush(t *testing.T) {
	s := flux.NewStack[string](flux.NewIncrementingIDGenerator())
	if !s.Push(flux.IntID(4), "x") {
		t.Fatal("push failed")
	}
	if s.Push(flux.IntID(4), "y") {
		t.Fatal("duplicate push succeeded")
	}
	if s.Push(flux.ID{}, "z") {
		t.Fatal("push of zero id succeeded")
	}
	if id := s.Append("w"); id != flux.IntID(5) {
		t.Fatalf("append after push: got %v, want #5", id)
	}
}

func TestStackRemove(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), 10, 20, 30)
	v, ok := s.Remove(flux.IntID(1))
	if !ok || v != 20 {
		t.Fatalf("got %d, %v, want 20, true", v, ok)
	}
	if _, ok := s.Get(flux.IntID(1)); ok {
		t.Fatal("removed id still resolves")
	}
	if _, ok := s.Remove(flux.IntID(1)); ok {
		t.Fatal("second remove succeeded")
	}
	if s.Index(flux.IntID(2)) != 1 {
		t.Fatalf("got index %d, want 1", s.Index(flux.IntID(2)))
	}
	if id := s.Append(40); id == flux.IntID(1) {
		t.Fatal("removed id was reissued")
	}
	s.RemoveAll()
	if s.Len() != 0 {
		t.Fatalf("got len %d, want 0", s.Len())
	}
}

func TestStackPop(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), 0, 1, 2, 3)
	if !s.PopTo(flux.IntID(2)) {
		t.Fatal("pop to failed")
	}
	if got := s.IDs(); !slices.Equal(got, ids(0, 1, 2)) {
		t.Fatalf("got %v, want #0 #1 #2", got)
	}
	if !s.PopFrom(flux.IntID(1)) {
		t.Fatal("pop from failed")
	}
	if got := s.IDs(); !slices.Equal(got, ids(0)) {
		t.Fatalf("got %v, want #0", got)
	}
	if s.PopFrom(flux.IntID(3)) {
		t.Fatal("pop from absent id succeeded")
	}
	id, v, ok := s.RemoveLast()
	if !ok || id != flux.IntID(0) || v != 0 {
		t.Fatalf("got %v %d %v, want #0 0 true", id, v, ok)
	}
	if _, _, ok := s.RemoveLast(); ok {
		t.Fatal("remove last on empty stack succeeded")
	}
}

func TestStackValueSemantics(t *testing.T) {
	a := flux.NewStack(flux.NewIncrementingIDGenerator(), 1, 2)
	b := a
	b.Append(3)
	b.Set(flux.IntID(0), 100)
	b.Update(flux.IntID(1), func(v *int) { *v *= 10 })
	if got := a.Values(); !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("original changed: %v", got)
	}
	if got := b.Values(); !slices.Equal(got, []int{100, 20, 3}) {
		t.Fatalf("got %v, want [100 20 3]", got)
	}
}

func TestStackEqual(t *testing.T) {
	a := flux.NewStack(flux.NewIncrementingIDGenerator(), counter{1}, counter{2})
	b := flux.NewStack(flux.NewIncrementingIDGenerator(), counter{1}, counter{2})
	if !a.Equal(b) {
		t.Fatalf("%v != %v", a, b)
	}
	b.Set(flux.IntID(1), counter{3})
	if a.Equal(b) {
		t.Fatal("stacks with different values compare equal")
	}
	c := flux.NewStack[counter](flux.NewIncrementingIDGenerator())
	c.Push(flux.IntID(1), counter{1})
	c.Push(flux.IntID(0), counter{2})
	if a.Equal(c) {
		t.Fatal("stacks with different order compare equal")
	}
}

func TestStackAll(t *testing.T) {
	s := flux.NewStack(flux.NewIncrementingIDGenerator(), "a", "b", "c")
	var got []string
	for id, v := range s.All() {
		got = append(got, id.String()+v)
		if v == "b" {
			break
		}
	}
	if !slices.Equal(got, []string{"#0a", "#1b"}) {
		t.Fatalf("got %v", got)
	}
	if id, v, ok := s.Last(); !ok || id != flux.IntID(2) || v != "c" {
		t.Fatalf("last: got %v %q %v", id, v, ok)
	}
	if id, v := s.At(1); id != flux.IntID(1) || v != "b" {
		t.Fatalf("at 1: got %v %q", id, v)
	}
}

func TestZeroStackUsesLiveIDs(t *testing.T) {
	var s flux.Stack[int]
	a, b := s.Append(1), s.Append(2)
	if a.Deterministic() || b.Deterministic() || a == b {
		t.Fatalf("got %v and %v, want two distinct live ids", a, b)
	}
}
