// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"fmt"
	"sync/atomic"

	"github.com/google/go-cmp/cmp"
)

var presentationEpochs atomic.Uint64

// Presentation is an optional child state slot, such as a sheet or a
// destination. Every presentation gets a fresh identity, so replacing one
// child with another is distinguishable from updating it in place.
// The zero Presentation is empty.
type Presentation[T any] struct {
	value *T
	epoch uint64
}

// Presenting returns a slot presenting v.
func Presenting[T any](v T) Presentation[T] {
	return Presentation[T]{value: &v, epoch: presentationEpochs.Add(1)}
}

// Get returns the presented value.
func (p Presentation[T]) Get() (T, bool) {
	if p.value == nil {
		var zero T
		return zero, false
	}
	return *p.value, true
}

// IsPresented reports whether the slot holds a value.
func (p Presentation[T]) IsPresented() bool {
	return p.value != nil
}

// Present replaces the slot content with v under a new identity.
func (p *Presentation[T]) Present(v T) {
	*p = Presenting(v)
}

// Dismiss empties the slot.
func (p *Presentation[T]) Dismiss() {
	p.value = nil
}

// Update applies fn to the presented value, keeping its identity.
// It reports false if nothing is presented.
func (p *Presentation[T]) Update(fn func(*T)) bool {
	if p.value == nil {
		return false
	}
	v := *p.value
	fn(&v)
	p.value = &v
	return true
}

// Equal compares presented values; identities are ignored.
func (p Presentation[T]) Equal(other Presentation[T]) bool {
	if p.value == nil || other.value == nil {
		return p.value == nil && other.value == nil
	}
	return cmp.Equal(*p.value, *other.value)
}

func (p Presentation[T]) String() string {
	if p.value == nil {
		return "<dismissed>"
	}
	return fmt.Sprintf("%+v", *p.value)
}

// PresentationAction is the action envelope of a presented child:
// either an action for the child or a request to dismiss it.
type PresentationAction[A any] struct {
	action  A
	dismiss bool
}

// Presented wraps a child action.
func Presented[A any](action A) PresentationAction[A] {
	return PresentationAction[A]{action: action}
}

// DismissPresentation returns the dismiss request.
func DismissPresentation[A any]() PresentationAction[A] {
	return PresentationAction[A]{dismiss: true}
}

// Action returns the wrapped child action.
func (a PresentationAction[A]) Action() (A, bool) {
	return a.action, !a.dismiss
}

// IsDismiss reports whether a is the dismiss request.
func (a PresentationAction[A]) IsDismiss() bool {
	return a.dismiss
}

// Equal reports whether both envelopes are the same request.
func (a PresentationAction[A]) Equal(other PresentationAction[A]) bool {
	if a.dismiss || other.dismiss {
		return a.dismiss == other.dismiss
	}
	return cmp.Equal(a.action, other.action)
}

func (a PresentationAction[A]) String() string {
	if a.dismiss {
		return "dismiss"
	}
	return fmt.Sprintf("presented(%+v)", a.action)
}

// stackActionKind tags a [StackAction].
type stackActionKind uint8

const (
	stackElement stackActionKind = iota
	stackPopFrom
	stackPush
)

// StackAction is the action envelope of a [Stack] of child features:
// an action for one element, a pop of an element and everything above it,
// or a push of a new element under an explicit ID.
type StackAction[S, A any] struct {
	kind   stackActionKind
	id     ID
	action A
	state  S
}

// StackElement wraps an action for the element named id.
func StackElement[S, A any](id ID, action A) StackAction[S, A] {
	return StackAction[S, A]{kind: stackElement, id: id, action: action}
}

// StackPopFrom requests removal of id and every element after it.
func StackPopFrom[S, A any](id ID) StackAction[S, A] {
	return StackAction[S, A]{kind: stackPopFrom, id: id}
}

// StackPush requests appending state under id.
func StackPush[S, A any](id ID, state S) StackAction[S, A] {
	return StackAction[S, A]{kind: stackPush, id: id, state: state}
}

// ID returns the element the action addresses.
func (a StackAction[S, A]) ID() ID {
	return a.id
}

// Element returns the element ID and action of an element action.
func (a StackAction[S, A]) Element() (ID, A, bool) {
	return a.id, a.action, a.kind == stackElement
}

// PopFrom returns the ID of a pop action.
func (a StackAction[S, A]) PopFrom() (ID, bool) {
	return a.id, a.kind == stackPopFrom
}

// Push returns the ID and state of a push action.
func (a StackAction[S, A]) Push() (ID, S, bool) {
	return a.id, a.state, a.kind == stackPush
}

// Equal reports whether both envelopes are the same request.
func (a StackAction[S, A]) Equal(other StackAction[S, A]) bool {
	if a.kind != other.kind || a.id != other.id {
		return false
	}
	switch a.kind {
	case stackElement:
		return cmp.Equal(a.action, other.action)
	case stackPush:
		return cmp.Equal(a.state, other.state)
	}
	return true
}

func (a StackAction[S, A]) String() string {
	switch a.kind {
	case stackPopFrom:
		return fmt.Sprintf("popFrom(%v)", a.id)
	case stackPush:
		return fmt.Sprintf("push(%v, %+v)", a.id, a.state)
	}
	return fmt.Sprintf("element(%v, %+v)", a.id, a.action)
}
