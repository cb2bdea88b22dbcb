// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"fmt"
	"reflect"
)

// effectOp tags the variant of a defunctionalized [Effect].
type effectOp uint8

const (
	opNone effectOp = iota
	opRun
	opSend
	opCancel
	opCancelScope
	opMerge
	opConcat
	opDismiss
	opIssue
)

// Sender delivers actions from a running effect back to the store that
// scheduled it. Actions sent after the effect has been cancelled are dropped.
type Sender[A any] struct {
	send    func(A)
	dismiss func()
}

// Send enqueues action on the owning store.
func (s Sender[A]) Send(action A) {
	if s.send != nil {
		s.send(action)
	}
}

// Dismiss asks the nearest enclosing presentation (a stack element or a
// presented slot) to remove the feature that owns this effect.
func (s Sender[A]) Dismiss() {
	if s.dismiss != nil {
		s.dismiss()
	}
}

// Effect describes work to perform after a state commit.
//
// Effects are plain values: reducers build them, the store interprets them.
// The zero Effect is [None].
type Effect[A any] struct {
	op         effectOp
	run        func(ctx context.Context, send Sender[A]) error
	action     A
	id         any
	hasID      bool
	concurrent bool
	scope      []string
	members    []Effect[A]
	issue      *Issue
}

// None returns an effect that does nothing.
func None[A any]() Effect[A] {
	return Effect[A]{}
}

// Run returns an effect that executes fn in its own goroutine.
//
// ctx is cancelled when the effect is cancelled, directly or by removal of
// the state that owns it. fn should return promptly once ctx is done;
// context.Canceled and errors wrapping it are not reported.
func Run[A any](fn func(ctx context.Context, send Sender[A]) error) Effect[A] {
	return Effect[A]{op: opRun, run: fn}
}

// Send returns an effect that feeds action back into the store immediately
// after the current action.
func Send[A any](action A) Effect[A] {
	return Effect[A]{op: opSend, action: action}
}

// Cancel returns an effect that cancels every running effect tagged with id
// in the current scope. Cancelling an id with nothing running is a no-op.
func Cancel[A any](id any) Effect[A] {
	return Effect[A]{op: opCancel, id: mustComparable(id), hasID: true}
}

// CancelAll returns an effect that cancels every running effect in the
// current scope, including effects of nested children.
func CancelAll[A any]() Effect[A] {
	return Effect[A]{op: opCancelScope}
}

// Dismiss returns an effect that removes the current feature from its
// enclosing stack or presentation slot.
func Dismiss[A any]() Effect[A] {
	return Effect[A]{op: opDismiss}
}

// Merge returns an effect that runs all effects concurrently.
func Merge[A any](effects ...Effect[A]) Effect[A] {
	return group(opMerge, effects)
}

// Concatenate returns an effect that runs effects one after another.
// Each member starts only after the previous one has finished.
func Concatenate[A any](effects ...Effect[A]) Effect[A] {
	return group(opConcat, effects)
}

func group[A any](op effectOp, effects []Effect[A]) Effect[A] {
	members := make([]Effect[A], 0, len(effects))
	for _, e := range effects {
		if e.op != opNone {
			members = append(members, e)
		}
	}
	switch len(members) {
	case 0:
		return Effect[A]{}
	case 1:
		return members[0]
	}
	return Effect[A]{op: op, members: members}
}

// report returns an effect that raises issue through the store's handler.
func report[A any](issue Issue) Effect[A] {
	return Effect[A]{op: opIssue, issue: &issue}
}

// Merge returns an effect that runs e and others concurrently.
func (e Effect[A]) Merge(others ...Effect[A]) Effect[A] {
	return Merge(append([]Effect[A]{e}, others...)...)
}

// Concatenate returns an effect that runs e and then others in order.
func (e Effect[A]) Concatenate(others ...Effect[A]) Effect[A] {
	return Concatenate(append([]Effect[A]{e}, others...)...)
}

// Cancellable tags e with id. Scheduling it cancels every effect already
// running under id in the same scope and waits for them to finish before
// starting. id must be comparable.
func (e Effect[A]) Cancellable(id any) Effect[A] {
	return e.tag(id, false)
}

// CancellableConcurrent tags e with id without cancelling effects already
// running under id; all of them are cancelled together by [Cancel].
func (e Effect[A]) CancellableConcurrent(id any) Effect[A] {
	return e.tag(id, true)
}

func (e Effect[A]) tag(id any, concurrent bool) Effect[A] {
	id = mustComparable(id)
	switch e.op {
	case opRun, opMerge, opConcat:
		e.id, e.hasID, e.concurrent = id, true, concurrent
	}
	return e
}

// IsNone reports whether e does nothing.
func (e Effect[A]) IsNone() bool {
	return e.op == opNone
}

func (e Effect[A]) String() string {
	switch e.op {
	case opNone:
		return "none"
	case opRun:
		if e.hasID {
			return fmt.Sprintf("run(%v)", e.id)
		}
		return "run"
	case opSend:
		return fmt.Sprintf("send(%+v)", e.action)
	case opCancel:
		return fmt.Sprintf("cancel(%v)", e.id)
	case opCancelScope:
		return "cancelAll"
	case opMerge:
		return fmt.Sprintf("merge%v", e.members)
	case opConcat:
		return fmt.Sprintf("concatenate%v", e.members)
	case opDismiss:
		return "dismiss"
	case opIssue:
		return "issue(" + e.issue.Kind.String() + ")"
	}
	return "effect?"
}

func mustComparable(id any) any {
	if id == nil {
		panic("flux: nil cancellation id")
	}
	if !reflect.TypeOf(id).Comparable() {
		panic(fmt.Sprintf("flux: cancellation id of type %T is not comparable", id))
	}
	return id
}
