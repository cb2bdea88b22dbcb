// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import "net/url"

// Scope embeds a child reducer that owns a field of the parent state.
//
// The child runs for every parent action that action extracts; its effects
// are mapped back with action.Embed and nested under action.Name, so the
// child's cancellation IDs never collide with the parent's or a sibling's.
func Scope[P, PA, C, CA any](state func(*P) *C, action CasePath[PA, CA], child Reducer[C, CA]) Reducer[P, PA] {
	return ReduceFunc[P, PA](func(parent *P, a PA) Effect[PA] {
		ca, ok := action.Extract(a)
		if !ok {
			return Effect[PA]{}
		}
		return lift(child.Reduce(state(parent), ca), action.Embed, action.Name, nil)
	})
}

// ScopeCase embeds a child reducer that owns one case of a sum-typed
// state. The child runs only while the state is in that case; actions
// arriving in any other case are ignored.
func ScopeCase[S, A, C, CA any](state CasePath[S, C], action CasePath[A, CA], child Reducer[C, CA]) Reducer[S, A] {
	return ReduceFunc[S, A](func(s *S, a A) Effect[A] {
		return reduceCase(s, a, state, action, child)
	})
}

// IfCaseLet runs child like [ScopeCase] before parent, and cancels every
// effect of the child once parent moves the state out of the case.
func IfCaseLet[S, A, C, CA any](parent Reducer[S, A], state CasePath[S, C], action CasePath[A, CA], child Reducer[C, CA]) Reducer[S, A] {
	return ReduceFunc[S, A](func(s *S, a A) Effect[A] {
		_, was := state.Extract(*s)
		childEffect := reduceCase(s, a, state, action, child)
		parentEffect := parent.Reduce(s, a)
		if _, still := state.Extract(*s); was && !still {
			return Merge(cancelSegment[A](state.Name), childEffect, parentEffect)
		}
		return Merge(childEffect, parentEffect)
	})
}

func reduceCase[S, A, C, CA any](s *S, a A, state CasePath[S, C], action CasePath[A, CA], child Reducer[C, CA]) Effect[A] {
	ca, ok := action.Extract(a)
	if !ok {
		return Effect[A]{}
	}
	c, ok := state.Extract(*s)
	if !ok {
		return Effect[A]{}
	}
	effect := child.Reduce(&c, ca)
	*s = state.Embed(c)
	return lift(effect, action.Embed, state.Name, nil)
}

// cancelSegment cancels everything nested under segment of the current scope.
func cancelSegment[A any](segment string) Effect[A] {
	return Effect[A]{op: opCancelScope, scope: []string{url.PathEscape(segment)}}
}
