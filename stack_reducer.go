// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import "fmt"

// ForEach combines parent with an element reducer running on each element
// of a [Stack] field.
//
// For an element action the element reducer runs first on the element with
// that ID, then parent. An element action for an absent ID is stale: state
// is left alone, no reducer runs and an [IssueStaleElement] is raised. For
// pop and push actions parent runs first, then the stack is changed.
//
// Every element's effects are nested under its ID. Whenever an element
// leaves the stack, for whatever reason, all effects nested under it are
// cancelled before any other effect of the same action is scheduled. An
// element that dismisses itself is popped.
func ForEach[P, PA, C, CA any](parent Reducer[P, PA], stack func(*P) *Stack[C], action CasePath[PA, StackAction[C, CA]], element Reducer[C, CA]) Reducer[P, PA] {
	return &forEachReducer[P, PA, C, CA]{parent: parent, stack: stack, action: action, element: element}
}

type forEachReducer[P, PA, C, CA any] struct {
	parent  Reducer[P, PA]
	stack   func(*P) *Stack[C]
	action  CasePath[PA, StackAction[C, CA]]
	element Reducer[C, CA]
}

func (r *forEachReducer[P, PA, C, CA]) segment(id ID) string {
	return r.action.Name + "[" + id.String() + "]"
}

func (r *forEachReducer[P, PA, C, CA]) Reduce(state *P, action PA) Effect[PA] {
	before := r.stack(state).IDs()

	var issue, elementEffect, parentEffect Effect[PA]
	sa, ok := r.action.Extract(action)
	switch {
	case !ok:
		parentEffect = r.parent.Reduce(state, action)
	case sa.kind == stackElement:
		s := r.stack(state)
		v, present := s.Get(sa.id)
		if !present {
			return report[PA](Issue{
				Kind:    IssueStaleElement,
				Message: fmt.Sprintf("%s: element action for %v, which is not in the stack", r.action.Name, sa.id),
				Action:  action,
			})
		}
		effect := r.element.Reduce(&v, sa.action)
		s.Set(sa.id, v)
		elementEffect = r.liftElement(sa.id, effect)
		parentEffect = r.parent.Reduce(state, action)
	case sa.kind == stackPopFrom:
		parentEffect = r.parent.Reduce(state, action)
		if !r.stack(state).PopFrom(sa.id) {
			issue = report[PA](Issue{
				Kind:    IssueStalePop,
				Message: fmt.Sprintf("%s: pop from %v, which is not in the stack", r.action.Name, sa.id),
				Action:  action,
			})
		}
	case sa.kind == stackPush:
		parentEffect = r.parent.Reduce(state, action)
		if !r.stack(state).Push(sa.id, sa.state) {
			issue = report[PA](Issue{
				Kind:    IssueDuplicatePush,
				Message: fmt.Sprintf("%s: push of %v, which is already in the stack or zero", r.action.Name, sa.id),
				Action:  action,
			})
		}
	}

	after := r.stack(state)
	effects := make([]Effect[PA], 0, len(before)+3)
	for _, id := range before {
		if !after.Contains(id) {
			effects = append(effects, cancelSegment[PA](r.segment(id)))
		}
	}
	return Merge(append(effects, issue, elementEffect, parentEffect)...)
}

func (r *forEachReducer[P, PA, C, CA]) liftElement(id ID, effect Effect[CA]) Effect[PA] {
	return lift(effect,
		func(a CA) PA { return r.action.Embed(StackElement[C, CA](id, a)) },
		r.segment(id),
		func() PA { return r.action.Embed(StackPopFrom[C, CA](id)) },
	)
}
