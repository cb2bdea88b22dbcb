// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"fmt"
	"strconv"
)

// IfLet combines parent with a child reducer running on an optional
// [Presentation] field.
//
// A presented action runs child first, then parent. If nothing is presented
// the child is skipped and an [IssueStalePresentation] is raised. A dismiss
// action runs parent and then empties the slot.
//
// Child effects are nested under the identity of the presentation. When
// that presentation goes away, dismissed or replaced, every effect nested
// under it is cancelled, including those of the child's own children.
// A child that dismisses itself sends the dismiss action.
func IfLet[P, PA, C, CA any](parent Reducer[P, PA], slot func(*P) *Presentation[C], action CasePath[PA, PresentationAction[CA]], child Reducer[C, CA]) Reducer[P, PA] {
	return &ifLetReducer[P, PA, C, CA]{parent: parent, slot: slot, action: action, child: child}
}

type ifLetReducer[P, PA, C, CA any] struct {
	parent Reducer[P, PA]
	slot   func(*P) *Presentation[C]
	action CasePath[PA, PresentationAction[CA]]
	child  Reducer[C, CA]
}

func (r *ifLetReducer[P, PA, C, CA]) segment(epoch uint64) string {
	return r.action.Name + "@" + strconv.FormatUint(epoch, 10)
}

func (r *ifLetReducer[P, PA, C, CA]) Reduce(state *P, action PA) Effect[PA] {
	slot := r.slot(state)
	presented, epoch := slot.IsPresented(), slot.epoch

	var issue, childEffect Effect[PA]
	pa, ok := r.action.Extract(action)
	if ok && !pa.dismiss {
		if presented {
			v := *slot.value
			effect := r.child.Reduce(&v, pa.action)
			slot.value = &v
			childEffect = lift(effect,
				func(a CA) PA { return r.action.Embed(Presented(a)) },
				r.segment(epoch),
				func() PA { return r.action.Embed(DismissPresentation[CA]()) },
			)
		} else {
			issue = report[PA](Issue{
				Kind:    IssueStalePresentation,
				Message: fmt.Sprintf("%s: presented action while nothing is presented", r.action.Name),
				Action:  action,
			})
		}
	}

	parentEffect := r.parent.Reduce(state, action)

	slot = r.slot(state)
	if ok && pa.dismiss {
		slot.Dismiss()
	}
	if presented && (!slot.IsPresented() || slot.epoch != epoch) {
		return Merge(cancelSegment[PA](r.segment(epoch)), issue, childEffect, parentEffect)
	}
	return Merge(issue, childEffect, parentEffect)
}
