// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"net/url"
)

// Map converts the actions produced by e with f.
// Cancellation identities and scopes are preserved.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	return mapEffect(e, f, nil)
}

// lift maps e into a parent action space and nests it under segment.
// dismiss, when non-nil, turns child dismissal requests into a parent action.
func lift[A, B any](e Effect[A], f func(A) B, segment string, dismiss func() B) Effect[B] {
	out := mapEffect(e, f, dismiss)
	if out.op == opNone || segment == "" {
		return out
	}
	out.scope = append([]string{url.PathEscape(segment)}, out.scope...)
	return out
}

func mapEffect[A, B any](e Effect[A], f func(A) B, dismiss func() B) Effect[B] {
	out := Effect[B]{
		op:         e.op,
		id:         e.id,
		hasID:      e.hasID,
		concurrent: e.concurrent,
		scope:      e.scope,
		issue:      e.issue,
	}
	switch e.op {
	case opSend:
		out.action = f(e.action)
	case opDismiss:
		if dismiss != nil {
			out.op = opSend
			out.action = dismiss()
		}
	case opRun:
		run := e.run
		out.run = func(ctx context.Context, send Sender[B]) error {
			inner := Sender[A]{
				send:    func(a A) { send.Send(f(a)) },
				dismiss: send.Dismiss,
			}
			if dismiss != nil {
				inner.dismiss = func() { send.Send(dismiss()) }
			}
			return run(ctx, inner)
		}
	case opMerge, opConcat:
		out.members = make([]Effect[B], len(e.members))
		for i, m := range e.members {
			out.members[i] = mapEffect(m, f, dismiss)
		}
	}
	return out
}

// scopeOf appends the escaped segments of an effect to base.
func scopeOf(base string, segments []string) string {
	for _, s := range segments {
		base += s + "/"
	}
	return base
}
