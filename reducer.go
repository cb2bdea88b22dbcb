// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

// Reducer evolves state in response to an action and describes the work
// to perform afterwards.
//
// Reduce mutates *state in place and must not block or start goroutines:
// everything asynchronous belongs in the returned [Effect]. The store runs
// Reduce on a copy of its state and commits the copy when Reduce returns.
type Reducer[S, A any] interface {
	Reduce(state *S, action A) Effect[A]
}

// ReduceFunc adapts a function to [Reducer].
//
// Example:
//
//	counter := flux.ReduceFunc[int, Action](func(n *int, a Action) flux.Effect[Action] {
//		*n++
//		return flux.None[Action]()
//	})
type ReduceFunc[S, A any] func(state *S, action A) Effect[A]

// Reduce calls f(state, action).
func (f ReduceFunc[S, A]) Reduce(state *S, action A) Effect[A] {
	return f(state, action)
}

// Empty returns a reducer that changes nothing.
func Empty[S, A any]() Reducer[S, A] {
	return ReduceFunc[S, A](func(*S, A) Effect[A] { return Effect[A]{} })
}

// Combine returns a reducer that runs reducers in order on the same state
// and merges their effects.
func Combine[S, A any](reducers ...Reducer[S, A]) Reducer[S, A] {
	return combined[S, A](reducers)
}

type combined[S, A any] []Reducer[S, A]

func (c combined[S, A]) Reduce(state *S, action A) Effect[A] {
	effects := make([]Effect[A], 0, len(c))
	for _, r := range c {
		effects = append(effects, r.Reduce(state, action))
	}
	return Merge(effects...)
}

// OnChange wraps reducer so that whenever the value selected from state
// changes across one action, then runs with the old and new values and may
// adjust state further.
func OnChange[S, A any, V comparable](reducer Reducer[S, A], selector func(S) V, then func(old, new V, state *S) Effect[A]) Reducer[S, A] {
	return ReduceFunc[S, A](func(state *S, action A) Effect[A] {
		old := selector(*state)
		effect := reducer.Reduce(state, action)
		if now := selector(*state); now != old {
			return Merge(effect, then(old, now, state))
		}
		return effect
	})
}
