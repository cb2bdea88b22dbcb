// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flux provides a unidirectional state container with composable
// reducers and cancellable side effects.
//
// A [Store] owns a state value. The only way to change it is to send an
// action; a [Reducer] mutates the state in response and returns an [Effect]
// describing asynchronous work. Effects never touch state: they report back
// by sending further actions.
//
// # Design
//
//   - Reducers are plain values combined by functions, not by inheritance
//   - Effects are descriptions, interpreted by the store after the state commits
//   - Identity of collection elements and presentations is stable and explicit
//   - Stale references are diagnosed as [Issue] values, never as panics
//
// # Store
//
//   - [New]: Create a store from an initial state and a reducer
//   - [Store.Send]: Enqueue an action; the first sender drains the queue
//   - [Store.State], [Store.Subscribe], [Store.Observe]: Read committed state
//   - [Store.Wait], [Store.InFlight]: Track running effects
//   - [Store.CancelEffects], [Store.Close]: Stop effects
//
// Actions are processed strictly in FIFO order, one at a time. Sending from
// inside a reducer, an observer or an effect only enqueues.
//
// # Effects
//
// Leaves:
//
//   - [None]: Do nothing
//   - [Run]: Run a function in its own goroutine with a [Sender]
//   - [Send]: Enqueue an action after the current one
//   - [Cancel], [CancelAll]: Cancel effects by identifier or by scope
//   - [Dismiss]: Ask the enclosing stack element or presentation to close
//
// Composition:
//
//   - [Merge]: Run effects concurrently
//   - [Concatenate]: Run effects one after another
//   - [Effect.Cancellable]: Tag an effect; a new effect with the same
//     identifier cancels the old one first
//   - [Effect.CancellableConcurrent]: Tag without cancelling in flight peers
//   - [Map]: Transform the actions an effect sends
//
// Cancellation identifiers are scoped: an identifier used by a child reducer
// only matches effects started in the same scope. Cancelling a scope cancels
// everything below it. See [Registry].
//
// # Reducers
//
//   - [ReduceFunc], [Empty], [Combine], [OnChange]: Build and sequence reducers
//   - [Scope], [ScopeCase]: Run a child reducer on a part of the state
//   - [IfCaseLet]: Run a child reducer while the state is in one case
//   - [IfLet]: Run a child reducer on an optional [Presentation]
//   - [ForEach]: Run an element reducer on every element of a [Stack]
//
// [CasePath] connects a parent action or state type to one of its cases.
//
// Child reducers run before their parent. When an element or presentation
// disappears, every effect it started is cancelled before any effect the
// parent returned for the same action runs.
//
// # Identity
//
//   - [ID]: Stable identity, either a UUID or a deterministic integer
//   - [IDGenerator]: Live or incrementing source of IDs
//   - [Stack]: Ordered collection keyed by [ID] with value semantics
//   - [Presentation]: Optional child state with a presentation epoch
//
// # Shared State
//
//   - [Shared]: A reference cell shared by several features
//   - [Persistent]: A shared cell backed by a [Persistence]
//   - [References]: Deduplicates persistent cells by key
//
// Shared cells compare by value. A pinned snapshot lets a test assert what a
// cell held at a given point while the live value keeps changing.
//
// # Environment
//
// [Env] carries the clock, ID generator and logger effects should use;
// [LiveEnv] and [TestEnv] build the two usual variants.
//
// # Testing
//
// Package fluxtest provides an exhaustive test store that asserts every state
// change and every action effects send back.
package flux
