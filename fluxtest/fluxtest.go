// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fluxtest provides an exhaustive test store for flux reducers.
//
// A [TestStore] runs a reducer inside a real [flux.Store] and records every
// reduction. Tests send actions with [TestStore.Send] and assert on actions
// fed back by effects with [TestStore.Receive]; each call states exactly how
// the state must change, and any difference fails the test with a diff.
// A test also fails if it leaves received actions unasserted, if effects are
// still running when it finishes, or if the runtime raised an issue such as
// a stale element action.
//
// Time-dependent effects are tested inside a testing/synctest bubble:
//
//	synctest.Test(t, func(t *testing.T) {
//		ts := fluxtest.New(t, State{}, NewFeature(env), fluxtest.InBubble())
//		ts.Send(Start{}, func(s *State) { s.Running = true })
//		ts.Advance(time.Second)
//		ts.Receive(Tick{}, func(s *State) { s.Count = 1 })
//		ts.Finish()
//	})
package fluxtest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/google/go-cmp/cmp"

	"code.hybscloud.com/flux"
)

// Option configures a [TestStore].
type Option func(*options)

type options struct {
	timeout     time.Duration
	ids         *flux.IDGenerator
	bubble      bool
	allowIssues bool
	cmpOpts     []cmp.Option
	logger      *slog.Logger
}

// WithTimeout bounds how long Receive and Finish wait for effects outside a
// synctest bubble. The default is one second.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithIDs sets the generator the reducer under test draws IDs from.
// It must be deterministic. The default is a fresh incrementing generator.
func WithIDs(ids *flux.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// InBubble declares that the test runs inside synctest.Test. The store then
// settles with synctest.Wait instead of polling, and [TestStore.Advance]
// becomes available.
func InBubble() Option {
	return func(o *options) { o.bubble = true }
}

// AllowIssues records runtime issues instead of failing on them.
// Retrieve them with [TestStore.Issues].
func AllowIssues() Option {
	return func(o *options) { o.allowIssues = true }
}

// WithCmpOptions passes options to every state and action comparison.
func WithCmpOptions(opts ...cmp.Option) Option {
	return func(o *options) { o.cmpOpts = append(o.cmpOpts, opts...) }
}

// WithLogger sets the logger of the underlying store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// envelope marks whether an action came from the test or from an effect.
type envelope[A any] struct {
	action   A
	received bool
}

// reduction is one recorded reducer invocation.
type reduction[S, A any] struct {
	action A
	before S
	after  S
	ids    flux.IDCheckpoint
}

// TestStore drives a reducer and asserts on every state change.
type TestStore[S, A any] struct {
	t       testing.TB
	reducer flux.Reducer[S, A]
	store   *flux.Store[S, envelope[A]]
	ids     *flux.IDGenerator
	opts    options

	mu       sync.Mutex
	sent     []reduction[S, A]
	received []reduction[S, A]
	issues   []flux.Issue
	signal   chan struct{}
	finished bool
}

// New returns a test store holding initial. The test fails at cleanup if
// [TestStore.Finish] was not called and work is left over.
func New[S, A any](t testing.TB, initial S, reducer flux.Reducer[S, A], opts ...Option) *TestStore[S, A] {
	t.Helper()
	o := options{timeout: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = flux.NewIncrementingIDGenerator()
	}
	if !o.ids.Deterministic() {
		t.Fatal("fluxtest: WithIDs requires a deterministic generator")
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	ts := &TestStore[S, A]{
		t:       t,
		reducer: reducer,
		ids:     o.ids,
		opts:    o,
		signal:  make(chan struct{}, 1),
	}
	ts.store = flux.New[S, envelope[A]](initial, flux.ReduceFunc[S, envelope[A]](ts.reduce),
		flux.WithName(t.Name()),
		flux.WithLogger(o.logger),
		flux.WithRegistry(flux.NewRegistry()),
		flux.WithIssueHandler(ts.issue),
	)
	t.Cleanup(ts.Finish)
	return ts
}

// IDs returns the generator the reducer under test must use.
func (ts *TestStore[S, A]) IDs() *flux.IDGenerator {
	return ts.ids
}

// State returns the current state.
func (ts *TestStore[S, A]) State() S {
	return ts.store.State()
}

func (ts *TestStore[S, A]) reduce(state *S, e envelope[A]) flux.Effect[envelope[A]] {
	r := reduction[S, A]{action: e.action, before: *state, ids: ts.ids.Checkpoint()}
	effect := ts.reducer.Reduce(state, e.action)
	r.after = *state

	ts.mu.Lock()
	if e.received {
		ts.received = append(ts.received, r)
	} else {
		ts.sent = append(ts.sent, r)
	}
	ts.mu.Unlock()
	select {
	case ts.signal <- struct{}{}:
	default:
	}

	return flux.Map(effect, func(a A) envelope[A] {
		return envelope[A]{action: a, received: true}
	})
}

func (ts *TestStore[S, A]) issue(i flux.Issue) {
	ts.mu.Lock()
	ts.issues = append(ts.issues, i)
	ts.mu.Unlock()
}

// Issues returns and clears the issues recorded so far.
func (ts *TestStore[S, A]) Issues() []flux.Issue {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := ts.issues
	ts.issues = nil
	return out
}

// Send sends action and asserts that the state afterwards equals the state
// before with assert applied. Received actions must all have been asserted.
func (ts *TestStore[S, A]) Send(action A, assert ...func(*S)) {
	ts.t.Helper()
	ts.settle()
	if pending := ts.pending(); len(pending) > 0 {
		ts.t.Errorf("fluxtest: must handle %d received action(s) before sending %+v:\n%s",
			len(pending), action, describe(pending))
	}
	ts.store.Send(envelope[A]{action: action})
	ts.settle()
	r, ok := ts.await(&ts.sent)
	if !ok {
		ts.t.Errorf("fluxtest: sent %+v but it was not processed within %v", action, ts.opts.timeout)
		return
	}
	ts.expect("sending", r, assert)
	ts.settle()
	ts.checkIssues()
}

// Receive asserts that the next action fed back by an effect equals
// expected, and that it changed the state as assert describes.
func (ts *TestStore[S, A]) Receive(expected A, assert ...func(*S)) {
	ts.t.Helper()
	ts.receive(func(a A) {
		ts.t.Helper()
		if !cmp.Equal(expected, a, ts.opts.cmpOpts...) {
			ts.t.Errorf("fluxtest: received unexpected action (-expected +actual):\n%s",
				cmp.Diff(expected, a, ts.opts.cmpOpts...))
		}
	}, assert)
}

// ReceiveMatching is like [TestStore.Receive] with a predicate, for
// actions carrying values the test cannot predict.
func (ts *TestStore[S, A]) ReceiveMatching(match func(A) bool, assert ...func(*S)) {
	ts.t.Helper()
	ts.receive(func(a A) {
		ts.t.Helper()
		if !match(a) {
			ts.t.Errorf("fluxtest: received action %+v did not match", a)
		}
	}, assert)
}

func (ts *TestStore[S, A]) receive(check func(A), assert []func(*S)) {
	ts.t.Helper()
	ts.settle()
	r, ok := ts.await(&ts.received)
	if !ok {
		ts.t.Errorf("fluxtest: expected to receive an action, but received none")
		return
	}
	check(r.action)
	ts.expect("receiving", r, assert)
	ts.settle()
	ts.checkIssues()
}

// Advance moves the virtual clock forward by d and waits until every
// effect is blocked again. It requires [InBubble].
func (ts *TestStore[S, A]) Advance(d time.Duration) {
	ts.t.Helper()
	if !ts.opts.bubble {
		ts.t.Fatal("fluxtest: Advance requires InBubble")
	}
	time.Sleep(d)
	synctest.Wait()
}

// SkipReceivedActions discards received actions that have not been
// asserted.
func (ts *TestStore[S, A]) SkipReceivedActions() {
	ts.t.Helper()
	ts.settle()
	ts.mu.Lock()
	skipped := ts.received
	ts.received = nil
	ts.mu.Unlock()
	for _, r := range skipped {
		ts.t.Logf("fluxtest: skipped received action %+v", r.action)
	}
}

// SkipInFlightEffects cancels every running effect.
func (ts *TestStore[S, A]) SkipInFlightEffects() {
	ts.t.Helper()
	ts.settle()
	if n := ts.store.InFlight(); n > 0 {
		ts.t.Logf("fluxtest: skipping %d in-flight effect(s)", n)
	}
	ts.store.CancelEffects()
	ts.drainEffects()
}

// Finish asserts that every received action was handled and that no effect
// is still running, then tears the store down and resets the ID generator.
// It is called automatically at cleanup; calling it twice is harmless.
func (ts *TestStore[S, A]) Finish() {
	ts.t.Helper()
	ts.mu.Lock()
	if ts.finished {
		ts.mu.Unlock()
		return
	}
	ts.finished = true
	ts.mu.Unlock()

	ts.settle()
	if !ts.opts.bubble {
		ctx, cancel := context.WithTimeout(context.Background(), ts.opts.timeout)
		_ = ts.store.Wait(ctx)
		cancel()
	}
	if pending := ts.pending(); len(pending) > 0 {
		ts.t.Errorf("fluxtest: must handle %d received action(s):\n%s", len(pending), describe(pending))
	}
	if n := ts.store.InFlight(); n > 0 {
		ts.t.Errorf("fluxtest: %d effect(s) still running at the end of the test; "+
			"assert their actions, cancel them, or call SkipInFlightEffects", n)
	}
	ts.checkIssues()
	ts.store.Close()
	ts.drainEffects()
	ts.ids.Reset()
}

func (ts *TestStore[S, A]) drainEffects() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.opts.timeout)
	defer cancel()
	if err := ts.store.Wait(ctx); err != nil {
		ts.t.Errorf("fluxtest: cancelled effects did not exit: %v", err)
	}
	ts.settle()
}

func (ts *TestStore[S, A]) settle() {
	if ts.opts.bubble {
		synctest.Wait()
	}
}

func (ts *TestStore[S, A]) pending() []reduction[S, A] {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]reduction[S, A](nil), ts.received...)
}

// await pops the oldest reduction from list, waiting for one outside a
// bubble.
func (ts *TestStore[S, A]) await(list *[]reduction[S, A]) (reduction[S, A], bool) {
	deadline := time.NewTimer(ts.opts.timeout)
	defer deadline.Stop()
	for {
		ts.mu.Lock()
		if len(*list) > 0 {
			r := (*list)[0]
			*list = (*list)[1:]
			ts.mu.Unlock()
			return r, true
		}
		ts.mu.Unlock()
		if ts.opts.bubble {
			return reduction[S, A]{}, false
		}
		select {
		case <-ts.signal:
		case <-deadline.C:
			return reduction[S, A]{}, false
		}
	}
}

// expect applies assert to the state before r, with the ID generator
// rewound to where the reducer found it, and diffs against the state
// after r.
func (ts *TestStore[S, A]) expect(verb string, r reduction[S, A], assert []func(*S)) {
	ts.t.Helper()
	expected := r.before
	if len(assert) > 0 {
		current := ts.ids.Checkpoint()
		ts.ids.Restore(r.ids)
		for _, fn := range assert {
			fn(&expected)
		}
		ts.ids.Restore(current)
	}
	if diff := cmp.Diff(expected, r.after, ts.opts.cmpOpts...); diff != "" {
		ts.t.Errorf("fluxtest: state mismatch after %s %+v (-expected +actual):\n%s", verb, r.action, diff)
	}
}

func (ts *TestStore[S, A]) checkIssues() {
	ts.t.Helper()
	if ts.opts.allowIssues {
		return
	}
	for _, i := range ts.Issues() {
		ts.t.Errorf("fluxtest: unexpected issue: %v", i)
	}
}

func describe[S, A any](rs []reduction[S, A]) string {
	var b strings.Builder
	for _, r := range rs {
		fmt.Fprintf(&b, "  %+v\n", r.action)
	}
	return b.String()
}
