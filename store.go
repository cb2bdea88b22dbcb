// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// instrumentation is the tracer name used when no tracer is supplied.
const instrumentation = "code.hybscloud.com/flux"

var storeSeq atomic.Uint64

// Option configures a [Store].
type Option func(*storeOptions)

type storeOptions struct {
	name     string
	logger   *slog.Logger
	registry *Registry
	tracer   trace.Tracer
	onIssue  func(Issue)
}

// WithName names the store in scopes, spans and logs.
func WithName(name string) Option {
	return func(o *storeOptions) { o.name = name }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

// WithRegistry sets the cancellation registry. The default is [Cancellations].
func WithRegistry(r *Registry) Option {
	return func(o *storeOptions) { o.registry = r }
}

// WithTracer sets the tracer used for one span per reduced action.
// The default is the global OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *storeOptions) { o.tracer = tracer }
}

// WithIssueHandler sets the function that receives diagnostics such as
// stale actions and failed effects. The default logs them with [LogIssues].
func WithIssueHandler(fn func(Issue)) Option {
	return func(o *storeOptions) { o.onIssue = fn }
}

// queued is an action waiting for dispatch, tagged with the effect that
// sent it, if any.
type queued[A any] struct {
	action A
	origin *task
}

// Store owns a state value and serializes every change to it.
//
// Actions are processed one at a time in the order they were sent. For each
// action the reducer runs on a copy of the state, the result is committed and
// published to observers, and only then is the returned effect scheduled.
// Effects run in their own goroutines and talk back to the store only by
// sending actions.
type Store[S, A any] struct {
	reducer  Reducer[S, A]
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	onIssue  func(Issue)
	name     string
	scope    string

	mu          sync.Mutex
	state       S
	version     uint64
	queue       []queued[A]
	dispatching bool
	closed      bool
	inFlight    int
	idle        chan struct{}

	observers observers[S]
}

// New returns a store holding initial and driven by reducer.
func New[S, A any](initial S, reducer Reducer[S, A], opts ...Option) *Store[S, A] {
	o := storeOptions{name: "store"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = Cancellations
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentation)
	}
	if o.onIssue == nil {
		o.onIssue = LogIssues(o.logger)
	}
	return &Store[S, A]{
		reducer:  reducer,
		registry: o.registry,
		logger:   o.logger,
		tracer:   o.tracer,
		onIssue:  o.onIssue,
		name:     o.name,
		scope:    fmt.Sprintf("%s#%d/", url.PathEscape(o.name), storeSeq.Add(1)),
		state:    initial,
	}
}

// Send enqueues action. If no other goroutine is dispatching, Send processes
// the queue on the calling goroutine until it is empty; otherwise it returns
// immediately and the action is processed after those already queued.
// Actions sent to a closed store are dropped.
func (s *Store[S, A]) Send(action A) {
	s.enqueue(action, nil)
}

// State returns the last committed state.
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe calls fn with every committed state, synchronously on the
// dispatching goroutine. fn may call Send; the action is queued.
func (s *Store[S, A]) Subscribe(fn func(S)) (cancel func()) {
	return s.observers.add(func(_ uint64, v S) { fn(v) })
}

// Observe returns a channel that yields the current state and then every
// later state until ctx is done. Slow readers see coalesced values but
// always receive the latest one.
func (s *Store[S, A]) Observe(ctx context.Context) <-chan S {
	return s.observers.observe(ctx, func() (uint64, S) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.version, s.state
	})
}

// InFlight returns the number of effects currently running.
func (s *Store[S, A]) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Wait blocks until no effect is running or ctx is done.
func (s *Store[S, A]) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.inFlight == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CancelEffects cancels every effect started by the store. The store keeps
// accepting actions.
func (s *Store[S, A]) CancelEffects() {
	s.registry.cancelScope(s.scope)
}

// Close cancels every effect started by the store and drops queued and
// future actions. Close does not wait; use [Store.Wait] for that.
func (s *Store[S, A]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, q := range dropped {
		if q.origin != nil {
			q.origin.release()
		}
	}
	s.registry.cancelScope(s.scope)
}

func (s *Store[S, A]) enqueue(action A, origin *task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if origin != nil {
		origin.retain()
	}
	s.queue = append(s.queue, queued[A]{action: action, origin: origin})
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()
	s.drain()
}

// drain dispatches queued actions until the queue is empty.
func (s *Store[S, A]) drain() {
	ok := false
	defer func() {
		if !ok {
			s.mu.Lock()
			s.dispatching = false
			s.mu.Unlock()
		}
	}()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			ok = true
			return
		}
		next := s.queue[0]
		s.queue[0] = queued[A]{}
		s.queue = s.queue[1:]
		state := s.state
		s.mu.Unlock()

		if next.origin != nil {
			cancelled := next.origin.Cancelled()
			next.origin.release()
			if cancelled {
				s.logger.Debug("flux: dropped action of cancelled effect",
					"store", s.name, "scope", next.origin.scope, "action", fmt.Sprintf("%T", next.action))
				continue
			}
		}

		effect := s.reduce(&state, next.action)

		s.mu.Lock()
		s.state = state
		s.version++
		version := s.version
		s.mu.Unlock()

		s.observers.notify(version, state)
		s.schedule(effect, nil, s.scope)
	}
}

func (s *Store[S, A]) reduce(state *S, action A) Effect[A] {
	_, span := s.tracer.Start(context.Background(), "flux.reduce",
		trace.WithAttributes(
			attribute.String("flux.store", s.name),
			attribute.String("flux.action", fmt.Sprintf("%T", action)),
		))
	defer span.End()
	return s.reducer.Reduce(state, action)
}

// schedule interprets e. parent is the task e runs under, if any, and base
// the scope e was produced in. It returns the tasks it started.
func (s *Store[S, A]) schedule(e Effect[A], parent *task, base string) []*task {
	switch e.op {
	case opSend:
		s.enqueue(e.action, parent)
	case opCancel:
		s.registry.cancel(cancelKey{scope: scopeOf(base, e.scope), id: e.id})
	case opCancelScope:
		s.registry.cancelScope(scopeOf(base, e.scope))
	case opDismiss:
		s.raise(Issue{
			Kind:    IssueDismissUnscoped,
			Scope:   scopeOf(base, e.scope),
			Message: "dismiss requested outside any stack element or presentation",
		})
	case opIssue:
		issue := *e.issue
		if issue.Scope == "" {
			issue.Scope = scopeOf(base, e.scope)
		}
		s.raise(issue)
	case opRun:
		return []*task{s.start(e, parent, base, func(t *task) error {
			return e.run(t.ctx, s.sender(t))
		})}
	case opMerge:
		if !e.hasID {
			scope := scopeOf(base, e.scope)
			var ts []*task
			for _, m := range e.members {
				ts = append(ts, s.schedule(m, parent, scope)...)
			}
			return ts
		}
		return []*task{s.start(e, parent, base, func(t *task) error {
			var ts []*task
			for _, m := range e.members {
				ts = append(ts, s.schedule(m, t, t.scope)...)
			}
			wait(t.ctx, ts)
			return nil
		})}
	case opConcat:
		return []*task{s.start(e, parent, base, func(t *task) error {
			for _, m := range e.members {
				if t.Cancelled() || !wait(t.ctx, s.schedule(m, t, t.scope)) {
					return nil
				}
			}
			return nil
		})}
	}
	return nil
}

// start registers a task for e and runs body in a new goroutine once every
// task it replaces has exited.
func (s *Store[S, A]) start(e Effect[A], parent *task, base string, body func(*task) error) *task {
	t := newTask(parent, s.registry, scopeOf(base, e.scope))
	if e.hasID {
		t.key = cancelKey{scope: t.scope, id: e.id}
		t.keyed = true
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.Cancel()
		close(t.done)
		return t
	}
	if s.inFlight == 0 {
		s.idle = make(chan struct{})
	}
	s.inFlight++
	s.mu.Unlock()

	prior := s.registry.register(t, e.concurrent)
	go func() {
		defer s.finish(t)
		if !wait(t.ctx, prior) || t.Cancelled() {
			return
		}
		err := body(t)
		if err != nil && !errors.Is(err, context.Canceled) && !t.Cancelled() {
			s.raise(Issue{
				Kind:    IssueEffectFailed,
				Scope:   t.scope,
				Message: "effect returned an error",
				Err:     err,
			})
		}
	}()
	return t
}

func (s *Store[S, A]) finish(t *task) {
	t.stop()
	close(t.done)
	t.unref()
	s.mu.Lock()
	s.inFlight--
	if s.inFlight == 0 {
		close(s.idle)
	}
	s.mu.Unlock()
}

func (s *Store[S, A]) sender(t *task) Sender[A] {
	return Sender[A]{
		send: func(action A) {
			if !t.Cancelled() {
				s.enqueue(action, t)
			}
		},
		dismiss: func() {
			s.raise(Issue{
				Kind:    IssueDismissUnscoped,
				Scope:   t.scope,
				Message: "dismiss requested outside any stack element or presentation",
			})
		},
	}
}

func (s *Store[S, A]) raise(issue Issue) {
	s.onIssue(issue)
}
