// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fluxtest_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"code.hybscloud.com/flux"
	"code.hybscloud.com/flux/fluxtest"
)

// timer is a child feature with a delayed tick.

type timer struct {
	Ticks int
}

type timerAction interface{ isTimerAction() }

type (
	tick  struct{}
	start struct{}
	stop  struct{}
)

func (tick) isTimerAction()  {}
func (start) isTimerAction() {}
func (stop) isTimerAction()  {}

type tickID struct{}

func timerReducer(clock flux.Clock) flux.Reducer[timer, timerAction] {
	return flux.ReduceFunc[timer, timerAction](func(s *timer, a timerAction) flux.Effect[timerAction] {
		switch a.(type) {
		case tick:
			s.Ticks++
		case start:
			return flux.Run(func(ctx context.Context, send flux.Sender[timerAction]) error {
				if err := clock.Sleep(ctx, time.Second); err != nil {
					return err
				}
				send.Send(tick{})
				return nil
			}).Cancellable(tickID{})
		case stop:
			return flux.Cancel[timerAction](tickID{})
		}
		return flux.None[timerAction]()
	})
}

// board holds a stack of timers.

type board struct {
	Timers flux.Stack[timer]
}

type boardAction interface{ isBoardAction() }

type (
	add    struct{}
	remove struct{ ID flux.ID }
	timers struct {
		flux.StackAction[timer, timerAction]
	}
)

func (add) isBoardAction()    {}
func (remove) isBoardAction() {}
func (timers) isBoardAction() {}

var timersCase = flux.NewCase[boardAction, flux.StackAction[timer, timerAction]]("timers",
	func(a boardAction) (flux.StackAction[timer, timerAction], bool) {
		w, ok := a.(timers)
		return w.StackAction, ok
	},
	func(sa flux.StackAction[timer, timerAction]) boardAction { return timers{sa} },
)

func at(id flux.ID, a timerAction) boardAction {
	return timers{flux.StackElement[timer](id, a)}
}

func pop(id flux.ID) boardAction {
	return timers{flux.StackPopFrom[timer, timerAction](id)}
}

func boardReducer(env flux.Env) flux.Reducer[board, boardAction] {
	body := flux.ReduceFunc[board, boardAction](func(s *board, a boardAction) flux.Effect[boardAction] {
		switch a := a.(type) {
		case add:
			s.Timers.Append(timer{})
		case remove:
			s.Timers.Remove(a.ID)
		}
		return flux.None[boardAction]()
	})
	return flux.ForEach(body, func(s *board) *flux.Stack[timer] { return &s.Timers }, timersCase, timerReducer(env.Clock))
}

func newBoard(t *testing.T, ids *flux.IDGenerator, opts ...fluxtest.Option) *fluxtest.TestStore[board, boardAction] {
	env := flux.TestEnv().With(flux.Env{IDs: ids})
	opts = append(opts, fluxtest.WithIDs(env.IDs), fluxtest.WithLogger(env.Logger))
	return fluxtest.New(t, board{Timers: flux.NewStack[timer](env.IDs)}, boardReducer(env), opts...)
}

func appendTimer(s *board) {
	s.Timers.Append(timer{})
}

func TestChildEffectDelivers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Advance(time.Second)
		ts.Receive(at(flux.IntID(0), tick{}), func(s *board) {
			s.Timers.Update(flux.IntID(0), func(c *timer) { c.Ticks = 1 })
		})
		ts.Finish()
	})
}

func TestRemovedChildEffectIsCancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Send(at(flux.IntID(1), start{}))
		ts.Send(remove{ID: flux.IntID(0)}, func(s *board) { s.Timers.Remove(flux.IntID(0)) })
		ts.Advance(time.Second)
		ts.Receive(at(flux.IntID(1), tick{}), func(s *board) {
			s.Timers.Update(flux.IntID(1), func(c *timer) { c.Ticks = 1 })
		})
		ts.Finish()
	})
}

func TestRemovalSparesSiblingWithLongerID(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		for range 11 {
			ts.Send(add{}, appendTimer)
		}
		ts.Send(at(flux.IntID(1), start{}))
		ts.Send(at(flux.IntID(10), start{}))
		ts.Send(remove{ID: flux.IntID(1)}, func(s *board) { s.Timers.Remove(flux.IntID(1)) })
		ts.Advance(time.Second)
		ts.Receive(at(flux.IntID(10), tick{}), func(s *board) {
			s.Timers.Update(flux.IntID(10), func(c *timer) { c.Ticks = 1 })
		})
		ts.Finish()
	})
}

func TestPoppedChildEffectIsCancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Send(pop(flux.IntID(0)), func(s *board) { s.Timers.PopFrom(flux.IntID(0)) })
		ts.Advance(time.Second)
		ts.Finish()
	})
}

func TestCancelInsideChild(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Send(at(flux.IntID(1), start{}))
		ts.Send(at(flux.IntID(1), stop{}))
		ts.Advance(time.Second)
		ts.Receive(at(flux.IntID(0), tick{}), func(s *board) {
			s.Timers.Update(flux.IntID(0), func(c *timer) { c.Ticks = 1 })
		})
		ts.Finish()
	})
}

func TestIDsResetBetweenTests(t *testing.T) {
	ids := flux.NewIncrementingIDGenerator()
	for run := range 2 {
		t.Run(fmt.Sprint(run), func(t *testing.T) {
			ts := newBoard(t, ids)
			for range 3 {
				ts.Send(add{}, appendTimer)
			}
			want := []flux.ID{flux.IntID(0), flux.IntID(1), flux.IntID(2)}
			got := ts.State().Timers.IDs()
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("got %v, want %v", got, want)
				}
			}
			ts.Finish()
		})
	}
}

func TestAllowIssues(t *testing.T) {
	ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.AllowIssues())
	ts.Send(at(flux.IntID(7), tick{}))
	got := ts.Issues()
	if len(got) != 1 || got[0].Kind != flux.IssueStaleElement {
		t.Fatalf("got %v, want one stale element issue", got)
	}
	if len(ts.Issues()) != 0 {
		t.Fatal("Issues did not clear")
	}
	ts.Finish()
}

func TestReceiveMatching(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Advance(time.Second)
		ts.ReceiveMatching(func(a boardAction) bool {
			w, ok := a.(timers)
			if !ok {
				return false
			}
			_, ta, ok := w.Element()
			_, isTick := ta.(tick)
			return ok && isTick
		}, func(s *board) {
			s.Timers.Update(flux.IntID(0), func(c *timer) { c.Ticks++ })
		})
		ts.Finish()
	})
}

func TestSkipInFlightEffects(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ts := newBoard(t, flux.NewIncrementingIDGenerator(), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.SkipInFlightEffects()
		ts.Finish()
	})
}

func TestSkipReceivedActions(t *testing.T) {
	ts := fluxtest.New(t, 0, pingPong())
	ts.Send("ping", func(s *int) { *s = 1 })
	ts.SkipReceivedActions()
	ts.Finish()
}

// recorder captures failures instead of failing the enclosing test.
type recorder struct {
	testing.TB
	mu     sync.Mutex
	errors []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.mu.Lock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) Fatal(args ...any) {
	r.Errorf("%s", fmt.Sprint(args...))
}

func (r *recorder) Logf(string, ...any) {}

func (r *recorder) failures() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.errors, "\n")
}

// pingPong answers "ping" with "pong" and counts both.
func pingPong() flux.Reducer[int, string] {
	return flux.ReduceFunc[int, string](func(s *int, a string) flux.Effect[string] {
		*s++
		if a == "ping" {
			return flux.Send("pong")
		}
		return flux.None[string]()
	})
}

func TestStateMismatchFails(t *testing.T) {
	r := &recorder{TB: t}
	ts := fluxtest.New[int, string](r, 0, pingPong())
	ts.Send("pong", func(s *int) { *s = 2 })
	ts.Finish()
	if !strings.Contains(r.failures(), "state mismatch") {
		t.Fatalf("got %q, want a state mismatch", r.failures())
	}
}

func TestUnhandledReceivedActionFails(t *testing.T) {
	r := &recorder{TB: t}
	ts := fluxtest.New[int, string](r, 0, pingPong())
	ts.Send("ping", func(s *int) { *s = 1 })
	ts.Finish()
	if !strings.Contains(r.failures(), "must handle 1 received action") {
		t.Fatalf("got %q, want an unhandled action failure", r.failures())
	}
}

func TestUnexpectedIssueFails(t *testing.T) {
	r := &recorder{TB: t}
	ts := newBoardTB(r)
	ts.Send(at(flux.IntID(3), tick{}))
	ts.Finish()
	if !strings.Contains(r.failures(), "unexpected issue") {
		t.Fatalf("got %q, want an unexpected issue failure", r.failures())
	}
}

func TestRunningEffectAtFinishFails(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := &recorder{TB: t}
		ids := flux.NewIncrementingIDGenerator()
		ts := fluxtest.New(r, board{Timers: flux.NewStack[timer](ids)}, boardReducer(flux.TestEnv()),
			fluxtest.WithIDs(ids), fluxtest.InBubble())
		ts.Send(add{}, appendTimer)
		ts.Send(at(flux.IntID(0), start{}))
		ts.Finish()
		if !strings.Contains(r.failures(), "still running") {
			t.Fatalf("got %q, want a running effect failure", r.failures())
		}
	})
}

func TestAssertSeesRewoundIDs(t *testing.T) {
	ids := flux.NewIncrementingIDGenerator()
	ts := newBoard(t, ids)
	ts.Send(add{}, func(s *board) {
		if id := s.Timers.Append(timer{}); id != flux.IntID(0) {
			t.Errorf("assert drew %v, want %v", id, flux.IntID(0))
		}
	})
	if got := ids.Peek(); got != flux.IntID(1) {
		t.Fatalf("generator at %v after assert, want %v", got, flux.IntID(1))
	}
	ts.Finish()
}

func newBoardTB(tb testing.TB) *fluxtest.TestStore[board, boardAction] {
	ids := flux.NewIncrementingIDGenerator()
	return fluxtest.New(tb, board{Timers: flux.NewStack[timer](ids)}, boardReducer(flux.TestEnv()), fluxtest.WithIDs(ids))
}
