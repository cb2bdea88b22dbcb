// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"code.hybscloud.com/flux"
)

// counter is a leaf feature: a count with a delayed increment.

type counter struct {
	Count int
}

type counterAction interface{ isCounterAction() }

type (
	increment        struct{}
	delayedIncrement struct{}
	cancelDelay      struct{}
	closeSelf        struct{}
)

func (increment) isCounterAction()        {}
func (delayedIncrement) isCounterAction() {}
func (cancelDelay) isCounterAction()      {}
func (closeSelf) isCounterAction()        {}

type delayID struct{}

func counterReducer(clock flux.Clock) flux.Reducer[counter, counterAction] {
	return flux.ReduceFunc[counter, counterAction](func(s *counter, a counterAction) flux.Effect[counterAction] {
		switch a.(type) {
		case increment:
			s.Count++
		case delayedIncrement:
			return flux.Run(func(ctx context.Context, send flux.Sender[counterAction]) error {
				if err := clock.Sleep(ctx, time.Second); err != nil {
					return err
				}
				send.Send(increment{})
				return nil
			}).Cancellable(delayID{})
		case cancelDelay:
			return flux.Cancel[counterAction](delayID{})
		case closeSelf:
			return flux.Dismiss[counterAction]()
		}
		return flux.None[counterAction]()
	})
}

// list is a stack of counters.

type list struct {
	Items flux.Stack[counter]
}

type listAction interface{ isListAction() }

type (
	addItem    struct{}
	removeItem struct{ ID flux.ID }
	clearItems struct{}
	items      struct {
		flux.StackAction[counter, counterAction]
	}
)

func (addItem) isListAction()    {}
func (removeItem) isListAction() {}
func (clearItems) isListAction() {}
func (items) isListAction()      {}

var itemsCase = flux.NewCase[listAction, flux.StackAction[counter, counterAction]]("items",
	func(a listAction) (flux.StackAction[counter, counterAction], bool) {
		w, ok := a.(items)
		return w.StackAction, ok
	},
	func(sa flux.StackAction[counter, counterAction]) listAction { return items{sa} },
)

func element(id flux.ID, a counterAction) listAction {
	return items{flux.StackElement[counter](id, a)}
}

func popFrom(id flux.ID) listAction {
	return items{flux.StackPopFrom[counter, counterAction](id)}
}

func listReducer(clock flux.Clock) flux.Reducer[list, listAction] {
	body := flux.ReduceFunc[list, listAction](func(s *list, a listAction) flux.Effect[listAction] {
		switch a := a.(type) {
		case addItem:
			s.Items.Append(counter{})
		case removeItem:
			s.Items.Remove(a.ID)
		case clearItems:
			s.Items.RemoveAll()
		}
		return flux.None[listAction]()
	})
	return flux.ForEach(body, func(s *list) *flux.Stack[counter] { return &s.Items }, itemsCase, counterReducer(clock))
}

// sheet presents a list.

type sheet struct {
	Detail flux.Presentation[list]
}

type sheetAction interface{ isSheetAction() }

type (
	openDetail struct{}
	detail     struct {
		flux.PresentationAction[listAction]
	}
)

func (openDetail) isSheetAction() {}
func (detail) isSheetAction()     {}

var detailCase = flux.NewCase[sheetAction, flux.PresentationAction[listAction]]("detail",
	func(a sheetAction) (flux.PresentationAction[listAction], bool) {
		w, ok := a.(detail)
		return w.PresentationAction, ok
	},
	func(pa flux.PresentationAction[listAction]) sheetAction { return detail{pa} },
)

func inDetail(a listAction) sheetAction {
	return detail{flux.Presented(a)}
}

func sheetReducer(clock flux.Clock) flux.Reducer[sheet, sheetAction] {
	body := flux.ReduceFunc[sheet, sheetAction](func(s *sheet, a sheetAction) flux.Effect[sheetAction] {
		if _, ok := a.(openDetail); ok {
			s.Detail.Present(list{Items: flux.NewStack[counter](nil)})
		}
		return flux.None[sheetAction]()
	})
	return flux.IfLet(body, func(s *sheet) *flux.Presentation[list] { return &s.Detail }, detailCase, listReducer(clock))
}

// issues collects issues raised on any goroutine.
type issues struct {
	mu   sync.Mutex
	list []flux.Issue
}

func (c *issues) add(i flux.Issue) {
	c.mu.Lock()
	c.list = append(c.list, i)
	c.mu.Unlock()
}

func (c *issues) kinds() []flux.IssueKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]flux.IssueKind, len(c.list))
	for i, issue := range c.list {
		out[i] = issue.Kind
	}
	return out
}

// testOptions isolates a store from the process-wide registry and logs.
func testOptions(c *issues) []flux.Option {
	return []flux.Option{
		flux.WithRegistry(flux.NewRegistry()),
		flux.WithLogger(slog.New(slog.DiscardHandler)),
		flux.WithIssueHandler(c.add),
	}
}
