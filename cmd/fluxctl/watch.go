// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"

	"code.hybscloud.com/flux"
)

// watchState is the state of the watch store: the latest value per key and
// the change that produced it.
type watchState struct {
	Values  map[string]any
	Changes int
	Last    change
}

type watchAction interface{ watchAction() }

type watchStart struct{}

type change struct {
	Key   string
	Value any
}

func (watchStart) watchAction() {}
func (change) watchAction()     {}

type watchID struct{}

// named is a cell and the name it was opened under.
type named struct {
	name string
	cell flux.Shared[any]
}

// watchReducer fans the cells into one store. watchStart starts one
// observer per cell; every change that differs from the known value is
// recorded.
func watchReducer(cells []named) flux.Reducer[watchState, watchAction] {
	return flux.ReduceFunc[watchState, watchAction](func(s *watchState, a watchAction) flux.Effect[watchAction] {
		switch a := a.(type) {
		case watchStart:
			effects := make([]flux.Effect[watchAction], 0, len(cells))
			for _, n := range cells {
				effects = append(effects, flux.Run(func(ctx context.Context, send flux.Sender[watchAction]) error {
					for v := range n.cell.Observe(ctx) {
						send.Send(change{Key: n.name, Value: v})
					}
					return nil
				}))
			}
			return flux.Merge(effects...).Cancellable(watchID{})
		case change:
			if prev, ok := s.Values[a.Key]; ok && cmp.Equal(prev, a.Value) {
				return flux.None[watchAction]()
			}
			values := maps.Clone(s.Values)
			if values == nil {
				values = make(map[string]any)
			}
			values[a.Key] = a.Value
			s.Values = values
			s.Changes++
			s.Last = a
		}
		return flux.None[watchAction]()
	})
}

func (a *app) watch(ctx context.Context, names []string) error {
	refs := flux.NewReferences()
	cells := make([]named, 0, len(names))
	defer func() {
		for _, n := range cells {
			n.cell.Release()
		}
	}()
	for _, name := range names {
		cell, err := flux.Persistent[any](ctx, refs, a.backend.key(name), nil, a.cellOptions()...)
		if err != nil {
			return err
		}
		cells = append(cells, named{name: name, cell: cell})
	}

	store := flux.New(watchState{}, watchReducer(cells),
		append(a.flux.Options(a.logger), flux.WithName("fluxctl-watch"))...)
	var (
		mu       sync.Mutex
		printed  int
		printErr error
	)
	cancel := store.Subscribe(func(s watchState) {
		mu.Lock()
		defer mu.Unlock()
		if s.Changes == printed || printErr != nil {
			return
		}
		printed = s.Changes
		printErr = a.print(s.Last.Key, s.Last.Value)
	})
	defer cancel()

	store.Send(watchStart{})
	<-ctx.Done()

	store.Close()
	wctx, stop := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer stop()
	if err := store.Wait(wctx); err != nil {
		a.logger.Warn("fluxctl: effects still running at exit", "error", err)
	}
	mu.Lock()
	defer mu.Unlock()
	return printErr
}
