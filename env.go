// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import "log/slog"

// Env carries the dependencies features are constructed with.
//
// Features take an Env (or a struct embedding one) as a constructor
// argument instead of reaching for globals, so tests substitute a
// deterministic ID generator or a fake clock by passing a different value.
type Env struct {
	Clock  Clock
	IDs    *IDGenerator
	Logger *slog.Logger
}

// LiveEnv returns the production environment: the system clock, live IDs
// and the default logger.
func LiveEnv() Env {
	return Env{
		Clock:  SystemClock{},
		IDs:    NewIDGenerator(),
		Logger: slog.Default(),
	}
}

// TestEnv returns an environment with deterministic IDs, the system clock
// (virtual inside a synctest bubble) and a logger that discards output.
func TestEnv() Env {
	return Env{
		Clock:  SystemClock{},
		IDs:    NewIncrementingIDGenerator(),
		Logger: slog.New(slog.DiscardHandler),
	}
}

// With returns a copy of e with non-nil fields of other applied.
func (e Env) With(other Env) Env {
	if other.Clock != nil {
		e.Clock = other.Clock
	}
	if other.IDs != nil {
		e.IDs = other.IDs
	}
	if other.Logger != nil {
		e.Logger = other.Logger
	}
	return e
}
