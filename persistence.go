// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import "context"

// Persistence binds a [Shared] cell to an external store.
//
// Implementations live in the persist packages; any type with these
// methods works.
type Persistence[T any] interface {
	// Key identifies the stored value. Cells bound to equal keys through
	// the same [References] are the same cell.
	Key() string
	// Load returns the stored value, or ok=false when nothing is stored.
	Load(ctx context.Context) (value T, ok bool, err error)
	// Save stores value.
	Save(ctx context.Context, value T) error
	// Updates streams changes made by other writers until ctx is done,
	// then closes the channel. Echoes of Save from this process should be
	// suppressed where the backend can tell them apart.
	Updates(ctx context.Context) <-chan Update[T]
}

// Update is one change observed on a persistence backend.
// Present is false when the stored value was deleted.
type Update[T any] struct {
	Value   T
	Present bool
}
