// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"bytes"
	"cmp"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID is the stable identity of a dynamically created state element.
//
// IDs are comparable and totally ordered. Live IDs are UUIDv7 values;
// deterministic IDs are small ordinals issued by an incrementing
// [IDGenerator]. The zero ID identifies nothing.
type ID struct {
	n    uint64 // ordinal+1 for deterministic IDs
	uuid uuid.UUID
}

// IntID returns the deterministic ID with ordinal n.
// It matches the n-th ID issued by an incrementing generator after a reset.
func IntID(n uint64) ID {
	return ID{n: n + 1}
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id.n == 0 && id.uuid == uuid.Nil
}

// Deterministic reports whether id was issued in deterministic mode.
func (id ID) Deterministic() bool {
	return id.n != 0
}

// Equal reports whether id and other are the same identity.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Compare orders deterministic IDs before live IDs, deterministic IDs by
// ordinal, and live IDs by their time-ordered bytes.
func (id ID) Compare(other ID) int {
	switch {
	case id.n != 0 && other.n != 0:
		return cmp.Compare(id.n, other.n)
	case id.n != 0:
		return -1
	case other.n != 0:
		return 1
	}
	return bytes.Compare(id.uuid[:], other.uuid[:])
}

// String returns "#n" for deterministic IDs and the UUID text otherwise.
func (id ID) String() string {
	if id.n != 0 {
		return "#" + strconv.FormatUint(id.n-1, 10)
	}
	if id.uuid == uuid.Nil {
		return "#nil"
	}
	return id.uuid.String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "#nil" || s == "" {
		*id = ID{}
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "#"); ok {
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return errors.Join(ErrInvalidID, err)
		}
		*id = IntID(n)
		return nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return errors.Join(ErrInvalidID, err)
	}
	*id = ID{uuid: u}
	return nil
}

// IDGenerator issues stable identities.
//
// A live generator issues UUIDv7 values, monotonic within the process and
// collision-free across restarts. An incrementing generator issues 0, 1, 2…
// and is meant for tests, where expected identities must be predictable.
// Generators are safe for concurrent use.
type IDGenerator struct {
	deterministic bool
	next          atomic.Uint64
}

// liveIDs backs stacks created without an explicit generator.
var liveIDs = NewIDGenerator()

// NewIDGenerator returns a live generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewIncrementingIDGenerator returns a deterministic generator starting at 0.
func NewIncrementingIDGenerator() *IDGenerator {
	return &IDGenerator{deterministic: true}
}

// Deterministic reports whether g issues ordinals.
func (g *IDGenerator) Deterministic() bool {
	return g.deterministic
}

// Next issues a fresh identity.
func (g *IDGenerator) Next() ID {
	if !g.deterministic {
		return ID{uuid: uuid.Must(uuid.NewV7())}
	}
	return ID{n: g.next.Add(1)}
}

// Peek returns the identity the next call to Next would issue.
// Live generators cannot predict and return the zero ID.
func (g *IDGenerator) Peek() ID {
	if !g.deterministic {
		return ID{}
	}
	return ID{n: g.next.Load() + 1}
}

// Reserve advances a deterministic generator past id, so that an element
// pushed with an explicit identity is never issued again.
func (g *IDGenerator) Reserve(id ID) {
	if !g.deterministic || id.n == 0 {
		return
	}
	for {
		cur := g.next.Load()
		if cur >= id.n || g.next.CompareAndSwap(cur, id.n) {
			return
		}
	}
}

// Reset restarts a deterministic generator at 0.
func (g *IDGenerator) Reset() {
	g.next.Store(0)
}

// IDCheckpoint is a saved position of a deterministic generator.
type IDCheckpoint struct {
	next uint64
}

// Checkpoint saves the generator position.
func (g *IDGenerator) Checkpoint() IDCheckpoint {
	return IDCheckpoint{next: g.next.Load()}
}

// Restore moves the generator back (or forward) to a saved position.
func (g *IDGenerator) Restore(c IDCheckpoint) {
	g.next.Store(c.next)
}
