// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import "errors"

var (
	// ErrClosed is returned by operations on a closed store or released cell.
	ErrClosed = errors.New("flux: closed")

	// ErrTypeMismatch is returned when a persistence key is already bound
	// to a cell of a different value type.
	ErrTypeMismatch = errors.New("flux: persistence key bound to a different type")

	// ErrInvalidID is returned when decoding a malformed identity.
	ErrInvalidID = errors.New("flux: invalid id")
)
