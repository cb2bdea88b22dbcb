// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

// CasePath focuses on one case of a sum type.
//
// Sum types are ordinary Go interfaces implemented by one struct per case.
// Extract reports whether a root value is in the case and returns its
// payload; Embed wraps a payload back into the root type. Name labels the
// case in cancellation scopes and must be unique among siblings.
type CasePath[Root, Value any] struct {
	Name    string
	Extract func(Root) (Value, bool)
	Embed   func(Value) Root
}

// Case returns a case path whose payload is the case type itself.
//
// Example:
//
//	type Action interface{ isAction() }
//	type Tick struct{}
//	func (Tick) isAction() {}
//
//	tick := flux.Case[Action, Tick]("tick")
func Case[Root, Value any](name string) CasePath[Root, Value] {
	return CasePath[Root, Value]{
		Name: name,
		Extract: func(r Root) (Value, bool) {
			v, ok := any(r).(Value)
			return v, ok
		},
		Embed: func(v Value) Root {
			return any(v).(Root)
		},
	}
}

// NewCase returns a case path from explicit accessors.
func NewCase[Root, Value any](name string, extract func(Root) (Value, bool), embed func(Value) Root) CasePath[Root, Value] {
	return CasePath[Root, Value]{Name: name, Extract: extract, Embed: embed}
}
