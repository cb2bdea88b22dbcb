// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package persist provides persistence backends and codecs for
// [flux.Shared] cells.
//
// Backends implement [flux.Persistence]. This package holds the in-memory
// backend and the value codecs; file and SQLite backends live in the
// file and sqlite subpackages.
package persist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Codec converts values to and from their stored form.
type Codec[T any] interface {
	Name() string
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

type codec[T any] struct {
	name      string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func (c codec[T]) Name() string { return c.name }

func (c codec[T]) Marshal(v T) ([]byte, error) {
	data, err := c.marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.name, err)
	}
	return data, nil
}

func (c codec[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := c.unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s decode: %w", c.name, err)
	}
	return v, nil
}

// JSON encodes values with encoding/json.
func JSON[T any]() Codec[T] {
	return codec[T]{name: "json", marshal: json.Marshal, unmarshal: json.Unmarshal}
}

// YAML encodes values with gopkg.in/yaml.v3.
func YAML[T any]() Codec[T] {
	return codec[T]{name: "yaml", marshal: yaml.Marshal, unmarshal: yaml.Unmarshal}
}

// MsgPack encodes values with MessagePack.
func MsgPack[T any]() Codec[T] {
	return codec[T]{name: "msgpack", marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}

// CodecByName returns the codec called name: json, yaml or msgpack.
func CodecByName[T any](name string) (Codec[T], error) {
	switch strings.ToLower(name) {
	case "json", "":
		return JSON[T](), nil
	case "yaml", "yml":
		return YAML[T](), nil
	case "msgpack", "mpk":
		return MsgPack[T](), nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
