// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"code.hybscloud.com/flux"
	"code.hybscloud.com/flux/persist"
	"code.hybscloud.com/flux/persist/file"
	"code.hybscloud.com/flux/persist/sqlite"
)

// backend opens stored cells by name.
type backend interface {
	key(name string) flux.Persistence[any]
	remove(ctx context.Context, name string) error
	list(ctx context.Context) ([]string, error)
	Close() error
}

func openBackend(c config, logger *slog.Logger) (backend, error) {
	codec, err := persist.CodecByName[any](c.Codec)
	if err != nil {
		return nil, err
	}
	switch c.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		db, err := sqlite.Open(c.DB, sqlite.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &sqliteBackend{db: db, codec: codec}, nil
	default:
		return &fileBackend{dir: c.Dir, codec: codec, logger: logger}, nil
	}
}

type fileBackend struct {
	dir    string
	codec  persist.Codec[any]
	logger *slog.Logger
}

func (b *fileBackend) path(name string) string {
	return filepath.Join(b.dir, name+"."+b.codec.Name())
}

func (b *fileBackend) key(name string) flux.Persistence[any] {
	return file.New(b.path(name), b.codec, file.WithLogger(b.logger))
}

func (b *fileBackend) remove(ctx context.Context, name string) error {
	return file.New(b.path(name), b.codec).Delete(ctx)
}

func (b *fileBackend) list(context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.dir, err)
	}
	suffix := "." + b.codec.Name()
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), suffix))
	}
	slices.Sort(names)
	return names, nil
}

func (b *fileBackend) Close() error { return nil }

type sqliteBackend struct {
	db    *sqlite.DB
	codec persist.Codec[any]
}

func (b *sqliteBackend) key(name string) flux.Persistence[any] {
	return sqlite.NewKey(b.db, name, b.codec)
}

func (b *sqliteBackend) remove(ctx context.Context, name string) error {
	return b.db.Delete(ctx, name)
}

func (b *sqliteBackend) list(ctx context.Context) ([]string, error) {
	return b.db.Keys(ctx)
}

func (b *sqliteBackend) Close() error { return b.db.Close() }
