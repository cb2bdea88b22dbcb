// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package file persists shared cells as one file per key.
//
// Writes are atomic (temporary file plus rename) and serialized across
// processes by an advisory lock on "<path>.lock". Changes made by other
// processes are picked up through filesystem notifications.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"code.hybscloud.com/flux"
	"code.hybscloud.com/flux/persist"
)

// Option configures a [Key].
type Option func(*options)

type options struct {
	logger        *slog.Logger
	lockTimeout   time.Duration
	retryInterval time.Duration
	perm          fs.FileMode
}

// WithLogger sets the logger for watcher failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLockTimeout bounds how long a write waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// WithPerm sets the permission bits of written files.
func WithPerm(perm fs.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// Key is a [flux.Persistence] storing one value in one file.
type Key[T any] struct {
	path  string
	codec persist.Codec[T]
	lock  *flock.Flock
	opts  options

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	written  bool
}

// New returns the key stored at path.
func New[T any](path string, codec persist.Codec[T], opts ...Option) *Key[T] {
	o := options{
		lockTimeout:   3 * time.Second,
		retryInterval: 50 * time.Millisecond,
		perm:          0o644,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	return &Key[T]{
		path:  path,
		codec: codec,
		lock:  flock.New(path + ".lock"),
		opts:  o,
	}
}

// Path returns the file path.
func (k *Key[T]) Path() string {
	return k.path
}

// Key implements [flux.Persistence].
func (k *Key[T]) Key() string {
	return "file:" + k.path
}

// Load implements [flux.Persistence].
func (k *Key[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	data, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("read %s: %w", k.path, err)
	}
	v, err := k.codec.Unmarshal(data)
	if err != nil {
		return zero, false, fmt.Errorf("load %s: %w", k.path, err)
	}
	return v, true, nil
}

// Save implements [flux.Persistence].
func (k *Key[T]) Save(ctx context.Context, v T) error {
	data, err := k.codec.Marshal(v)
	if err != nil {
		return err
	}
	return k.withLock(ctx, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(k.path), filepath.Base(k.path)+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		defer func() { _ = os.Remove(tmp.Name()) }()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := tmp.Chmod(k.opts.perm); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("chmod temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("close temp file: %w", err)
		}
		k.remember(data)
		if err := os.Rename(tmp.Name(), k.path); err != nil {
			return fmt.Errorf("rename file: %w", err)
		}
		return nil
	})
}

// Delete removes the file. Watching cells reset to their initial value.
func (k *Key[T]) Delete(ctx context.Context) error {
	return k.withLock(ctx, func() error {
		if err := os.Remove(k.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", k.path, err)
		}
		return nil
	})
}

// withLock runs fn holding the key's lock file, creating the parent
// directory first so the lock file can be opened.
func (k *Key[T]) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, k.opts.lockTimeout)
	defer cancel()
	locked, err := k.lock.TryLockContext(ctx, k.opts.retryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire file lock")
	}
	defer func() { _ = k.lock.Unlock() }()
	return fn()
}

func (k *Key[T]) remember(data []byte) {
	k.mu.Lock()
	k.lastHash = sha256.Sum256(data)
	k.written = true
	k.mu.Unlock()
}

// echo reports whether data is what this key last wrote.
func (k *Key[T]) echo(data []byte) bool {
	sum := sha256.Sum256(data)
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written && bytes.Equal(sum[:], k.lastHash[:])
}

// Updates implements [flux.Persistence]. It watches the parent directory so
// that atomic replacements and deletions are seen.
func (k *Key[T]) Updates(ctx context.Context) <-chan flux.Update[T] {
	ch := make(chan flux.Update[T])
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(k.path), 0o755); err == nil {
			err = watcher.Add(filepath.Dir(k.path))
		}
	}
	if err != nil {
		k.opts.logger.Warn("file: watch disabled", "path", k.path, "error", err)
		if watcher != nil {
			_ = watcher.Close()
		}
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				k.opts.logger.Warn("file: watch error", "path", k.path, "error", err)
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != k.path || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				u, ok := k.read()
				if !ok {
					continue
				}
				select {
				case ch <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// read turns the current file content into an update, skipping echoes of
// our own writes and unreadable content.
func (k *Key[T]) read() (flux.Update[T], bool) {
	data, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		k.mu.Lock()
		k.written = false
		k.mu.Unlock()
		return flux.Update[T]{}, true
	}
	if err != nil {
		k.opts.logger.Warn("file: read failed", "path", k.path, "error", err)
		return flux.Update[T]{}, false
	}
	if k.echo(data) {
		return flux.Update[T]{}, false
	}
	v, err := k.codec.Unmarshal(data)
	if err != nil {
		k.opts.logger.Warn("file: decode failed", "path", k.path, "error", err)
		return flux.Update[T]{}, false
	}
	return flux.Update[T]{Value: v, Present: true}, true
}
