// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/flux"
)

// fluxctl runs the command line with args against an isolated home.
func fluxctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
}

func TestSetGetListRemove(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			common := []string{"--backend", backend, "--dir", dir, "--db", filepath.Join(dir, "cells.db")}
			with := func(args ...string) []string { return append(append([]string(nil), args...), common...) }

			_, err := fluxctl(t, with("set", "settings", `{"theme":"dark"}`)...)
			require.NoError(t, err)
			_, err = fluxctl(t, with("set", "greeting", "hello world")...)
			require.NoError(t, err)

			out, err := fluxctl(t, with("get", "settings", "greeting")...)
			require.NoError(t, err)
			require.Equal(t, "settings\t{\"theme\":\"dark\"}\ngreeting\t\"hello world\"\n", out)

			out, err = fluxctl(t, with("list")...)
			require.NoError(t, err)
			require.Equal(t, "greeting\nsettings\n", out)

			_, err = fluxctl(t, with("rm", "greeting")...)
			require.NoError(t, err)
			_, err = fluxctl(t, with("get", "greeting")...)
			require.ErrorContains(t, err, "not found")
		})
	}
}

func TestCodecFlag(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	_, err := fluxctl(t, "set", "n", "3", "--dir", dir, "--codec", "yaml")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "n.yaml"))
	require.NoError(t, err)
	require.Equal(t, "3\n", string(data))
}

func TestEnvironmentSelectsBackend(t *testing.T) {
	isolate(t)
	t.Setenv("FLUXCTL_BACKEND", "carrier-pigeon")
	_, err := fluxctl(t, "list")
	require.ErrorContains(t, err, "unknown backend")
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "fluxctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("dir: "+dir+"\ncodec: msgpack\n"), 0o644))

	_, err := fluxctl(t, "set", "k", "1", "--config", cfg)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "k.msgpack"))
	require.NoError(t, err)

	_, err = fluxctl(t, "list", "--config", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := fluxctl(t, "version")
	require.NoError(t, err)
	require.Equal(t, "fluxctl dev\n", out)
}

func TestParseValue(t *testing.T) {
	require.Equal(t, float64(3), parseValue("3"))
	require.Equal(t, map[string]any{"a": true}, parseValue(`{"a":true}`))
	require.Equal(t, "plain text", parseValue("plain text"))
}

func TestWatchReducerRecordsChanges(t *testing.T) {
	r := watchReducer(nil)
	var s watchState

	r.Reduce(&s, change{Key: "a", Value: 1.0})
	r.Reduce(&s, change{Key: "a", Value: 1.0})
	r.Reduce(&s, change{Key: "b", Value: map[string]any{"x": "y"}})
	r.Reduce(&s, change{Key: "b", Value: map[string]any{"x": "y"}})

	require.Equal(t, 2, s.Changes)
	require.Equal(t, "b", s.Last.Key)
	require.Equal(t, map[string]any{"a": 1.0, "b": map[string]any{"x": "y"}}, s.Values)
}

func TestWatchStoreFollowsCells(t *testing.T) {
	a := flux.NewShared[any](nil)
	b := flux.NewShared[any](nil)
	store := flux.New(watchState{}, watchReducer([]named{{"a", a}, {"b", b}}),
		flux.WithRegistry(flux.NewRegistry()))
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	states := store.Observe(ctx)
	store.Send(watchStart{})

	require.NoError(t, a.Set("first"))
	require.NoError(t, b.Set("second"))
	for s := range states {
		if s.Values["a"] == "first" && s.Values["b"] == "second" {
			return
		}
	}
	t.Fatal("store stopped before both changes arrived")
}
