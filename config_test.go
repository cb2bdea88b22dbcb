// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"code.hybscloud.com/flux"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := flux.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" || cfg.IssuePolicy != flux.IssuesLog || !cfg.Trace {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FLUX_LOG_LEVEL", "DEBUG")
	t.Setenv("FLUX_LOG_FORMAT", "json")
	t.Setenv("FLUX_ISSUE_POLICY", "Strict")
	t.Setenv("FLUX_TRACE", "false")
	cfg, err := flux.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" || cfg.IssuePolicy != flux.IssuesStrict || cfg.Trace {
		t.Fatalf("got %+v", cfg)
	}

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("got %q, want a JSON record", buf.String())
	}
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("FLUX_ISSUE_POLICY", "shout")
	if _, err := flux.LoadConfig(); err == nil {
		t.Fatal("expected error")
	}
}

func TestIssuePolicies(t *testing.T) {
	stale := flux.Issue{Kind: flux.IssueStaleElement, Message: "gone"}
	failed := flux.Issue{Kind: flux.IssueEffectFailed, Message: "boom"}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	flux.IssuesLog.Handler(logger)(stale)
	if !strings.Contains(buf.String(), "stale element") {
		t.Fatalf("log policy did not log: %q", buf.String())
	}

	buf.Reset()
	ignore := flux.IssuesIgnore.Handler(logger)
	ignore(stale)
	if buf.Len() != 0 {
		t.Fatalf("ignore policy logged %q", buf.String())
	}
	ignore(failed)
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("ignore policy dropped an effect failure: %q", buf.String())
	}

	strict := flux.IssuesStrict.Handler(logger)
	mustPanic(t, func() { strict(stale) })
	strict(failed)
}

func TestConfigOptionsApplyPolicy(t *testing.T) {
	cfg := flux.Config{IssuePolicy: flux.IssuesStrict}
	store := flux.New(newList(flux.NewIncrementingIDGenerator()), listReducer(flux.SystemClock{}),
		append(cfg.Options(slog.New(slog.DiscardHandler)), flux.WithRegistry(flux.NewRegistry()))...)
	mustPanic(t, func() { store.Send(element(flux.IntID(0), increment{})) })

	store.Send(addItem{})
	if store.State().Items.Len() != 1 {
		t.Fatal("store unusable after a strict-policy panic")
	}
}
