// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"code.hybscloud.com/flux/internal/logging"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":  slog.LevelDebug,
		" INFO ": slog.LevelInfo,
		"Warn":   slog.LevelWarn,
		"error":  slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q): got %v, %v, want %v", in, got, err, want)
		}
	}
	if got, err := logging.ParseLevel("loud"); err == nil || got != slog.LevelWarn {
		t.Fatalf("ParseLevel(loud): got %v, %v, want warn and an error", got, err)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "info", "json").Debug("hidden")
	logging.New(&buf, "info", "json").Info("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.HasPrefix(out, `{"time":`) {
		t.Fatalf("got %q", out)
	}

	buf.Reset()
	logging.New(&buf, "bogus", "text").Info("dropped")
	logging.New(&buf, "bogus", "text").Warn("kept")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "level=WARN msg=kept") {
		t.Fatalf("got %q", out)
	}
}
