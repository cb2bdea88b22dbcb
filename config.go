// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/trace/noop"
)

// IssuePolicy selects what a store does with stale-reference issues.
type IssuePolicy string

const (
	// IssuesLog logs every issue. This is the default.
	IssuesLog IssuePolicy = "log"
	// IssuesIgnore drops stale-reference issues silently; effect and
	// persistence failures are still logged.
	IssuesIgnore IssuePolicy = "ignore"
	// IssuesStrict panics on stale-reference issues, on the dispatching
	// goroutine, and logs the rest.
	IssuesStrict IssuePolicy = "strict"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *IssuePolicy) UnmarshalText(text []byte) error {
	switch v := IssuePolicy(strings.ToLower(string(text))); v {
	case IssuesLog, IssuesIgnore, IssuesStrict:
		*p = v
		return nil
	}
	return fmt.Errorf("flux: unknown issue policy %q", text)
}

// Handler returns the issue handler implementing p.
func (p IssuePolicy) Handler(logger *slog.Logger) func(Issue) {
	logIssue := LogIssues(logger)
	switch p {
	case IssuesIgnore:
		return func(i Issue) {
			if !i.Kind.Stale() {
				logIssue(i)
			}
		}
	case IssuesStrict:
		return func(i Issue) {
			if i.Kind.Stale() {
				panic(i)
			}
			logIssue(i)
		}
	}
	return logIssue
}

// Config is the runtime configuration read from the environment.
type Config struct {
	LogLevel    slog.Level  `env:"FLUX_LOG_LEVEL" envDefault:"INFO"`
	LogFormat   string      `env:"FLUX_LOG_FORMAT" envDefault:"text"`
	IssuePolicy IssuePolicy `env:"FLUX_ISSUE_POLICY" envDefault:"log"`
	Trace       bool        `env:"FLUX_TRACE" envDefault:"true"`
}

// LoadConfig reads FLUX_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Logger returns a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Options returns store options applying c with logger.
func (c Config) Options(logger *slog.Logger) []Option {
	opts := []Option{
		WithLogger(logger),
		WithIssueHandler(c.IssuePolicy.Handler(logger)),
	}
	if !c.Trace {
		opts = append(opts, WithTracer(noop.NewTracerProvider().Tracer(instrumentation)))
	}
	return opts
}
