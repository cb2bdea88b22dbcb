// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux

import (
	"context"
	"fmt"
	"log/slog"
)

// IssueKind classifies a runtime diagnostic.
type IssueKind uint8

const (
	// IssueStaleElement: an element action named an ID absent from its stack.
	IssueStaleElement IssueKind = iota + 1
	// IssueStalePresentation: a presented action arrived while the slot was empty.
	IssueStalePresentation
	// IssueStalePop: popFrom named an ID absent from its stack.
	IssueStalePop
	// IssueDuplicatePush: push named an ID already present in its stack.
	IssueDuplicatePush
	// IssueDismissUnscoped: a dismissal was requested outside any presentation.
	IssueDismissUnscoped
	// IssueEffectFailed: an effect returned an error other than cancellation.
	IssueEffectFailed
	// IssuePersistence: a persistence load or save failed.
	IssuePersistence
)

var issueKindNames = [...]string{
	IssueStaleElement:      "stale element",
	IssueStalePresentation: "stale presentation",
	IssueStalePop:          "stale pop",
	IssueDuplicatePush:     "duplicate push",
	IssueDismissUnscoped:   "unscoped dismiss",
	IssueEffectFailed:      "effect failed",
	IssuePersistence:       "persistence",
}

func (k IssueKind) String() string {
	if int(k) < len(issueKindNames) && issueKindNames[k] != "" {
		return issueKindNames[k]
	}
	return fmt.Sprintf("IssueKind(%d)", uint8(k))
}

// Stale reports whether the issue is a stale-reference diagnostic.
func (k IssueKind) Stale() bool {
	return k >= IssueStaleElement && k <= IssueDuplicatePush
}

// Issue is a non-fatal diagnostic raised while dispatching actions or
// running effects. Issues never change state.
type Issue struct {
	Kind    IssueKind
	Scope   string
	Message string
	Action  any
	Err     error
}

func (i Issue) Error() string {
	if i.Err != nil {
		return "flux: " + i.Kind.String() + ": " + i.Message + ": " + i.Err.Error()
	}
	return "flux: " + i.Kind.String() + ": " + i.Message
}

func (i Issue) Unwrap() error {
	return i.Err
}

// LogValue implements slog.LogValuer.
func (i Issue) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", i.Kind.String()),
		slog.String("message", i.Message),
	}
	if i.Scope != "" {
		attrs = append(attrs, slog.String("scope", i.Scope))
	}
	if i.Action != nil {
		attrs = append(attrs, slog.String("action", fmt.Sprintf("%+v", i.Action)))
	}
	if i.Err != nil {
		attrs = append(attrs, slog.Any("error", i.Err))
	}
	return slog.GroupValue(attrs...)
}

// LogIssues returns an issue handler that logs through logger.
// Effect and persistence failures log at error level; stale references
// and unscoped dismissals at warn level.
func LogIssues(logger *slog.Logger) func(Issue) {
	return func(i Issue) {
		level := slog.LevelWarn
		if i.Kind == IssueEffectFailed || i.Kind == IssuePersistence {
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, "flux issue", "issue", i)
	}
}
