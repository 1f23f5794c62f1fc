// SPDX-License-Identifier: AGPL-3.0-or-later

package skillerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPanic_Tags(t *testing.T) {
	se := New(TierViolation, "x")

	assert.Equal(t, KindSkillError, FromPanic(se).Kind)
	assert.Equal(t, KindPlainError, FromPanic(errors.New("plain")).Kind)

	s := FromPanic("just a string")
	assert.Equal(t, KindString, s.Kind)
	assert.Equal(t, "just a string", s.Message())

	n := FromPanic(42)
	assert.Equal(t, KindUnknown, n.Kind)
	assert.Equal(t, "42", n.Message())

	m := FromPanic(map[string]int{"a": 1})
	assert.Equal(t, KindUnknown, m.Kind)
	assert.Equal(t, "map[a:1]", m.Message())
}

func TestFromError_Nil(t *testing.T) {
	f := FromError(nil)
	assert.Equal(t, KindUnknown, f.Kind)
	assert.NotEmpty(t, f.Message())
}

func TestClassify_SkillErrorKeepsIdentity(t *testing.T) {
	c := NewClassifier()
	se := New(TierViolation, "personal -> public", WithContext(map[string]any{"source": "personal"}))

	got := c.Classify("context-injector", FromError(fmt.Errorf("inject: %w", se)))
	assert.Equal(t, TierViolation, got.Definition)
	assert.Equal(t, "Knowledge tier data flow violation detected: personal -> public", got.Message)
	assert.Equal(t, map[string]any{"source": "personal"}, got.Details)
	assert.Empty(t, got.Suggestion)
}

func TestClassify_SkillErrorGetsSuggestion(t *testing.T) {
	c := NewClassifier()
	se := New(MissingArgument, "--input")

	got := c.Classify("sensitivity-detector", FromError(se))
	assert.Equal(t, "E201", got.Definition.Code)
	assert.Equal(t, "Run: skillkit run sensitivity-detector --help", got.Suggestion)
}

func TestClassify_Signatures(t *testing.T) {
	var target map[string]any
	synErr := json.Unmarshal([]byte("{"), &target)
	require.Error(t, synErr)

	tests := []struct {
		name     string
		failure  Failure
		wantCode string
		wantRule string
	}{
		{"cannot find module", FromError(errors.New("Cannot find module xyz")), "E302", "missing-dependency"},
		{"exec not found", FromError(fmt.Errorf("running git: %w", exec.ErrNotFound)), "E302", "missing-dependency"},
		{"string panic module", FromPanic("Cannot find module 'chalk'"), "E302", "missing-dependency"},
		{"missing argument", FromError(errors.New("Missing required argument: input")), "E201", "missing-argument"},
		{"not exist", FromError(fmt.Errorf("open a.txt: %w", fs.ErrNotExist)), "E202", "file-not-found"},
		{"enoent text", FromError(errors.New("ENOENT: no such file or directory")), "E202", "file-not-found"},
		{"permission", FromError(fmt.Errorf("open: %w", fs.ErrPermission)), "E300", "permission-denied"},
		{"json syntax", FromError(synErr), "E303", "malformed-input"},
		{"deadline", FromError(fmt.Errorf("call: %w", context.DeadlineExceeded)), "E301", "timeout"},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("demo", tt.failure)
			assert.Equal(t, tt.wantCode, got.Definition.Code)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.NotEmpty(t, got.Suggestion)
		})
	}
}

func TestClassify_DependencySuggestionMentionsInstall(t *testing.T) {
	got := NewClassifier().Classify("demo", FromError(errors.New("Cannot find module xyz")))
	assert.Contains(t, got.Suggestion, "Install")
	assert.True(t, got.Definition.Retryable)
	assert.Equal(t, "Cannot find module xyz", got.Message)
}

func TestClassify_Fallback(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("demo", FromError(errors.New("something odd")))
	assert.Equal(t, ExecutionError, got.Definition)
	assert.Equal(t, "something odd", got.Message)
	assert.Empty(t, got.Suggestion)
	assert.Empty(t, got.Rule)

	got = c.Classify("demo", FromPanic(struct{ X int }{7}))
	assert.Equal(t, "E300", got.Definition.Code)
	assert.Equal(t, "{7}", got.Message)
}

func TestClassifier_CustomRules(t *testing.T) {
	c := NewClassifier(SignatureRule{
		Name:       "locked",
		Definition: Timeout,
		Suggestion: "wait for {skill}",
		Match:      func(_ error, msg string) bool { return msg == "locked" },
	})
	require.Len(t, c.Rules(), 1)

	got := c.Classify("demo", FromPanic("locked"))
	assert.Equal(t, "E301", got.Definition.Code)
	assert.Equal(t, "wait for demo", got.Suggestion)

	// Default rules are not consulted.
	got = c.Classify("demo", FromError(errors.New("Cannot find module x")))
	assert.Equal(t, "E300", got.Definition.Code)
}
