// SPDX-License-Identifier: AGPL-3.0-or-later

package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/testutil/golden"
)

func TestMarshal_Success(t *testing.T) {
	env := Envelope{
		Skill:  "demo",
		Status: StatusSuccess,
		Data:   map[string]any{"foo": 1},
		Metadata: &Metadata{
			DurationMS: 5,
			Timestamp:  "2026-10-16T08:00:00.000Z",
		},
	}
	raw, err := Marshal(env)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(raw, []byte("}\n")))
	assert.JSONEq(t, `{
		"skill": "demo",
		"status": "success",
		"data": {"foo": 1},
		"metadata": {"duration_ms": 5, "timestamp": "2026-10-16T08:00:00.000Z"}
	}`, string(raw))
	assert.Equal(t, 0, env.ExitCode())
}

func TestMarshal_Error(t *testing.T) {
	c := skillerr.NewClassifier().Classify("demo", skillerr.FromError(errors.New("Cannot find module xyz")))
	env := Envelope{Skill: "demo", Status: StatusError, Error: ErrorFrom(c)}

	raw, err := Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.NotContains(t, got, "data")
	errObj := got["error"].(map[string]any)
	assert.Equal(t, "E302", errObj["code"])
	assert.Equal(t, true, errObj["retryable"])
	assert.NotEmpty(t, errObj["suggestion"])
	assert.NotContains(t, errObj, "details")
	assert.Equal(t, 1, env.ExitCode())
}

func TestMarshal_Unencodable(t *testing.T) {
	_, err := Marshal(Envelope{Skill: "demo", Status: StatusSuccess, Data: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demo")
}

func TestExitCode_Partial(t *testing.T) {
	assert.Equal(t, 0, Envelope{Status: StatusPartial}.ExitCode())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "human": FormatHuman} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestHuman_Golden(t *testing.T) {
	dir := golden.Dir(t)

	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "human_success",
			env: Envelope{
				Skill:    "demo",
				Status:   StatusSuccess,
				Data:     map[string]any{"foo": 1},
				Metadata: &Metadata{DurationMS: 12},
			},
		},
		{
			name: "human_error",
			env: Envelope{
				Skill:    "demo",
				Status:   StatusError,
				Metadata: &Metadata{DurationMS: 3},
				Error: &ErrorInfo{
					Code:       "E302",
					Message:    "Cannot find module xyz",
					Retryable:  true,
					Suggestion: "Install the missing dependency",
				},
			},
		},
		{
			name: "human_partial",
			env: Envelope{
				Skill:  "demo",
				Status: StatusPartial,
				Data:   "scanned 2 of 3 files",
				Error: &ErrorInfo{
					Code:    "E202",
					Message: "File path is invalid or file does not exist: c.md",
					Details: map[string]any{"path": "c.md"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			golden.Assert(t, dir, tt.name, NewHumanRenderer(false).Render(tt.env))
		})
	}
}

func TestHuman_ColorToggle(t *testing.T) {
	env := Envelope{Skill: "demo", Status: StatusSuccess}
	assert.Contains(t, NewHumanRenderer(true).Render(env), "\x1b[")
	assert.NotContains(t, NewHumanRenderer(false).Render(env), "\x1b[")
}

func TestWrite_SingleWrite(t *testing.T) {
	w := &countingWriter{}
	env := Envelope{Skill: "demo", Status: StatusSuccess, Data: "ok"}

	require.NoError(t, Write(w, env, FormatJSON, false))
	require.NoError(t, Write(w, env, FormatHuman, false))
	assert.Equal(t, 2, w.writes)
	assert.True(t, strings.HasPrefix(w.buf.String(), "{"))
}

type countingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.buf.Write(p)
}

func TestSchema(t *testing.T) {
	raw, err := SchemaJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"skill", "status", "data", "metadata", "error"} {
		assert.Contains(t, props, key)
	}
	assert.ElementsMatch(t, []any{"skill", "status"}, doc["required"])

	status := props["status"].(map[string]any)
	assert.ElementsMatch(t, []any{"success", "error", "partial"}, status["enum"])
}
