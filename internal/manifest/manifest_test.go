// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"bytes"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/skillkit/internal/skillerr"
)

const scannerManifest = `---
name: sensitivity-detector
description: Detect sensitive markers in a file
category: Security
arguments:
  - name: input
    short: i
    type: string
    required: true
    description: File to scan
  - name: output-tier
    type: string
    default: public
    choices: [public, confidential, personal]
    description: Tier of the report
  - name: strict
    type: boolean
    description: Fail when markers are found
  - name: limit
    type: integer
    default: 10
  - name: extra
    positional: true
    type: array
---

# Sensitivity Detector

Body text.
`

func mustParse(t *testing.T, src string) *Manifest {
	t.Helper()
	m, err := Parse([]byte(src))
	require.NoError(t, err)
	return m
}

func TestParse(t *testing.T) {
	m := mustParse(t, scannerManifest)
	assert.Equal(t, "sensitivity-detector", m.Name)
	assert.Equal(t, "Security", m.Category)
	assert.Equal(t, "# Sensitivity Detector\n\nBody text.", m.Body)

	want := []Argument{
		{Name: "input", Short: "i", Type: "string", Required: true, Description: "File to scan"},
		{Name: "output-tier", Type: "string", Default: "public", Choices: []string{"public", "confidential", "personal"}, Description: "Tier of the report"},
		{Name: "strict", Type: "boolean", Description: "Fail when markers are found"},
		{Name: "limit", Type: "integer", Default: 10},
		{Name: "extra", Positional: true, Type: "array"},
	}
	if diff := cmp.Diff(want, m.Arguments); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"no frontmatter": "# Title\n",
		"unterminated":   "---\nname: x\n",
		"bad yaml":       "---\nname: [\n---\n",
		"reserved":       "---\nname: x\narguments:\n  - name: format\n---\n",
		"short h":        "---\nname: x\narguments:\n  - name: host\n    short: h\n---\n",
		"duplicate":      "---\nname: x\narguments:\n  - name: a\n  - name: a\n---\n",
		"bad type":       "---\nname: x\narguments:\n  - name: a\n    type: map\n---\n",
		"after variadic": "---\nname: x\narguments:\n  - name: a\n    positional: true\n    type: array\n  - name: b\n    positional: true\n---\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	m := mustParse(t, "---\n---\nbody")
	assert.Empty(t, m.Name)
	assert.Equal(t, "body", m.Body)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"sensitivity-detector/SKILL.md": {Data: []byte(scannerManifest)},
		"unnamed/SKILL.md":              {Data: []byte("---\ndescription: no name\n---\n")},
	}

	m, err := Load(fsys, "sensitivity-detector")
	require.NoError(t, err)
	assert.Len(t, m.Arguments, 5)

	m, err = Load(fsys, "unnamed")
	require.NoError(t, err)
	assert.Equal(t, "unnamed", m.Name)

	_, err = Load(fsys, "missing")
	require.Error(t, err)
	se, ok := skillerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "E100", se.Code())
}

func TestChain(t *testing.T) {
	override := FSSource{FS: fstest.MapFS{
		"a/SKILL.md": {Data: []byte("---\nname: a\ndescription: override\n---\n")},
	}}
	builtin := FSSource{FS: fstest.MapFS{
		"a/SKILL.md": {Data: []byte("---\nname: a\ndescription: builtin\n---\n")},
		"b/SKILL.md": {Data: []byte("---\nname: b\ndescription: builtin\n---\n")},
		"c/SKILL.md": {Data: []byte("no frontmatter")},
	}}
	c := Chain{override, builtin}

	m, err := c.Manifest("a")
	require.NoError(t, err)
	assert.Equal(t, "override", m.Description)

	m, err = c.Manifest("b")
	require.NoError(t, err)
	assert.Equal(t, "builtin", m.Description)

	_, err = c.Manifest("c")
	require.Error(t, err)
	_, isSkillErr := skillerr.As(err)
	assert.False(t, isSkillErr, "a broken manifest must not look like a missing one")

	_, err = c.Manifest("zzz")
	assert.True(t, errors.Is(err, skillerr.New(skillerr.SkillNotFound, "")))
}

func TestArgs_Parse(t *testing.T) {
	m := mustParse(t, scannerManifest)

	args, err := m.Parse([]string{"-i", "notes.md", "--strict", "--format=human", "x", "y"})
	require.NoError(t, err)
	assert.False(t, args.Help)
	assert.Equal(t, "human", args.Format)
	assert.Equal(t, "notes.md", args.String("input"))
	assert.True(t, args.Has("input"))
	assert.True(t, args.Bool("strict"))
	assert.Equal(t, "public", args.String("output-tier"))
	assert.False(t, args.Has("output-tier"))
	assert.Equal(t, 10, args.Int("limit"))
	assert.Equal(t, []string{"x", "y"}, args.Strings("extra"))
}

func TestArgs_ParseFailures(t *testing.T) {
	m := mustParse(t, scannerManifest)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing required", []string{"--strict"}, "E201"},
		{"unknown flag", []string{"-i", "a", "--bogus"}, "E200"},
		{"bad choice", []string{"-i", "a", "--output-tier", "secret"}, "E200"},
		{"bad integer", []string{"-i", "a", "--limit", "many"}, "E200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(tt.args)
			require.Error(t, err)
			se, ok := skillerr.As(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tt.wantCode, se.Code())
		})
	}
}

func TestArgs_HelpShortCircuits(t *testing.T) {
	m := mustParse(t, scannerManifest)

	for _, argv := range [][]string{{"--help"}, {"-h"}, {"--bogus", "--help"}} {
		args, err := m.Parse(argv)
		require.NoError(t, err)
		assert.True(t, args.Help)
	}

	args, err := m.Parse([]string{"-i", "a", "--", "--help"})
	require.NoError(t, err)
	assert.False(t, args.Help)
	assert.Equal(t, []string{"--help"}, args.Strings("extra"))
}

func TestArgs_Positional(t *testing.T) {
	m := mustParse(t, `---
name: p
arguments:
  - name: src
    positional: true
    required: true
  - name: mode
    positional: true
    choices: [fast, slow]
---
`)
	args, err := m.Parse([]string{"a.md", "fast"})
	require.NoError(t, err)
	assert.Equal(t, "a.md", args.String("src"))
	assert.Equal(t, "fast", args.String("mode"))

	_, err = m.Parse(nil)
	se, ok := skillerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "E201", se.Code())

	_, err = m.Parse([]string{"a.md", "medium"})
	se, ok = skillerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "E200", se.Code())

	_, err = m.Parse([]string{"a.md", "fast", "extra"})
	se, ok = skillerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "E200", se.Code())
}

func TestFallback_Loose(t *testing.T) {
	m := Fallback("adhoc")
	assert.True(t, m.Loose())

	args, err := m.Parse([]string{"--format", "human", "--anything", "x", "--", "--format"})
	require.NoError(t, err)
	assert.Equal(t, "human", args.Format)
	assert.Equal(t, []string{"--anything", "x", "--format"}, args.Positional())
}

func TestNewArgs(t *testing.T) {
	args := NewArgs(map[string]any{"input": "a.md", "strict": true})
	assert.True(t, args.Has("input"))
	assert.Equal(t, "a.md", args.String("input"))
	assert.True(t, args.Bool("strict"))
	assert.Equal(t, map[string]any{"input": "a.md", "strict": true}, args.Map())
}

func TestUsage(t *testing.T) {
	m := mustParse(t, scannerManifest)
	var buf bytes.Buffer
	require.NoError(t, m.Usage(&buf, "skillkit run sensitivity-detector"))

	out := buf.String()
	assert.Contains(t, out, "sensitivity-detector -- Detect sensitive markers in a file")
	assert.Contains(t, out, "Usage:\n  skillkit run sensitivity-detector [options] [<extra>...]\n")
	assert.Contains(t, out, "  --input, -i            File to scan (required)\n")
	assert.Contains(t, out, "{public, confidential, personal} [default: public]")
	assert.Contains(t, out, "  --help, -h")
}
