// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/skillkit/internal/envelope"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "knowledge"), cfg.KnowledgeRoot)
	assert.Equal(t, envelope.FormatJSON, cfg.Format)
	assert.Equal(t, "WARN", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, filepath.Join("work", "metrics"), cfg.Metrics.Dir)
	assert.False(t, cfg.State.Enabled)
	assert.True(t, cfg.Guard.Sovereign)
	assert.False(t, cfg.Guard.Markers)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SKILLKIT_FORMAT", "human")
	t.Setenv("SKILLKIT_METRICS_ENABLED", "false")
	t.Setenv("MISSION_ID", "m-42")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, envelope.FormatHuman, cfg.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "m-42", cfg.MissionID)
}

func TestLoad_BadFormat(t *testing.T) {
	v := New()
	v.Set("format", "xml")
	_, err := Load(v)
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skillkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
knowledge_root: /srv/knowledge
guard:
  markers: true
state:
  enabled: true
  dir: /tmp/runs
`), 0o644))

	v := New()
	used, err := ReadFile(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/knowledge", cfg.KnowledgeRoot)
	assert.True(t, cfg.Guard.Markers)
	assert.True(t, cfg.Guard.Sovereign)
	assert.True(t, cfg.State.Enabled)
	assert.Equal(t, "/tmp/runs", cfg.State.Dir)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
