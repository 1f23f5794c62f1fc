// SPDX-License-Identifier: AGPL-3.0-or-later

package skills

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/skillkit/internal/runner"
	"github.com/bartekus/skillkit/internal/tier"
)

type fixture struct {
	root string
	out  *bytes.Buffer
	w    *runner.Wrapper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "knowledge")
	guard, err := tier.NewGuard(root)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &fixture{
		root: root,
		out:  out,
		w: runner.New(runner.Options{
			Guard:     guard,
			Manifests: Manifests(),
			Stdout:    out,
			Program:   "skillkit run",
		}),
	}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) run(t *testing.T, name string, args ...string) (runner.Outcome, map[string]any) {
	t.Helper()
	s, ok := Lookup(name)
	require.True(t, ok, name)
	f.out.Reset()
	res := f.w.RunContext(t.Context(), name, args, s.Run)

	var env map[string]any
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &env), f.out.String())
	return res, env
}

func TestManifests(t *testing.T) {
	src := Manifests()
	for _, name := range Names() {
		m, err := src.Manifest(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name)
		assert.NotEmpty(t, m.Description)
		assert.False(t, m.Loose())
	}
	assert.Equal(t, []string{"context-injector", "knowledge-auditor", "sensitivity-detector"}, Names())

	_, ok := Lookup("nope")
	assert.False(t, ok)
}

func TestScanPII(t *testing.T) {
	has, findings := ScanPII("mail a@b.io or c@d.com from 10.0.0.1, call 03-1234-5678, card 4111 1111 1111 1111")
	assert.True(t, has)
	assert.Equal(t, map[string]int{"email": 2, "ipv4": 1, "phone_jp": 1, "credit_card": 1}, findings)

	has, findings = ScanPII("nothing here")
	assert.False(t, has)
	assert.Empty(t, findings)
}

func TestSensitivityDetector(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "personal/contacts.md", "CONFIDENTIAL\nreach me at me@example.com\n")

	res, env := f.run(t, "sensitivity-detector", "--input", path)
	require.Equal(t, 0, res.ExitCode, f.out.String())

	data := env["data"].(map[string]any)
	assert.Equal(t, "personal", data["tier"])
	assert.Equal(t, true, data["hasPII"])
	assert.Equal(t, map[string]any{"email": float64(1)}, data["findings"])
	assert.Equal(t, []any{"CONFIDENTIAL"}, data["markers"].(map[string]any)["markers"])
}

func TestSensitivityDetector_Failures(t *testing.T) {
	f := newFixture(t)

	res, _ := f.run(t, "sensitivity-detector", "--input", filepath.Join(f.root, "missing.md"))
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E202", res.Envelope.Error.Code)

	res, _ = f.run(t, "sensitivity-detector")
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E201", res.Envelope.Error.Code)

	require.NoError(t, os.MkdirAll(f.root, 0o755))
	res, _ = f.run(t, "sensitivity-detector", "-i", f.root)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E202", res.Envelope.Error.Code)
}

func TestContextInjector(t *testing.T) {
	f := newFixture(t)
	data := f.write(t, "work/data.json", `{"title":"report","_context":{"source":"crm"}}`)
	public := f.write(t, "public/faq.md", "public answer")
	personal := f.write(t, "personal/notes.md", "private note")

	res, env := f.run(t, "context-injector", "-d", data, "-k", public)
	require.Equal(t, 0, res.ExitCode, f.out.String())
	ctxBlock := env["data"].(map[string]any)["_context"].(map[string]any)
	assert.Equal(t, "public answer", ctxBlock["injected_knowledge"])
	assert.Equal(t, "crm", ctxBlock["source"])

	res, env = f.run(t, "context-injector", "-d", data, "-k", personal, "--output-tier", "public")
	assert.Equal(t, 1, res.ExitCode)
	errInfo := env["error"].(map[string]any)
	assert.Equal(t, "E500", errInfo["code"])
	assert.Contains(t, errInfo["message"], "Cannot inject personal-tier data into public-tier output")
	assert.Equal(t, "personal", errInfo["details"].(map[string]any)["source_tier"])

	res, _ = f.run(t, "context-injector", "-d", data, "-k", personal, "-t", "personal")
	assert.Equal(t, 0, res.ExitCode)
}

func TestContextInjector_Out(t *testing.T) {
	f := newFixture(t)
	data := f.write(t, "work/data.json", `{}`)
	conf := f.write(t, "confidential/plan.md", "roadmap")
	out := filepath.Join(t.TempDir(), "enriched.json")

	res, env := f.run(t, "context-injector", "-d", data, "-k", conf, "-t", "confidential", "-o", out)
	require.Equal(t, 0, res.ExitCode, f.out.String())

	result := env["data"].(map[string]any)
	assert.Equal(t, out, result["out"])
	assert.Equal(t, "confidential", result["sourceTier"])

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"injected_knowledge": "roadmap"`)
}

func TestContextInjector_BadData(t *testing.T) {
	f := newFixture(t)
	data := f.write(t, "work/data.json", `{"title":`)
	public := f.write(t, "public/faq.md", "x")

	res, _ := f.run(t, "context-injector", "-d", data, "-k", public)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E303", res.Envelope.Error.Code)

	res, _ = f.run(t, "context-injector", "-d", data, "-k", public, "-t", "secret")
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E200", res.Envelope.Error.Code)
}

func TestKnowledgeAuditor(t *testing.T) {
	f := newFixture(t)
	f.write(t, "public/readme.md", "all clear")
	f.write(t, "public/setup.md", "PASSWORD=hunter2")
	f.write(t, "public/internal/ops.md", "ops")
	f.write(t, "confidential/plan.md", "CONFIDENTIAL plan")
	f.write(t, "personal/diary.md", "TOKEN abc")
	f.write(t, "public/logo.png", "binary")
	f.write(t, "node_modules/pkg/index.md", "ignored")

	res, env := f.run(t, "knowledge-auditor")
	require.Equal(t, 0, res.ExitCode, f.out.String())

	data := env["data"].(map[string]any)
	assert.Equal(t, float64(5), data["totalFiles"])
	assert.Contains(t, []any{"git", "walk"}, data["source"])
	assert.Equal(t, map[string]any{
		"public": float64(2), "internal": float64(1), "confidential": float64(1), "personal": float64(1),
	}, data["tiers"])

	violations := data["violations"].([]any)
	require.Len(t, violations, 2)
	first := violations[0].(map[string]any)
	assert.Equal(t, "public/setup.md", first["file"])
	assert.Equal(t, "high", first["severity"])
	assert.Equal(t, "critical", violations[1].(map[string]any)["severity"])

	assert.Contains(t, data["recommendations"], "Review and remediate 2 tier violation(s) immediately")
}

func TestKnowledgeAuditor_MissingDir(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "knowledge-auditor", "--dir", filepath.Join(f.root, "absent"))
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "E202", res.Envelope.Error.Code)
}

func TestRecommendations_Empty(t *testing.T) {
	got := recommendations(TierCounts{}, nil)
	assert.Equal(t, []string{
		"No confidential or personal tier files found - verify tier structure is correct",
		"No scannable files found in the directory",
	}, got)
}
