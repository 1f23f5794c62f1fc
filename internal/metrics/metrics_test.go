// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func TestCollector_RecordPersists(t *testing.T) {
	dir := t.TempDir()
	c := NewCollector(Options{Dir: dir, Persist: true, Now: fixedClock()})

	e, err := c.Record("scan", 150*time.Millisecond, "success")
	require.NoError(t, err)
	assert.Equal(t, int64(150), e.DurationMS)
	assert.Equal(t, "2026-01-02T03:04:06Z", e.Timestamp)
	assert.Greater(t, e.Memory.HeapUsedMB, 0.0)

	_, err = c.Record("scan", 50*time.Millisecond, "error")
	require.NoError(t, err)

	history, err := c.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "error", history[1].Status)
	assert.Equal(t, filepath.Join(dir, FileName), c.Path())
}

func TestCollector_NoPersist(t *testing.T) {
	dir := t.TempDir()
	c := NewCollector(Options{Dir: dir})

	_, err := c.Record("scan", time.Millisecond, "success")
	require.NoError(t, err)
	assert.Len(t, c.Recorded(), 1)

	_, statErr := os.Stat(c.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadHistory_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	content := `{"skill":"a","duration_ms":1,"status":"success","timestamp":"t1"}
not json

{"skill":"b","duration_ms":2,"status":"error","timestamp":"t2"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	c := NewCollector(Options{Dir: dir})
	history, err := c.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "b", history[1].Skill)
}

func TestLoadHistory_Missing(t *testing.T) {
	c := NewCollector(Options{Dir: t.TempDir()})
	history, err := c.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{Skill: "a", DurationMS: 100, Status: "success", Timestamp: "2026-01-01T00:00:01Z", Memory: Memory{HeapUsedMB: 4, RSSMB: 20}},
		{Skill: "b", DurationMS: 10, Status: "success", Timestamp: "2026-01-01T00:00:02Z"},
		{Skill: "a", DurationMS: 200, Status: "error", Timestamp: "2026-01-01T00:00:03Z", Memory: Memory{HeapUsedMB: 6, RSSMB: 18}},
		{Skill: "a", DurationMS: 301, Status: "success", Timestamp: "2026-01-01T00:00:04Z"},
	}

	want := []Summary{
		{Skill: "a", Executions: 3, Errors: 1, ErrorRate: 33.3, AvgMS: 200, MinMS: 100, MaxMS: 301, LastRun: "2026-01-01T00:00:04Z", PeakHeapMB: 6, PeakRSSMB: 20},
		{Skill: "b", Executions: 1, ErrorRate: 0, AvgMS: 10, MinMS: 10, MaxMS: 10, LastRun: "2026-01-01T00:00:02Z"},
	}
	if diff := cmp.Diff(want, Summarize(entries)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Summarize(nil))
}

func TestDetectRegressions(t *testing.T) {
	var entries []Entry
	for i := 0; i < 4; i++ {
		entries = append(entries, Entry{Skill: "slow", DurationMS: 100})
		entries = append(entries, Entry{Skill: "steady", DurationMS: 100})
	}
	entries = append(entries,
		Entry{Skill: "slow", DurationMS: 400, Timestamp: "last"},
		Entry{Skill: "steady", DurationMS: 150},
		Entry{Skill: "young", DurationMS: 9999},
	)

	got := DetectRegressions(entries, 1.5)
	require.Len(t, got, 1)
	assert.Equal(t, Regression{Skill: "slow", LastDuration: 400, HistoricalAvg: 100, IncreaseRate: 4, Timestamp: "last"}, got[0])
}
