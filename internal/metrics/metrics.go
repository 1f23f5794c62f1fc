// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics records one line per skill execution to an append-only
// JSONL file and aggregates the history into per-skill summaries.
package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const (
	// FileName is the JSONL history file inside the metrics directory.
	FileName = "skill-metrics.jsonl"

	// DefaultMemoryBudgetMB is the heap size above which a record logs a warning.
	DefaultMemoryBudgetMB = 200
)

// Memory is a snapshot taken when an execution is recorded.
type Memory struct {
	HeapUsedMB  float64 `json:"heap_used_mb"`
	HeapTotalMB float64 `json:"heap_total_mb"`
	RSSMB       float64 `json:"rss_mb"`
}

// Entry is one line of the history file.
type Entry struct {
	Skill      string `json:"skill"`
	DurationMS int64  `json:"duration_ms"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Memory     Memory `json:"memory"`
}

// Options configures a Collector.
type Options struct {
	Dir            string
	Persist        bool
	MemoryBudgetMB float64
	Logger         *zap.Logger
	Now            func() time.Time
}

// Collector records executions. It is safe for concurrent use.
type Collector struct {
	path    string
	persist bool
	budget  float64
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewCollector creates a collector writing under opts.Dir.
func NewCollector(opts Options) *Collector {
	c := &Collector{
		path:    filepath.Join(opts.Dir, FileName),
		persist: opts.Persist,
		budget:  opts.MemoryBudgetMB,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if c.budget <= 0 {
		c.budget = DefaultMemoryBudgetMB
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Path returns the history file location.
func (c *Collector) Path() string { return c.path }

// Record captures one execution. A persistence failure is returned but the
// entry is still kept in memory.
func (c *Collector) Record(skill string, d time.Duration, status string) (Entry, error) {
	e := Entry{
		Skill:      skill,
		DurationMS: d.Milliseconds(),
		Status:     status,
		Timestamp:  c.now().UTC().Format(time.RFC3339Nano),
		Memory:     snapshot(),
	}
	if e.Memory.HeapUsedMB > c.budget {
		c.log.Warn("memory budget exceeded",
			zap.String("skill", skill),
			zap.Float64("heap_used_mb", e.Memory.HeapUsedMB),
			zap.Float64("budget_mb", c.budget))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	if !c.persist {
		return e, nil
	}
	return e, c.append(e)
}

// Recorded returns the entries recorded by this collector.
func (c *Collector) Recorded() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Summary aggregates the entries recorded by this collector.
func (c *Collector) Summary() []Summary {
	return Summarize(c.Recorded())
}

// LoadHistory reads every entry in the history file. A missing file yields
// no entries; malformed lines are skipped.
func (c *Collector) LoadHistory() ([]Entry, error) {
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening metrics history: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			c.log.Debug("skipping malformed metrics line", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading metrics history: %w", err)
	}
	return out, nil
}

func (c *Collector) append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening metrics file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending metrics: %w", err)
	}
	return f.Close()
}

func snapshot() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m := Memory{
		HeapUsedMB:  toMB(ms.HeapAlloc),
		HeapTotalMB: toMB(ms.HeapSys),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil && info != nil {
			m.RSSMB = toMB(info.RSS)
		}
	}
	return m
}

func toMB(b uint64) float64 {
	return math.Round(float64(b)/1024/1024*100) / 100
}

// Summary is the per-skill aggregate.
type Summary struct {
	Skill      string  `json:"skill"`
	Executions int     `json:"executions"`
	Errors     int     `json:"errors"`
	ErrorRate  float64 `json:"errorRate"`
	AvgMS      int64   `json:"avgMs"`
	MinMS      int64   `json:"minMs"`
	MaxMS      int64   `json:"maxMs"`
	LastRun    string  `json:"lastRun"`
	PeakHeapMB float64 `json:"peakHeapMB"`
	PeakRSSMB  float64 `json:"peakRssMB"`
}

// Summarize aggregates entries per skill, most executed first. Ties are
// broken by name. ErrorRate is a percentage with one decimal.
func Summarize(entries []Entry) []Summary {
	type agg struct {
		Summary
		total int64
	}
	by := map[string]*agg{}
	for _, e := range entries {
		a, ok := by[e.Skill]
		if !ok {
			a = &agg{Summary: Summary{Skill: e.Skill, MinMS: math.MaxInt64}}
			by[e.Skill] = a
		}
		a.Executions++
		if e.Status == "error" {
			a.Errors++
		}
		a.total += e.DurationMS
		a.MinMS = min(a.MinMS, e.DurationMS)
		a.MaxMS = max(a.MaxMS, e.DurationMS)
		if e.Timestamp > a.LastRun {
			a.LastRun = e.Timestamp
		}
		a.PeakHeapMB = max(a.PeakHeapMB, e.Memory.HeapUsedMB)
		a.PeakRSSMB = max(a.PeakRSSMB, e.Memory.RSSMB)
	}

	out := make([]Summary, 0, len(by))
	for _, a := range by {
		s := a.Summary
		s.AvgMS = int64(math.Round(float64(a.total) / float64(s.Executions)))
		s.ErrorRate = math.Round(float64(s.Errors)/float64(s.Executions)*1000) / 10
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Executions != out[j].Executions {
			return out[i].Executions > out[j].Executions
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}

// Regression flags a skill whose latest run is much slower than its history.
type Regression struct {
	Skill         string  `json:"skill"`
	LastDuration  int64   `json:"lastDuration"`
	HistoricalAvg int64   `json:"historicalAvg"`
	IncreaseRate  float64 `json:"increaseRate"`
	Timestamp     string  `json:"timestamp"`
}

// MinRegressionRuns is the history length needed before a skill is judged.
const MinRegressionRuns = 5

// DetectRegressions compares each skill's last entry with the mean of the
// ones before it and reports those slower by more than multiplier.
func DetectRegressions(entries []Entry, multiplier float64) []Regression {
	var order []string
	by := map[string][]Entry{}
	for _, e := range entries {
		if _, ok := by[e.Skill]; !ok {
			order = append(order, e.Skill)
		}
		by[e.Skill] = append(by[e.Skill], e)
	}

	var out []Regression
	for _, name := range order {
		runs := by[name]
		if len(runs) < MinRegressionRuns {
			continue
		}
		last := runs[len(runs)-1]
		var sum int64
		for _, r := range runs[:len(runs)-1] {
			sum += r.DurationMS
		}
		avg := float64(sum) / float64(len(runs)-1)
		if avg <= 0 || float64(last.DurationMS) <= avg*multiplier {
			continue
		}
		out = append(out, Regression{
			Skill:         name,
			LastDuration:  last.DurationMS,
			HistoricalAvg: int64(math.Round(avg)),
			IncreaseRate:  math.Round(float64(last.DurationMS)/avg*10) / 10,
			Timestamp:     last.Timestamp,
		})
	}
	return out
}
