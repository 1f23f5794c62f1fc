// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bartekus/skillkit/internal/envelope"
	"github.com/bartekus/skillkit/internal/projection"
)

// StateStore persists the latest envelope per skill and a last-run summary.
type StateStore struct {
	baseDir string
}

// NewStateStore creates a store at the given base directory (e.g. work/runs).
func NewStateStore(baseDir string) *StateStore {
	return &StateStore{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *StateStore) Dir() string { return s.baseDir }

func (s *StateStore) lastRunPath() string {
	return filepath.Join(s.baseDir, "last-run.json")
}

func (s *StateStore) skillPath(skill string) (string, error) {
	if skill == "" || skill == "." || skill == ".." || strings.ContainsAny(skill, `/\`) {
		return "", fmt.Errorf("invalid skill name %q", skill)
	}
	return filepath.Join(s.baseDir, "skills", skill+".json"), nil
}

// Record stores env as the skill's latest result and updates last-run.json.
func (s *StateStore) Record(env envelope.Envelope) error {
	if err := s.WriteEnvelope(env); err != nil {
		return err
	}

	last, err := s.ReadLastRun()
	if err != nil {
		return err
	}
	var failed []string
	if last != nil {
		failed = slices.DeleteFunc(last.Failed, func(n string) bool { return n == env.Skill })
	}
	if env.Status == envelope.StatusError {
		failed = append(failed, env.Skill)
	}
	if failed == nil {
		failed = []string{}
	}

	next := LastRun{
		Skill:    env.Skill,
		Status:   env.Status,
		ExitCode: env.ExitCode(),
		Failed:   failed,
	}
	if env.Metadata != nil {
		next.ExecutionID = env.Metadata.ExecutionID
		next.Timestamp = env.Metadata.Timestamp
	}
	return s.WriteLastRun(next)
}

// WriteEnvelope saves env under skills/<skill>.json.
func (s *StateStore) WriteEnvelope(env envelope.Envelope) error {
	path, err := s.skillPath(env.Skill)
	if err != nil {
		return err
	}
	return projection.WriteJSON(path, env)
}

// ReadEnvelope loads the latest envelope for skill. A skill that never ran
// yields nil without error.
func (s *StateStore) ReadEnvelope(skill string) (*envelope.Envelope, error) {
	path, err := s.skillPath(skill)
	if err != nil {
		return nil, err
	}
	var env envelope.Envelope
	ok, err := projection.ReadJSON(path, &env)
	if err != nil || !ok {
		return nil, err
	}
	return &env, nil
}

// ReadLastRun loads the last execution summary, or nil on a clean state.
func (s *StateStore) ReadLastRun() (*LastRun, error) {
	var last LastRun
	ok, err := projection.ReadJSON(s.lastRunPath(), &last)
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &last, nil
}

// WriteLastRun saves the execution summary.
func (s *StateStore) WriteLastRun(last LastRun) error {
	return projection.WriteJSON(s.lastRunPath(), last)
}

// LoadFailedSkills returns the skills whose most recent run failed.
func (s *StateStore) LoadFailedSkills() ([]string, error) {
	last, err := s.ReadLastRun()
	if err != nil || last == nil {
		return nil, err
	}
	return last.Failed, nil
}

// Reset clears the state directory.
func (s *StateStore) Reset() error {
	if err := os.RemoveAll(s.baseDir); err != nil {
		return fmt.Errorf("resetting state: %w", err)
	}
	return nil
}
