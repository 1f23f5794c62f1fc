// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"errors"
	"io/fs"

	"github.com/bartekus/skillkit/internal/skillerr"
)

// Source resolves a skill name to its manifest.
type Source interface {
	Manifest(name string) (*Manifest, error)
}

// FSSource loads manifests laid out as <name>/SKILL.md in an fs.FS.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) Manifest(name string) (*Manifest, error) {
	return Load(s.FS, name)
}

// Chain consults each source in order and returns the first manifest found.
// Only SKILL_NOT_FOUND falls through to the next source.
type Chain []Source

func (c Chain) Manifest(name string) (*Manifest, error) {
	for _, s := range c {
		m, err := s.Manifest(name)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, skillerr.New(skillerr.SkillNotFound, "")) {
			return nil, err
		}
	}
	return nil, skillerr.New(skillerr.SkillNotFound, name)
}
