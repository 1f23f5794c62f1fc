// SPDX-License-Identifier: AGPL-3.0-or-later

// Package skills holds the built-in skills and their embedded manifests.
package skills

import (
	"embed"
	"io/fs"
	"sort"

	"github.com/bartekus/skillkit/internal/manifest"
	"github.com/bartekus/skillkit/internal/runner"
)

//go:embed manifests
var embedded embed.FS

// Skill pairs a name with its body.
type Skill struct {
	Name string
	Run  runner.ContextFunc
}

// Registry lists the built-in skills in display order.
var Registry = []Skill{
	{Name: "context-injector", Run: injectContext},
	{Name: "knowledge-auditor", Run: auditKnowledge},
	{Name: "sensitivity-detector", Run: detectSensitivity},
}

// Lookup finds a built-in skill by name.
func Lookup(name string) (Skill, bool) {
	for _, s := range Registry {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// Names returns the registered names, sorted.
func Names() []string {
	out := make([]string, 0, len(Registry))
	for _, s := range Registry {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Manifests returns the embedded SKILL.md source.
func Manifests() manifest.Source {
	sub, err := fs.Sub(embedded, "manifests")
	if err != nil {
		panic(err)
	}
	return manifest.FSSource{FS: sub}
}
