// SPDX-License-Identifier: AGPL-3.0-or-later

package tier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartekus/skillkit/internal/skillerr"
)

// Rule maps a directory prefix to a tier. Rules are tested in order and the
// first containing directory wins, so the most sensitive rule comes first.
type Rule struct {
	Tier Tier
	Dir  string
}

// Guard classifies paths against one knowledge root. It is immutable after
// construction and safe for concurrent use.
type Guard struct {
	root  string
	rules []Rule
}

// NewGuard resolves knowledgeRoot to an absolute path once and derives the
// personal/ and confidential/ subdirectories from it. The root does not need
// to exist.
func NewGuard(knowledgeRoot string) (*Guard, error) {
	if knowledgeRoot == "" {
		return nil, fmt.Errorf("knowledge root is required")
	}
	root, err := filepath.Abs(knowledgeRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving knowledge root %q: %w", knowledgeRoot, err)
	}
	return &Guard{
		root: root,
		rules: []Rule{
			{Tier: Personal, Dir: filepath.Join(root, "personal")},
			{Tier: Confidential, Dir: filepath.Join(root, "confidential")},
		},
	}, nil
}

// Root returns the absolute knowledge root.
func (g *Guard) Root() string { return g.root }

// Rules returns the ordered classification rules.
func (g *Guard) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// DetectTier returns the tier of path. The path is made absolute against the
// working directory; it need not exist. Paths outside every rule are public.
func (g *Guard) DetectTier(path string) Tier {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	for _, r := range g.rules {
		if within(r.Dir, abs) {
			return r.Tier
		}
	}
	return Public
}

// within reports whether p is dir or lies below it, comparing whole path
// segments.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// Validation is the outcome of one injection check.
type Validation struct {
	Allowed    bool   `json:"allowed"`
	SourceTier Tier   `json:"sourceTier"`
	OutputTier Tier   `json:"outputTier"`
	Reason     string `json:"reason,omitempty"`

	path string
}

// ValidateInjection decides whether the knowledge file at path may be
// embedded into an output of the given tier. It never fails; a refusal is
// reported through Allowed and Reason.
func (g *Guard) ValidateInjection(path string, output Tier) Validation {
	source := g.DetectTier(path)
	v := Validation{
		Allowed:    CanFlowTo(source, output),
		SourceTier: source,
		OutputTier: output,
		path:       path,
	}
	if !v.Allowed {
		v.Reason = fmt.Sprintf("Cannot inject %s-tier data into %s-tier output", source, output)
	}
	return v
}

// Err returns a TIER_VIOLATION error for a refused validation, nil otherwise.
func (v Validation) Err() error {
	if v.Allowed {
		return nil
	}
	ctx := map[string]any{
		"source_tier": string(v.SourceTier),
		"output_tier": string(v.OutputTier),
	}
	if v.path != "" {
		ctx["path"] = v.path
	}
	return skillerr.New(skillerr.TierViolation, v.Reason, skillerr.WithContext(ctx))
}
