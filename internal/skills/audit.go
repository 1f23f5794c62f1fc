// SPDX-License-Identifier: AGPL-3.0-or-later

package skills

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/runner"
	"github.com/bartekus/skillkit/internal/scanner"
	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/tier"
)

const (
	auditMaxDepth    = 5
	auditMaxFileSize = 1024 * 1024
)

var auditIgnoreDirs = []string{
	".git", "node_modules", "dist", "build", "coverage", ".next", ".nuxt",
	"vendor", "tmp", "temp", "__pycache__",
}

var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg", ".woff", ".woff2",
	".ttf", ".eot", ".mp4", ".mp3", ".pdf", ".zip", ".gz", ".tar",
	".lock", ".bin", ".exe", ".dll", ".so", ".dylib",
}

// secretMarkers are the marker rules that indicate credentials rather than
// mere classification labels.
var secretMarkers = []string{`API[_-]?KEY`, `PASSWORD`, `TOKEN`}

// TierCounts counts audited files per tier. Internal is a public-tier file
// under a path segment named internal or private.
type TierCounts struct {
	Public       int `json:"public"`
	Internal     int `json:"internal"`
	Confidential int `json:"confidential"`
	Personal     int `json:"personal"`
}

// Violation is one audit finding.
type Violation struct {
	File     string   `json:"file"`
	Tier     string   `json:"tier"`
	Issue    string   `json:"issue"`
	Markers  []string `json:"markers"`
	Severity string   `json:"severity"`
}

// Audit is the knowledge-auditor result.
type Audit struct {
	TotalFiles      int         `json:"totalFiles"`
	ScanRoot        string      `json:"scanRoot"`
	Source          string      `json:"source"`
	MaxDepth        int         `json:"maxDepth"`
	MaxFileSize     int         `json:"maxFileSize"`
	Tiers           TierCounts  `json:"tiers"`
	Violations      []Violation `json:"violations"`
	Recommendations []string    `json:"recommendations"`
	Unreadable      []string    `json:"unreadable,omitempty"`
}

type classified struct {
	rel     string
	tier    string
	markers marker.Result
}

func auditKnowledge(ctx context.Context, inv *runner.Invocation) (any, error) {
	if inv.Guard == nil {
		return nil, errors.New("knowledge-auditor requires a knowledge root")
	}
	dir := inv.Args.String("dir")
	if dir == "" {
		dir = inv.Guard.Root()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return nil, skillerr.New(skillerr.InvalidFilePath, "directory not found: "+root,
			skillerr.WithContext(map[string]any{"dir": root}))
	}

	sc := scanner.NewGitAware(root)
	files, source, err := sc.FilesFiltered(ctx, scanner.FilterOptions{ExcludeDirs: auditIgnoreDirs})
	if err != nil {
		return nil, err
	}

	res := Audit{
		ScanRoot:    root,
		Source:      string(source),
		MaxDepth:    auditMaxDepth,
		MaxFileSize: auditMaxFileSize,
		Violations:  []Violation{},
	}

	var items []classified
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !auditable(rel) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil || info.Size() > auditMaxFileSize {
			continue
		}
		res.TotalFiles++

		item := classified{rel: rel, tier: inv.Guard.DetectTier(abs).String()}
		if item.tier == tier.Public.String() && internalPath(rel) {
			item.tier = "internal"
		}
		countTier(&res.Tiers, item.tier)

		raw, err := os.ReadFile(abs)
		if err != nil {
			inv.Logger.Debug("unreadable file", zap.String("file", rel), zap.Error(err))
			res.Unreadable = append(res.Unreadable, rel)
			continue
		}
		item.markers = inv.Markers.Scan(string(raw))
		items = append(items, item)
	}

	res.Violations = violations(items)
	res.Recommendations = recommendations(res.Tiers, res.Violations)

	if len(res.Unreadable) > 0 {
		return res, runner.Partial(fmt.Errorf("%d file(s) could not be read", len(res.Unreadable)))
	}
	return res, nil
}

func auditable(rel string) bool {
	if strings.Count(rel, "/") > auditMaxDepth {
		return false
	}
	ext := strings.ToLower(filepath.Ext(rel))
	return !slices.Contains(binaryExtensions, ext)
}

func internalPath(rel string) bool {
	return strings.Contains(rel, "internal") || strings.Contains(rel, "private")
}

func countTier(c *TierCounts, t string) {
	switch t {
	case "personal":
		c.Personal++
	case "confidential":
		c.Confidential++
	case "internal":
		c.Internal++
	default:
		c.Public++
	}
}

func violations(items []classified) []Violation {
	out := []Violation{}
	for _, it := range items {
		if !it.markers.HasMarkers {
			continue
		}
		if it.tier == tier.Public.String() {
			out = append(out, Violation{
				File:     it.rel,
				Tier:     it.tier,
				Issue:    "Confidential markers found in public-tier file",
				Markers:  it.markers.Markers,
				Severity: "high",
			})
		}
		if it.tier != tier.Personal.String() && it.tier != tier.Confidential.String() && hasSecret(it.markers.Markers) {
			out = append(out, Violation{
				File:     it.rel,
				Tier:     it.tier,
				Issue:    "Potential secrets detected outside confidential/personal tier",
				Markers:  it.markers.Markers,
				Severity: "critical",
			})
		}
	}
	return out
}

func hasSecret(markers []string) bool {
	for _, m := range markers {
		if slices.Contains(secretMarkers, m) || strings.Contains(m, "Bearer") {
			return true
		}
	}
	return false
}

func recommendations(t TierCounts, vs []Violation) []string {
	out := []string{}
	if len(vs) > 0 {
		out = append(out, fmt.Sprintf("Review and remediate %d tier violation(s) immediately", len(vs)))
	}
	critical := 0
	for _, v := range vs {
		if v.Severity == "critical" {
			critical++
		}
	}
	if critical > 0 {
		out = append(out, fmt.Sprintf("URGENT: %d file(s) contain potential secrets in public/internal tiers", critical))
	}
	if t.Confidential == 0 && t.Personal == 0 {
		out = append(out, "No confidential or personal tier files found - verify tier structure is correct")
	}
	if t.Public > 0 && len(vs) == 0 {
		out = append(out, "All public-tier files are clean of confidential markers")
	}
	if t.Public+t.Internal+t.Confidential+t.Personal == 0 {
		out = append(out, "No scannable files found in the directory")
	}
	return out
}
