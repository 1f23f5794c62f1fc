// SPDX-License-Identifier: AGPL-3.0-or-later

package tier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern picks identifier-like runs long enough to be keys, ids or
// distinctive names.
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9\-_]{20,}`)

// HarvestTokens collects the unique tokens found in every regular file under
// the personal and confidential directories. Symlinks are followed to their
// targets. Missing directories are skipped. Unreadable entries do not stop the
// walk: the tokens gathered so far are returned together with the joined
// errors, and callers must treat a non-nil error as an incomplete harvest.
func (g *Guard) HarvestTokens() ([]string, error) {
	seen := map[string]struct{}{}
	var errs []error
	for _, r := range g.rules {
		err := filepath.WalkDir(r.Dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && p == r.Dir {
					return filepath.SkipDir
				}
				errs = append(errs, fmt.Errorf("harvesting %s tier tokens: %w", r.Tier, err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !harvestable(p, d, r.Tier, &errs) {
				return nil
			}
			data, err := os.ReadFile(p) //nolint:gosec // walking the configured knowledge root
			if err != nil {
				errs = append(errs, fmt.Errorf("harvesting %s tier tokens: reading %s: %w", r.Tier, p, err))
				return nil
			}
			for _, tok := range tokenPattern.FindAllString(string(data), -1) {
				seen[tok] = struct{}{}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("harvesting %s tier tokens: %w", r.Tier, err))
		}
	}

	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens, errors.Join(errs...)
}

// harvestable reports whether the walked entry is a regular file, following
// symlinks. A dangling link is recorded in errs.
func harvestable(p string, d fs.DirEntry, t Tier, errs *[]error) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	st, err := os.Stat(p)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("harvesting %s tier tokens: resolving %s: %w", t, p, err))
		return false
	}
	return st.Mode().IsRegular()
}

// Boundary detects verbatim sovereign tokens in rendered output.
type Boundary struct {
	tokens []string
}

// NewBoundary returns a boundary over the given tokens.
func NewBoundary(tokens []string) *Boundary {
	return &Boundary{tokens: tokens}
}

// Len returns the number of guarded tokens.
func (b *Boundary) Len() int { return len(b.tokens) }

// BoundaryResult reports leaked tokens by a short prefix only.
type BoundaryResult struct {
	Safe     bool     `json:"safe"`
	Detected []string `json:"detected"`
}

// Check scans content for any guarded token.
func (b *Boundary) Check(content string) BoundaryResult {
	detected := []string{}
	for _, tok := range b.tokens {
		if strings.Contains(content, tok) {
			detected = append(detected, redact(tok))
		}
	}
	return BoundaryResult{Safe: len(detected) == 0, Detected: detected}
}

func redact(tok string) string {
	if len(tok) <= 4 {
		return "..."
	}
	return tok[:4] + "..."
}
