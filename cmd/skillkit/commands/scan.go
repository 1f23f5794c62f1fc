// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bartekus/skillkit/cmd/skillkit/internal/clierr"
	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/skills"
	"github.com/bartekus/skillkit/internal/tier"
)

// ScanReport is the result of `skillkit scan`.
type ScanReport struct {
	Source   string               `json:"source"`
	Markers  marker.Result        `json:"markers"`
	HasPII   bool                 `json:"hasPII"`
	Findings map[string]int       `json:"findings"`
	Boundary *tier.BoundaryResult `json:"boundary,omitempty"`
}

// Clean reports whether nothing sensitive was found.
func (r ScanReport) Clean() bool {
	return !r.Markers.HasMarkers && !r.HasPII && (r.Boundary == nil || r.Boundary.Safe)
}

func newScanCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		fail   bool
	)
	cmd := &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Scan text for sensitivity markers, PII and sovereign tokens",
		Long: `Scan a file, or stdin when the argument is "-" or omitted, for
confidentiality markers and personal data. When guard.sovereign is enabled the
text is also checked against tokens harvested from the personal tier.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			content, err := readInput(cmd.InOrStdin(), source)
			if err != nil {
				return clierr.Wrap(1, "reading input", err)
			}

			hasPII, findings := skills.ScanPII(content)
			rep := ScanReport{
				Source:   source,
				Markers:  marker.Scan(content),
				HasPII:   hasPII,
				Findings: findings,
			}
			if a.cfg.Guard.Sovereign {
				g, err := tier.NewGuard(a.cfg.KnowledgeRoot)
				if err != nil {
					return err
				}
				tokens, err := g.HarvestTokens()
				if err != nil {
					a.log.Error("harvesting sovereign tokens", zap.Error(err))
					return clierr.Wrap(1, "sovereign token harvest incomplete, refusing to report", err)
				}
				res := tier.NewBoundary(tokens).Check(content)
				rep.Boundary = &res
			}

			if err := writeScan(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if fail && !rep.Clean() {
				return clierr.Reported(1, "sensitive content found in "+source)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit 1 when anything sensitive is found")
	return cmd
}

func readInput(stdin io.Reader, source string) (string, error) {
	var (
		raw []byte
		err error
	)
	if source == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(source)
	}
	return string(raw), err
}

func writeScan(w io.Writer, rep ScanReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	if rep.Clean() {
		_, err := fmt.Fprintf(w, "%s %s\n", successStyle.Render("clean"), rep.Source)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(rep.Source))
	if rep.Markers.HasMarkers {
		fmt.Fprintf(&b, "  %s %s\n", warningStyle.Render("markers:"), strings.Join(rep.Markers.Markers, ", "))
	}
	for _, p := range skills.PIIPatterns {
		if n := rep.Findings[p.Type]; n > 0 {
			fmt.Fprintf(&b, "  %s %s x%d\n", warningStyle.Render("pii:"), p.Type, n)
		}
	}
	if rep.Boundary != nil && !rep.Boundary.Safe {
		fmt.Fprintf(&b, "  %s %s\n", errorStyle.Render("sovereign:"), strings.Join(rep.Boundary.Detected, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
