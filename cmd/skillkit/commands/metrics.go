// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/internal/metrics"
)

// MetricsReport is the `skillkit metrics --json` document.
type MetricsReport struct {
	File        string               `json:"file"`
	Entries     int                  `json:"entries"`
	Skills      []metrics.Summary    `json:"skills"`
	Regressions []metrics.Regression `json:"regressions,omitempty"`
}

func newMetricsCmd(a *app) *cobra.Command {
	var (
		asJSON      bool
		regressions bool
		multiplier  float64
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarise recorded skill executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := metrics.NewCollector(metrics.Options{Dir: a.cfg.Metrics.Dir, Logger: a.log})
			entries, err := c.LoadHistory()
			if err != nil {
				return err
			}
			rep := MetricsReport{
				File:    c.Path(),
				Entries: len(entries),
				Skills:  metrics.Summarize(entries),
			}
			if regressions {
				rep.Regressions = metrics.DetectRegressions(entries, multiplier)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			if len(rep.Skills) == 0 {
				_, err := fmt.Fprintf(w, "%s\n", mutedStyle.Render("no executions recorded in "+rep.File))
				return err
			}
			rows := make([][]string, 0, len(rep.Skills))
			for _, s := range rep.Skills {
				rows = append(rows, []string{
					s.Skill,
					strconv.Itoa(s.Executions),
					fmt.Sprintf("%.1f%%", s.ErrorRate),
					strconv.FormatInt(s.AvgMS, 10),
					strconv.FormatInt(s.MinMS, 10),
					strconv.FormatInt(s.MaxMS, 10),
					fmt.Sprintf("%.2f", s.PeakRSSMB),
					s.LastRun,
				})
			}
			if err := renderTable(w, []string{"SKILL", "RUNS", "ERRORS", "AVG MS", "MIN MS", "MAX MS", "PEAK RSS MB", "LAST RUN"}, rows); err != nil {
				return err
			}
			for _, r := range rep.Regressions {
				_, _ = fmt.Fprintf(w, "%s %s: %dms vs %dms average (x%.1f)\n",
					statusStyle("regression").Render("regression"),
					r.Skill, r.LastDuration, r.HistoricalAvg, r.IncreaseRate)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&regressions, "regressions", false, "Flag skills whose last run is slower than their history")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 1.5, "Slowdown factor that counts as a regression")
	return cmd
}
