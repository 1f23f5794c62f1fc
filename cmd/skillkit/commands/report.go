// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/internal/envelope"
	"github.com/bartekus/skillkit/internal/projection"
	"github.com/bartekus/skillkit/internal/runner"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		markdown string
	)
	cmd := &cobra.Command{
		Use:   "report [skill]",
		Short: "Show the last run, or the latest envelope of one skill",
		Long: `Show the last recorded run and the skills whose latest run failed.
With a skill name, print that skill's latest envelope instead.
Requires state.enabled so that runs are recorded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := runner.NewStateStore(a.cfg.State.Dir)
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				env, err := store.ReadEnvelope(args[0])
				if err != nil {
					return err
				}
				if env == nil {
					_, err := fmt.Fprintf(w, "No recorded run for %s.\n", args[0])
					return err
				}
				format := envelope.FormatHuman
				if asJSON {
					format = envelope.FormatJSON
				}
				return envelope.Write(w, *env, format, a.cfg.Color)
			}

			last, err := store.ReadLastRun()
			if err != nil {
				return err
			}
			if markdown != "" {
				if err := projection.AtomicWrite(markdown, []byte(lastRunMarkdown(last))); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(last)
			}
			if last == nil {
				_, err := fmt.Fprintln(w, "No run state found.")
				return err
			}

			_, _ = fmt.Fprintf(w, "Last run: %s %s\n", last.Skill, statusStyle(string(last.Status)).Render(string(last.Status)))
			if len(last.Failed) > 0 {
				_, _ = fmt.Fprintln(w, "Failed:")
				for _, f := range last.Failed {
					_, _ = fmt.Fprintf(w, "  - %s\n", f)
				}
			} else {
				_, _ = fmt.Fprintln(w, "All passed.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&markdown, "markdown", "", "Also write the last-run report as Markdown to this file")
	return cmd
}

func lastRunMarkdown(last *runner.LastRun) string {
	var b strings.Builder
	b.WriteString(projection.RenderHeader(1, "Skill Run Report"))
	if last == nil {
		b.WriteString("No run state found.\n")
		return b.String()
	}
	b.WriteString(projection.RenderTable(
		[]string{"Skill", "Status", "Exit Code", "Execution ID", "Timestamp"},
		[][]string{{last.Skill, string(last.Status), strconv.Itoa(last.ExitCode), last.ExecutionID, last.Timestamp}},
	))
	b.WriteString("\n")
	b.WriteString(projection.RenderHeader(2, "Failed Skills"))
	if len(last.Failed) == 0 {
		b.WriteString("None.\n")
	} else {
		b.WriteString(projection.RenderList(last.Failed))
	}
	return b.String()
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear recorded run state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := runner.NewStateStore(a.cfg.State.Dir)
			if err := store.Reset(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Dir())
			return err
		},
	}
}
