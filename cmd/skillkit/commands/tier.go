// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/cmd/skillkit/internal/clierr"
	"github.com/bartekus/skillkit/internal/tier"
)

// TierDetection is one row of `skillkit tier detect --json`.
type TierDetection struct {
	Path string    `json:"path"`
	Tier tier.Tier `json:"tier"`
}

func newTierCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Classify paths and check tier data flow",
	}
	cmd.AddCommand(newTierDetectCmd(a))
	cmd.AddCommand(newTierCheckCmd(a))
	return cmd
}

func newTierDetectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect <path>...",
		Short: "Print the knowledge tier of each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := tier.NewGuard(a.cfg.KnowledgeRoot)
			if err != nil {
				return err
			}
			out := make([]TierDetection, 0, len(args))
			for _, p := range args {
				out = append(out, TierDetection{Path: p, Tier: g.DetectTier(p)})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, d := range out {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n",
					statusStyle(d.Tier.String()).Render(d.Tier.String()), d.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTierCheckCmd(a *app) *cobra.Command {
	var (
		asJSON     bool
		outputTier string
	)
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Check whether a knowledge file may flow into an output tier",
		Long: `Check whether the file at <path> may be injected into an output of
--output-tier. Exits 1 when the flow is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := tier.ParseTier(outputTier)
			if err != nil {
				return clierr.Wrap(1, "invalid --output-tier", err)
			}
			g, err := tier.NewGuard(a.cfg.KnowledgeRoot)
			if err != nil {
				return err
			}
			v := g.ValidateInjection(args[0], target)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(v); err != nil {
					return err
				}
			} else if v.Allowed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s-tier data may flow into %s-tier output\n",
					successStyle.Render("allowed"), v.SourceTier, v.OutputTier)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", errorStyle.Render("refused"), v.Reason)
			}

			if !v.Allowed {
				return clierr.Reported(1, v.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputTier, "output-tier", "t", string(tier.Public), "Tier of the output (public, confidential, personal)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
