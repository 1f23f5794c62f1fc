// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/internal/skills"
)

// SkillListItem is one row of `skillkit list --json`.
type SkillListItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Category    string `json:"category,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available skills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := skills.Manifests()
			items := []SkillListItem{}
			for _, name := range skills.Names() {
				m, err := src.Manifest(name)
				if err != nil {
					return err
				}
				items = append(items, SkillListItem{
					Name:        m.Name,
					Description: m.Description,
					Status:      m.Status,
					Category:    m.Category,
					Tier:        m.Tier,
				})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{it.Name, it.Category, it.Status, it.Description})
			}
			return renderTable(cmd.OutOrStdout(), []string{"SKILL", "CATEGORY", "STATUS", "DESCRIPTION"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
