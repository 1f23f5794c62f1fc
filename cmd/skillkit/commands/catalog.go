// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/internal/envelope"
	"github.com/bartekus/skillkit/internal/skillerr"
)

func newErrorsCmd() *cobra.Command {
	var (
		asJSON bool
		family string
	)
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Print the error catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := []skillerr.Definition{}
			for _, d := range skillerr.Default().All() {
				if family == "" || skillerr.Family(d.Code) == family {
					defs = append(defs, d)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{d.Code, d.Name, d.Message, strconv.FormatBool(d.Retryable)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"CODE", "NAME", "MESSAGE", "RETRYABLE"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&family, "family", "", "Only show one family (resolution, validation, execution, pipeline, security)")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the result envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := envelope.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(raw, '\n'))
			return err
		},
	}
}
