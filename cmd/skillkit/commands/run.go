// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/skillkit/cmd/skillkit/internal/clierr"
	"github.com/bartekus/skillkit/internal/runner"
	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/skills"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <skill> [skill args...]",
		Short: "Run a skill and print its result envelope",
		Long: `Run a built-in skill. Arguments after the skill name are parsed against
the skill's manifest; pass --help after the skill name for its usage.

The result is printed to stdout as a single envelope (JSON by default,
--format human for a readable summary). Exit code is 0 for success and
partial results, 1 for errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, argv := args[0], args[1:]

			w, cleanup, err := runner.FromConfig(a.cfg, runner.Setup{
				Builtin: skills.Manifests(),
				Stdout:  cmd.OutOrStdout(),
				Program: "skillkit run",
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			fn := unknownSkill
			if s, ok := skills.Lookup(name); ok {
				fn = s.Run
			}

			outcome := w.RunContext(cmd.Context(), name, argv, fn)
			if outcome.ExitCode != 0 {
				return clierr.Reported(outcome.ExitCode, fmt.Sprintf("skill %s failed", name))
			}
			return nil
		},
	}
	// Everything after the skill name belongs to the skill.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func unknownSkill(_ context.Context, inv *runner.Invocation) (any, error) {
	return nil, skillerr.New(skillerr.SkillNotFound, inv.Skill,
		skillerr.WithContext(map[string]any{"available": skills.Names()}))
}
