// SPDX-License-Identifier: AGPL-3.0-or-later

/*
skillkit - runs knowledge-work skills behind one output contract and guards
data flow between the public, confidential and personal knowledge tiers.

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/config"
	"github.com/bartekus/skillkit/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	stderr     bool

	cfg *config.Config
	log *zap.Logger
}

// load reads configuration and builds the logger. It runs once per process
// from the root's PersistentPreRunE.
func (a *app) load() error {
	used, err := config.ReadFile(a.v, a.configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Path:   cfg.Log.Path,
		Stderr: a.stderr,
		Debug:  cfg.Log.Debug,
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	if used != "" {
		log.Debug("using config file", zap.String("path", used))
	}
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// NewRootCmd constructs the skillkit root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("SKILLKIT_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:           "skillkit",
		Short:         "skillkit - skill execution and knowledge-tier governance",
		Long:          "skillkit runs skills behind a uniform JSON envelope and enforces knowledge-tier data flow rules.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is ./skillkit.yaml or ./configs/skillkit.yaml)")
	pf.String("knowledge-root", "knowledge", "knowledge directory containing personal/ and confidential/")
	pf.String("log-level", "WARN", "log level: DEBUG, INFO, WARN, ERROR")
	pf.String("log-path", "", "directory for rotated log files (default: stderr)")
	pf.BoolVarP(&a.stderr, "stderr", "e", false, "log to stderr even when --log-path is set")
	pf.Bool("debug", false, "enable debug logging")

	_ = a.v.BindPFlag("knowledge_root", pf.Lookup("knowledge-root"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.path", pf.Lookup("log-path"))
	_ = a.v.BindPFlag("log.debug", pf.Lookup("debug"))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of skillkit",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "skillkit version %s\n", version)
		},
	})

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newTierCmd(a))
	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newErrorsCmd())
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newMetricsCmd(a))
	cmd.AddCommand(newReportCmd(a))
	cmd.AddCommand(newResetCmd(a))

	return cmd
}
