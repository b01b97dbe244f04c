package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"breachwatch/internal/config"
	"breachwatch/internal/format"
)

type globalFlags struct {
	json       bool
	output     string
	logLevel   string
	logFormat  string
	dbPath     string
	rosterPath string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "breachwatch",
		Short: "Breachwatch mirrors breach exposure for a roster of email addresses into SQLite",
		Long: `Breachwatch keeps a local SQLite mirror of which roster identities appear in
which known data breaches. Without a subcommand it performs a full run:
bootstrap on an empty database, catalog refresh, then reconciliation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := setupLogging(cmd.ErrOrStderr(), flags.logLevel, cfg.LogLevel, flags.logFormat)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			if flags.dbPath != "" {
				cfg.DBPath = flags.dbPath
			}
			if flags.rosterPath != "" {
				cfg.RosterPath = flags.rosterPath
			}
			name := flags.output
			if flags.json {
				name = "json"
			}
			f, err := format.ForName(name)
			if err != nil {
				return err
			}
			outputFormatter = f
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cfg, modeFull, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&flags.json, "json", false, "output JSON (shorthand for --output json)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "text", "output format: text, json, json-pretty, yaml")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format on stderr: text or json")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to the SQLite mirror (overrides db_path)")
	cmd.PersistentFlags().StringVar(&flags.rosterPath, "roster", "", "path to the roster file (overrides roster_path)")

	cmd.AddCommand(
		newRunCmd(cfg),
		newBootstrapCmd(cfg),
		newReconcileCmd(cfg),
		newMigrateCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
