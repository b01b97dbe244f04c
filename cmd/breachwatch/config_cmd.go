package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"breachwatch/internal/config"
)

// configEntry is one row of `config list`.
type configEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Env   string `json:"env,omitempty"`
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change breachwatch settings",
		Long: "Settings live in ~/.breachwatch.toml (or $BREACHWATCH_CONFIG_DIR/.breachwatch.toml).\n" +
			"A ./.breachwatch.toml is read only when BREACHWATCH_TRUST_PROJECT_CONFIG=true.\n" +
			"Environment variables override file values.\n\nKeys:\n" + keyHelp(),
	}

	cmd.AddCommand(newConfigListCmd(cfg))
	cmd.AddCommand(newConfigGetCmd(cfg))
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

// keyHelp renders the key table as an indented, aligned block.
func keyHelp() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, info := range config.Keys() {
		env := ""
		if info.Env != "" {
			env = "$" + info.Env
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", info.Key, info.Help, env)
	}
	tw.Flush()
	return b.String()
}

func newConfigListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make([]configEntry, 0, len(config.Keys()))
			for _, info := range config.Keys() {
				value, err := cfg.Get(info.Key)
				if err != nil {
					return err
				}
				entries = append(entries, configEntry{Key: info.Key, Value: value, Env: info.Env})
			}
			return writeConfigEntries(cmd.OutOrStdout(), entries)
		},
	}
}

func writeConfigEntries(w io.Writer, entries []configEntry) error {
	if ok, err := writeStructured(w, entries); ok {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Key, e.Value)
	}
	return tw.Flush()
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print the effective value of one key",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.AllowedKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key %q; run `breachwatch config list` for valid keys", key)
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writePlain(cmd.OutOrStdout(), "%s\n", value)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Write one key to a config file",
		Long:      "Write one key to ./.breachwatch.toml, or to the global file with --global.\nDurations accept Go syntax (1.5s) or plain seconds.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.AllowedKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			locate := config.ProjectPath
			if global {
				locate = config.GlobalPath
			}
			path, err := locate()
			if err != nil {
				return err
			}

			if err := config.SetKey(path, key, value); err != nil {
				return err
			}
			return writePlain(cmd.OutOrStdout(), "%s written to %s\n", key, path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to ~/.breachwatch.toml instead of ./.breachwatch.toml")
	return cmd
}
