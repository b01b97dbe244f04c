package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"breachwatch/internal/config"
	"breachwatch/internal/feed"
	"breachwatch/internal/metrics"
	"breachwatch/internal/pacer"
	"breachwatch/internal/roster"
	"breachwatch/internal/store"
	"breachwatch/internal/syncer"
)

type syncMode int

const (
	modeFull syncMode = iota
	modeBootstrap
	modeReconcile
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Bootstrap if needed, refresh the catalog, and reconcile every identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cfg, modeFull, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newBootstrapCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed identities, the breach catalog and data classes into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cfg, modeBootstrap, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newReconcileCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Query the feed for every stored identity and link new breaches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cfg, modeReconcile, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newSyncer(cfg *config.Config, st *store.Store, m *metrics.Metrics) *syncer.Syncer {
	client := feed.NewClient(feed.Options{
		BaseURL:   cfg.Feed.BaseURL,
		UserAgent: cfg.Feed.UserAgent,
		APIKey:    cfg.Feed.APIKey,
		Timeout:   cfg.Feed.Timeout,
		Logger:    slog.Default().With("component", "feed"),
	})
	return syncer.New(
		st,
		client,
		pacer.New(cfg.Sync.MinInterval, pacer.SystemClock()),
		m,
		slog.Default().With("component", "syncer"),
		syncer.Options{
			Pastes:         cfg.Sync.Pastes,
			RefreshCatalog: cfg.Sync.RefreshCatalog,
		},
	)
}

func runSync(ctx context.Context, cfg *config.Config, mode syncMode, out, errOut io.Writer) error {
	if cfg.Feed.APIKey == "" {
		slog.Warn("no feed API key configured; account lookups will be rejected upstream",
			"hint", "set BREACHWATCH_API_KEY or feed.api_key")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	s := newSyncer(cfg, st, m)

	var payload any
	var runErr error
	var hints []string
	switch mode {
	case modeBootstrap:
		r, err := roster.Load(cfg.RosterPath)
		if err != nil {
			return err
		}
		res, err := s.Bootstrap(ctx, r)
		payload, runErr = res, err
	case modeReconcile:
		res, err := s.ReconcileAll(ctx)
		payload, runErr = res, err
		hints = skipHints(res)
	default:
		r, err := roster.Load(cfg.RosterPath)
		if err != nil {
			return err
		}
		res, err := s.Run(ctx, r)
		payload, runErr = res, err
		hints = skipHints(res.Reconcile)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Warn("write metrics textfile", "path", cfg.Metrics.Textfile, "err", err)
		}
	}

	if err := writeResult(out, payload); err != nil {
		return err
	}
	for _, line := range hints {
		fmt.Fprintln(errOut, line)
	}
	return runErr
}
