// Package syncer keeps the local breach mirror in step with the feed.
//
// A run seeds reference data once (Bootstrap), optionally tops up the breach
// catalog (RefreshCatalog), then walks every identity and persists only the
// links the store does not already hold (ReconcileAll). Every feed request
// goes through a single Pacer and runs on the caller's goroutine; no store
// transaction is open while a request is in flight.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"breachwatch/internal/feed"
	"breachwatch/internal/metrics"
	"breachwatch/internal/pacer"
	"breachwatch/internal/roster"
	"breachwatch/internal/store"
)

// Feed is the subset of the feed client the engine depends on.
type Feed interface {
	Breaches(ctx context.Context) ([]feed.Record, error)
	DataClasses(ctx context.Context) ([]string, error)
	BreachedAccount(ctx context.Context, account string) ([]feed.Record, error)
	PasteAccount(ctx context.Context, account string) ([]feed.Record, error)
}

var _ Feed = (*feed.Client)(nil)

// Feed endpoint labels used in logs and metrics.
const (
	endpointBreaches        = "breaches"
	endpointDataClasses     = "dataclasses"
	endpointBreachedAccount = "breachedaccount"
	endpointPasteAccount    = "pasteaccount"
)

// Options toggles the optional parts of a run.
type Options struct {
	// Pastes enables the per-identity paste lookup after the breach lookup.
	Pastes bool
	// RefreshCatalog inserts newly published breaches before reconciling on
	// runs that did not bootstrap.
	RefreshCatalog bool
}

// Syncer runs bootstrap and reconciliation against one store and one feed.
type Syncer struct {
	store   store.MirrorStore
	feed    Feed
	pacer   *pacer.Pacer
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   pacer.Clock
	opts    Options
}

// New creates a Syncer. A nil pacer paces at pacer.DefaultInterval on the wall
// clock; nil metrics disables metric collection. Run durations are measured
// with the pacer's clock.
func New(st store.MirrorStore, f Feed, p *pacer.Pacer, m *metrics.Metrics, logger *slog.Logger, opts Options) *Syncer {
	if p == nil {
		p = pacer.New(pacer.DefaultInterval, nil)
	}
	if logger == nil {
		logger = slog.Default().With("component", "syncer")
	}
	return &Syncer{
		store:   st,
		feed:    f,
		pacer:   p,
		metrics: m,
		logger:  logger,
		clock:   p.Clock(),
		opts:    opts,
	}
}

// RunSummary reports what one full invocation did.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Bootstrap    BootstrapResult `json:"bootstrap"`
	CatalogAdded int             `json:"catalog_added"`
	Reconcile    ReconcileResult `json:"reconcile"`
	Duration     time.Duration   `json:"duration"`
}

// Run bootstraps the store if it holds no identities, refreshes the catalog
// when bootstrap did not run, then reconciles every identity. Store failures
// are collected and returned together once the run has gone as far as it can.
func (s *Syncer) Run(ctx context.Context, r roster.Roster) (RunSummary, error) {
	start := s.clock.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	logger := s.logger.With("run_id", summary.RunID)
	run := s.withLogger(logger)

	var errs []error

	boot, err := run.Bootstrap(ctx, r)
	summary.Bootstrap = boot
	if err != nil {
		if ctx.Err() != nil {
			return summary, err
		}
		errs = append(errs, err)
	}

	if !boot.Ran && s.opts.RefreshCatalog {
		added, err := run.RefreshCatalog(ctx)
		summary.CatalogAdded = added
		if err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			errs = append(errs, err)
		}
	}

	rec, err := run.ReconcileAll(ctx)
	summary.Reconcile = rec
	if err != nil {
		errs = append(errs, err)
	}

	summary.Duration = s.clock.Now().Sub(start)
	s.metrics.FinishRun(summary.Duration, s.clock.Now())
	waits, waited := s.pacer.Stats()
	logger.Info("sync run finished",
		"duration", summary.Duration,
		"bootstrapped", boot.Ran,
		"catalog_added", summary.CatalogAdded,
		"identities", rec.Identities,
		"skipped", rec.Skipped,
		"breach_links_added", rec.BreachLinksAdded,
		"paste_links_added", rec.PasteLinksAdded,
		"unresolved", rec.Unresolved,
		"paced_waits", waits,
		"paced_for", waited,
	)
	return summary, errors.Join(errs...)
}

func (s *Syncer) withLogger(logger *slog.Logger) *Syncer {
	clone := *s
	clone.logger = logger
	return &clone
}

// call paces, performs one feed request, and records its outcome. The pacing
// interval for the next request starts when this one returns. A context
// error from pacing is returned unwrapped so callers can stop the run.
func (s *Syncer) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	err := fn(ctx)
	s.pacer.Done()
	s.metrics.ObserveFeedRequest(endpoint, err)
	return err
}
