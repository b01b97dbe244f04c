package syncer

import (
	"context"
	"errors"
	"fmt"

	"breachwatch/internal/metrics"
	"breachwatch/internal/models"
	"breachwatch/internal/roster"
)

// BootstrapResult reports what Bootstrap inserted.
type BootstrapResult struct {
	Ran         bool     `json:"ran"`
	Identities  int      `json:"identities"`
	Breaches    int      `json:"breaches"`
	DataClasses int      `json:"data_classes"`
	Skipped     []string `json:"skipped,omitempty"`
}

// Bootstrap seeds identities from the roster, the breach catalog, and the
// data-class taxonomy. It does nothing when the store already holds at least
// one identity.
//
// The three batches commit independently: a feed failure empties its own batch
// and a store failure rolls back only its own batch, never one committed
// before it. Store failures are returned joined after all batches were tried.
func (s *Syncer) Bootstrap(ctx context.Context, r roster.Roster) (BootstrapResult, error) {
	var result BootstrapResult

	count, err := s.store.CountIdentities(ctx)
	if err != nil {
		return result, fmt.Errorf("count identities: %w", err)
	}
	if count > 0 {
		s.logger.Debug("bootstrap not needed", "identities", count)
		return result, nil
	}

	result.Ran = true
	s.logger.Info("bootstrapping reference data", "roster_size", len(r))
	if len(r) == 0 {
		s.logger.Warn("roster is empty; no identities will be monitored")
	}

	var errs []error

	n, err := s.store.InsertIdentities(ctx, r)
	if err != nil {
		errs = append(errs, fmt.Errorf("insert identities: %w", err))
	}
	result.Identities = n
	s.metrics.AddBootstrapRows(metrics.TableIdentities, n)

	var records []map[string]any
	err = s.call(ctx, endpointBreaches, func(ctx context.Context) error {
		var err error
		records, err = s.feed.Breaches(ctx)
		return err
	})
	switch {
	case ctx.Err() != nil:
		return result, ctx.Err()
	case err != nil:
		s.logger.Warn("breach catalog unavailable; skipping batch", "err", err)
		result.Skipped = append(result.Skipped, "breaches")
	default:
		n, err := s.store.InsertBreaches(ctx, s.breachesFromRecords(records))
		if err != nil {
			errs = append(errs, fmt.Errorf("insert breaches: %w", err))
		}
		result.Breaches = n
		s.metrics.AddBootstrapRows(metrics.TableBreaches, n)
	}

	var names []string
	err = s.call(ctx, endpointDataClasses, func(ctx context.Context) error {
		var err error
		names, err = s.feed.DataClasses(ctx)
		return err
	})
	switch {
	case ctx.Err() != nil:
		return result, ctx.Err()
	case err != nil:
		s.logger.Warn("data class taxonomy unavailable; skipping batch", "err", err)
		result.Skipped = append(result.Skipped, "data_classes")
	default:
		n, err := s.store.InsertDataClasses(ctx, names)
		if err != nil {
			errs = append(errs, fmt.Errorf("insert data classes: %w", err))
		}
		result.DataClasses = n
		s.metrics.AddBootstrapRows(metrics.TableDataClasses, n)
	}

	s.logger.Info("bootstrap finished",
		"identities", result.Identities,
		"breaches", result.Breaches,
		"data_classes", result.DataClasses,
		"skipped", result.Skipped,
	)
	return result, errors.Join(errs...)
}

// RefreshCatalog inserts catalog entries the store has not seen yet. An
// unavailable feed is logged and reported as zero additions.
func (s *Syncer) RefreshCatalog(ctx context.Context) (int, error) {
	var records []map[string]any
	err := s.call(ctx, endpointBreaches, func(ctx context.Context) error {
		var err error
		records, err = s.feed.Breaches(ctx)
		return err
	})
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		s.logger.Warn("breach catalog unavailable; catalog refresh skipped", "err", err)
		return 0, nil
	}

	n, err := s.store.InsertBreaches(ctx, s.breachesFromRecords(records))
	if err != nil {
		return 0, fmt.Errorf("refresh catalog: %w", err)
	}
	if n > 0 {
		s.logger.Info("catalog refreshed", "added", n)
	}
	return n, nil
}

func (s *Syncer) breachesFromRecords(records []map[string]any) []models.Breach {
	out := make([]models.Breach, 0, len(records))
	for _, rec := range records {
		b, err := models.BreachFromRecord(rec)
		if err != nil {
			s.logger.Warn("skipping malformed catalog entry", "err", err)
			continue
		}
		out = append(out, b)
	}
	return out
}
