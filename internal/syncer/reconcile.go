package syncer

import (
	"context"
	"errors"
	"fmt"

	"breachwatch/internal/feed"
	"breachwatch/internal/metrics"
	"breachwatch/internal/models"
)

// ErrUnresolvedReference marks a breach name reported for an identity that has
// no row in the local catalog. It is logged and the single link is skipped.
var ErrUnresolvedReference = errors.New("unresolved breach reference")

// IdentityState is the position of one identity in a reconciliation pass.
type IdentityState string

const (
	StatePending IdentityState = "pending"
	StateQueried IdentityState = "queried"
	StateDiffed  IdentityState = "diffed"
	StateLinked  IdentityState = "linked"
	StateSkipped IdentityState = "skipped"
)

// IdentityOutcome is the terminal result for one identity.
type IdentityOutcome struct {
	Email            string        `json:"email"`
	State            IdentityState `json:"state"`
	BreachLinksAdded int           `json:"breach_links_added"`
	PasteLinksAdded  int           `json:"paste_links_added"`
	PastesSkipped    bool          `json:"pastes_skipped,omitempty"`
	Unresolved       []string      `json:"unresolved,omitempty"`
	Err              error         `json:"-"`
}

// ReconcileResult aggregates a reconciliation pass.
type ReconcileResult struct {
	Identities       int               `json:"identities"`
	Linked           int               `json:"linked"`
	Skipped          int               `json:"skipped"`
	BreachLinksAdded int               `json:"breach_links_added"`
	PasteLinksAdded  int               `json:"paste_links_added"`
	Unresolved       int               `json:"unresolved"`
	Outcomes         []IdentityOutcome `json:"outcomes"`
}

// ReconcileAll walks every stored identity in id order, queries the feed for
// it, and persists the links the store does not hold yet. A feed failure
// skips that identity only. The pass stops early only when ctx is done.
func (s *Syncer) ReconcileAll(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return result, fmt.Errorf("list identities: %w", err)
	}
	result.Identities = len(identities)

	var errs []error
	for _, identity := range identities {
		outcome, err := s.reconcileIdentity(ctx, identity)
		if err != nil {
			// Only cancellation escapes reconcileIdentity.
			return result, err
		}

		result.Outcomes = append(result.Outcomes, outcome)
		result.BreachLinksAdded += outcome.BreachLinksAdded
		result.PasteLinksAdded += outcome.PasteLinksAdded
		result.Unresolved += len(outcome.Unresolved)
		switch outcome.State {
		case StateLinked:
			result.Linked++
		case StateSkipped:
			result.Skipped++
		}
		if outcome.Err != nil && !errors.Is(outcome.Err, feed.ErrUpstreamUnavailable) {
			errs = append(errs, fmt.Errorf("identity %s: %w", identity.Email, outcome.Err))
		}
		s.metrics.ObserveIdentity(string(outcome.State))
	}

	return result, errors.Join(errs...)
}

// reconcileIdentity drives one identity through
// pending -> queried -> diffed -> linked, or to skipped on any failure.
// The returned error is non-nil only when ctx is done.
func (s *Syncer) reconcileIdentity(ctx context.Context, identity models.Identity) (IdentityOutcome, error) {
	outcome := IdentityOutcome{Email: identity.Email, State: StatePending}
	logger := s.logger.With("identity", identity.Email)

	var records []feed.Record
	err := s.call(ctx, endpointBreachedAccount, func(ctx context.Context) error {
		var err error
		records, err = s.feed.BreachedAccount(ctx, identity.Email)
		return err
	})
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	if err != nil {
		logger.Warn("breach lookup failed; identity skipped", "err", err)
		return skip(outcome, err), nil
	}
	outcome.State = StateQueried

	wanted, unresolved, err := s.resolveBreaches(ctx, records)
	if err != nil {
		logger.Error("resolve breaches", "err", err)
		return skip(outcome, err), nil
	}
	for _, name := range unresolved {
		logger.Warn("breach not in local catalog; link skipped",
			"breach", name, "err", fmt.Errorf("%w: %q", ErrUnresolvedReference, name))
		s.metrics.IncrementUnresolved()
	}
	outcome.Unresolved = unresolved

	linked, err := s.store.ListIdentityBreachIDs(ctx, identity.ID)
	if err != nil {
		logger.Error("list existing links", "err", err)
		return skip(outcome, err), nil
	}
	missing := difference(wanted, linked)
	outcome.State = StateDiffed

	added, err := s.store.AddIdentityBreaches(ctx, identity.ID, missing)
	if err != nil {
		logger.Error("persist breach links", "err", err)
		return skip(outcome, err), nil
	}
	outcome.BreachLinksAdded = added
	outcome.State = StateLinked
	s.metrics.AddLinks(metrics.LinkBreach, added)
	if added > 0 {
		logger.Info("new breaches linked", "added", added)
	} else {
		logger.Debug("identity up to date")
	}

	if s.opts.Pastes {
		if err := s.reconcilePastes(ctx, identity, &outcome); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// reconcilePastes runs the paste lookup for an identity whose breach links are
// already committed. Its failures never change the identity's state.
func (s *Syncer) reconcilePastes(ctx context.Context, identity models.Identity, outcome *IdentityOutcome) error {
	logger := s.logger.With("identity", identity.Email)

	var records []feed.Record
	err := s.call(ctx, endpointPasteAccount, func(ctx context.Context) error {
		var err error
		records, err = s.feed.PasteAccount(ctx, identity.Email)
		return err
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logger.Warn("paste lookup failed; pastes skipped", "err", err)
		outcome.PastesSkipped = true
		return nil
	}

	existing, err := s.store.ListIdentityPastes(ctx, identity.ID)
	if err != nil {
		logger.Error("list existing pastes", "err", err)
		outcome.PastesSkipped = true
		outcome.Err = err
		return nil
	}
	known := make(map[models.PasteKey]struct{}, len(existing))
	for _, p := range existing {
		known[p.Key()] = struct{}{}
	}

	var missing []models.Paste
	for _, rec := range records {
		p, err := models.PasteFromRecord(rec)
		if err != nil {
			logger.Warn("skipping malformed paste", "err", err)
			continue
		}
		if _, ok := known[p.Key()]; ok {
			continue
		}
		known[p.Key()] = struct{}{}
		missing = append(missing, p)
	}

	res, err := s.store.AddIdentityPastes(ctx, identity.ID, missing)
	if err != nil {
		logger.Error("persist paste links", "err", err)
		outcome.PastesSkipped = true
		outcome.Err = err
		return nil
	}
	outcome.PasteLinksAdded = res.LinksAdded
	s.metrics.AddLinks(metrics.LinkPaste, res.LinksAdded)
	if res.LinksAdded > 0 {
		logger.Info("new pastes linked", "added", res.LinksAdded, "pastes_created", res.PastesCreated)
	}
	return nil
}

// resolveBreaches maps the names in records to catalog ids, keeping the feed's
// order and dropping repeats. Names with no catalog row are returned separately.
func (s *Syncer) resolveBreaches(ctx context.Context, records []feed.Record) ([]int64, []string, error) {
	var ids []int64
	var unresolved []string
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		name := models.BreachName(rec)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		b, err := s.store.GetBreachByName(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup breach %q: %w", name, err)
		}
		if b == nil {
			unresolved = append(unresolved, name)
			continue
		}
		ids = append(ids, b.ID)
	}
	return ids, unresolved, nil
}

// difference returns the ids in want that are not in have, in want's order.
func difference(want, have []int64) []int64 {
	existing := make(map[int64]struct{}, len(have))
	for _, id := range have {
		existing[id] = struct{}{}
	}
	var out []int64
	for _, id := range want {
		if _, ok := existing[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func skip(outcome IdentityOutcome, err error) IdentityOutcome {
	outcome.State = StateSkipped
	outcome.Err = err
	return outcome
}
