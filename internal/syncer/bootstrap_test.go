package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"breachwatch/internal/feed"
	"breachwatch/internal/roster"
)

func TestBootstrapSeedsReferenceData(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	res, err := h.syncer.Bootstrap(ctx, roster.Roster{"a@x.com", "b@x.com"})
	require.NoError(t, err)
	require.True(t, res.Ran)
	require.Equal(t, 2, res.Identities)
	require.Equal(t, 3, res.Breaches)
	require.Equal(t, 3, res.DataClasses)
	require.Empty(t, res.Skipped)

	identities, err := h.store.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, identities, 2)
	require.Equal(t, "a@x.com", identities[0].Email)
	require.Equal(t, "b@x.com", identities[1].Email)

	adobe, err := h.store.GetBreachByName(ctx, "Adobe")
	require.NoError(t, err)
	require.NotNil(t, adobe)
	require.Equal(t, "Adobe.com", adobe.Domain)
	require.Equal(t, int64(1000), adobe.PwnCount)
	require.True(t, adobe.IsVerified)
	require.Equal(t, []string{"Email addresses", "Passwords"}, adobe.DataClasses)

	classes, err := h.store.ListDataClasses(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 3)
}

func TestBootstrapTwiceIsNoop(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	r := roster.Roster{"a@x.com", "b@x.com"}

	_, err := h.syncer.Bootstrap(ctx, r)
	require.NoError(t, err)
	callsAfterFirst := len(h.feed.allCalls())

	res, err := h.syncer.Bootstrap(ctx, roster.Roster{"a@x.com", "b@x.com", "c@x.com"})
	require.NoError(t, err)
	require.False(t, res.Ran)
	require.Zero(t, res.Identities+res.Breaches+res.DataClasses)
	require.Len(t, h.feed.allCalls(), callsAfterFirst, "guarded bootstrap must not call the feed")

	count, err := h.store.CountIdentities(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestBootstrapSkipsBlankRosterEntries(t *testing.T) {
	h := newHarness(t, Options{})

	res, err := h.syncer.Bootstrap(context.Background(), roster.Roster{"a@x.com", "", "   ", "b@x.com"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Identities)
}

func TestBootstrapCatalogFailureKeepsOtherBatches(t *testing.T) {
	h := newHarness(t, Options{})
	h.feed.catalogErr = fmt.Errorf("%w: connection refused", feed.ErrUpstreamUnavailable)
	ctx := context.Background()

	res, err := h.syncer.Bootstrap(ctx, roster.Roster{"a@x.com"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Identities)
	require.Zero(t, res.Breaches)
	require.Equal(t, 3, res.DataClasses)
	require.Equal(t, []string{"breaches"}, res.Skipped)

	count, err := h.store.CountBreaches(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestBootstrapDataClassFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{})
	h.feed.dataClassesErr = &feed.APIError{Status: 503, Endpoint: "/dataclasses"}

	res, err := h.syncer.Bootstrap(context.Background(), roster.Roster{"a@x.com"})
	require.NoError(t, err)
	require.Equal(t, 3, res.Breaches)
	require.Zero(t, res.DataClasses)
	require.Equal(t, []string{"data_classes"}, res.Skipped)
}

func TestBootstrapEmptyRoster(t *testing.T) {
	h := newHarness(t, Options{})

	res, err := h.syncer.Bootstrap(context.Background(), roster.Roster{})
	require.NoError(t, err)
	require.True(t, res.Ran)
	require.Zero(t, res.Identities)
	require.Equal(t, 3, res.Breaches)
}

func TestBootstrapSkipsMalformedCatalogEntries(t *testing.T) {
	h := newHarness(t, Options{})
	h.feed.catalog = append(breachRecords("Adobe"), feed.Record{"Title": "no name"}, feed.Record{"Name": "Bad", "PwnCount": "lots"})

	res, err := h.syncer.Bootstrap(context.Background(), roster.Roster{"a@x.com"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Breaches)
}

func TestBootstrapPacesFeedCalls(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.syncer.Bootstrap(context.Background(), roster.Roster{"a@x.com"})
	require.NoError(t, err)

	calls := h.feed.allCalls()
	require.Len(t, calls, 2)
	require.GreaterOrEqual(t, calls[1].at.Sub(calls[0].at), h.syncer.pacer.Interval())
}

func TestRefreshCatalogAddsOnlyNewBreaches(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	_, err := h.syncer.Bootstrap(ctx, roster.Roster{"a@x.com"})
	require.NoError(t, err)

	h.feed.catalog = breachRecords("Adobe", "LinkedIn", "Dropbox", "Canva")
	added, err := h.syncer.RefreshCatalog(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	h.feed.catalogErr = &feed.APIError{Status: 500, Endpoint: "/breaches"}
	added, err = h.syncer.RefreshCatalog(ctx)
	require.NoError(t, err)
	require.Zero(t, added)
}
