package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"breachwatch/internal/feed"
	"breachwatch/internal/pacer"
	"breachwatch/internal/store"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeFeed serves scripted responses and records every call with the fake
// clock's time at which it happened.
type fakeFeed struct {
	mu sync.Mutex

	clock *pacer.FakeClock
	// latency is added to the clock inside every call.
	latency time.Duration

	catalog        []feed.Record
	catalogErr     error
	dataClasses    []string
	dataClassesErr error
	accounts       map[string][]feed.Record
	accountErrs    map[string]error
	pastes         map[string][]feed.Record
	pasteErrs      map[string]error

	calls []feedCall
}

type feedCall struct {
	endpoint string
	account  string
	at       time.Time
	done     time.Time
}

func newFakeFeed(clock *pacer.FakeClock) *fakeFeed {
	return &fakeFeed{
		clock:       clock,
		accounts:    map[string][]feed.Record{},
		accountErrs: map[string]error{},
		pastes:      map[string][]feed.Record{},
		pasteErrs:   map[string]error{},
	}
}

func (f *fakeFeed) record(endpoint, account string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := feedCall{endpoint: endpoint, account: account, at: f.clock.Now()}
	if f.latency > 0 {
		f.clock.Advance(f.latency)
	}
	call.done = f.clock.Now()
	f.calls = append(f.calls, call)
}

func (f *fakeFeed) Breaches(ctx context.Context) ([]feed.Record, error) {
	f.record(endpointBreaches, "")
	return f.catalog, f.catalogErr
}

func (f *fakeFeed) DataClasses(ctx context.Context) ([]string, error) {
	f.record(endpointDataClasses, "")
	return f.dataClasses, f.dataClassesErr
}

func (f *fakeFeed) BreachedAccount(ctx context.Context, account string) ([]feed.Record, error) {
	f.record(endpointBreachedAccount, account)
	if err := f.accountErrs[account]; err != nil {
		return nil, err
	}
	return f.accounts[account], nil
}

func (f *fakeFeed) PasteAccount(ctx context.Context, account string) ([]feed.Record, error) {
	f.record(endpointPasteAccount, account)
	if err := f.pasteErrs[account]; err != nil {
		return nil, err
	}
	return f.pastes[account], nil
}

func (f *fakeFeed) callsTo(endpoint string) []feedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []feedCall
	for _, c := range f.calls {
		if c.endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeFeed) allCalls() []feedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feedCall(nil), f.calls...)
}

func breachRecords(names ...string) []feed.Record {
	out := make([]feed.Record, 0, len(names))
	for _, name := range names {
		out = append(out, feed.Record{
			"Name":        name,
			"Title":       name,
			"Domain":      name + ".com",
			"BreachDate":  "2016-05-05",
			"PwnCount":    float64(1000),
			"DataClasses": []any{"Email addresses", "Passwords"},
			"IsVerified":  true,
			"IsSpamList":  false,
			"IsMalware":   false,
		})
	}
	return out
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type harness struct {
	store  *store.Store
	feed   *fakeFeed
	clock  *pacer.FakeClock
	syncer *Syncer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	clock := pacer.NewFakeClock(epoch)
	st := testStore(t)
	ff := newFakeFeed(clock)
	ff.catalog = breachRecords("Adobe", "LinkedIn", "Dropbox")
	ff.dataClasses = []string{"Email addresses", "Passwords", "Password hints"}
	return &harness{
		store:  st,
		feed:   ff,
		clock:  clock,
		syncer: New(st, ff, pacer.New(1500*time.Millisecond, clock), nil, nil, opts),
	}
}

func (h *harness) linkedBreachNames(t *testing.T, email string) []string {
	t.Helper()
	ctx := context.Background()
	identity, err := h.store.GetIdentityByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, identity)
	breaches, err := h.store.ListIdentityBreaches(ctx, identity.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(breaches))
	for _, b := range breaches {
		names = append(names, b.Name)
	}
	return names
}
