package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igtracker/pkg/collector"
	errs "igtracker/pkg/errors"
	"igtracker/pkg/logger"
	"igtracker/pkg/models"
	"igtracker/pkg/store"
)

var (
	day1 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
	day3 = day2.Add(24 * time.Hour)
)

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type stubChecker struct {
	follows map[string]bool
	fail    map[string]bool
	calls   []string
}

func (c *stubChecker) Check(ctx context.Context, identifier, self string) (bool, error) {
	c.calls = append(c.calls, identifier)
	if c.fail[identifier] {
		return false, errs.ReciprocityCheck(identifier, errors.New("dialog never opened"))
	}
	return c.follows[identifier], nil
}

func seedAccounts(t *testing.T, s store.Store, accounts ...models.TrackedAccount) {
	t.Helper()
	require.NoError(t, s.RunAtomic(context.Background(), func(tx store.Tx) error {
		for _, a := range accounts {
			if err := tx.UpsertAccount(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	}))
}

func history(t *testing.T, s store.Store) []models.HistoryEvent {
	t.Helper()
	events, err := s.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	return events
}

func account(t *testing.T, s store.Store, id string) *models.TrackedAccount {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a
}

func kinds(events []models.HistoryEvent) map[string]models.EventKind {
	out := make(map[string]models.EventKind, len(events))
	for _, e := range events {
		out[e.Identifier] = e.Kind
	}
	return out
}

func TestReconcileCreatesAccounts(t *testing.T) {
	s := testStore(t)
	r := New(s, &stubChecker{follows: map[string]bool{"alice": true}}, "me", logger.NewTestLogger())

	res, err := r.Reconcile(context.Background(), []string{"alice", "bob"}, day1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Mutual)
	assert.Len(t, res.Events, 2)
	for _, e := range res.Events {
		assert.Equal(t, models.EventNewFollow, e.Kind)
		assert.NotZero(t, e.ID)
	}

	alice := account(t, s, "alice")
	require.NotNil(t, alice)
	assert.True(t, alice.Active)
	assert.True(t, alice.Reciprocates)
	assert.Equal(t, day1, alice.FirstSeen)
	assert.Equal(t, day1, alice.LastSeen)
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := testStore(t)
	r := New(s, nil, "me", logger.NewTestLogger())
	snapshot := []string{"alice", "bob", "carol"}

	_, err := r.Reconcile(context.Background(), snapshot, day1)
	require.NoError(t, err)
	res, err := r.Reconcile(context.Background(), snapshot, day2)
	require.NoError(t, err)

	assert.Empty(t, res.Events)
	assert.Equal(t, 3, res.Unchanged)
	assert.Len(t, history(t, s), 3)

	alice := account(t, s, "alice")
	assert.Equal(t, day1, alice.FirstSeen)
	assert.Equal(t, day2, alice.LastSeen)
}

func TestReconcileTransitions(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s,
		models.TrackedAccount{Identifier: "a", FirstSeen: day1, LastSeen: day1, Active: true},
		models.TrackedAccount{Identifier: "b", FirstSeen: day1, LastSeen: day1, Active: false},
	)
	r := New(s, nil, "me", logger.NewTestLogger())

	res, err := r.Reconcile(context.Background(), []string{"a", "c"}, day2)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, map[string]models.EventKind{"c": models.EventNewFollow}, kinds(res.Events))
	assert.True(t, account(t, s, "a").Active)
	assert.False(t, account(t, s, "b").Active)
	assert.True(t, account(t, s, "c").Active)
	assert.Equal(t, day1, account(t, s, "b").LastSeen)
}

func TestReconcileEmitsUnfollowOnce(t *testing.T) {
	s := testStore(t)
	r := New(s, nil, "me", logger.NewTestLogger())
	ctx := context.Background()

	_, err := r.Reconcile(ctx, []string{"a", "b"}, day1)
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, []string{"a"}, day2)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.EventKind{"b": models.EventUnfollow}, kinds(res.Events))
	assert.Equal(t, 1, res.Deactivated)

	res, err = r.Reconcile(ctx, []string{"a"}, day3)
	require.NoError(t, err)
	assert.Empty(t, res.Events)

	b := account(t, s, "b")
	assert.False(t, b.Active)
	assert.Equal(t, day1, b.LastSeen)
}

func TestReconcileReappearance(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s, models.TrackedAccount{Identifier: "b", FirstSeen: day1, LastSeen: day1, Active: false, Reciprocates: true})
	r := New(s, nil, "me", logger.NewTestLogger())

	res, err := r.Reconcile(context.Background(), []string{"b"}, day2)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, models.EventNewFollow, res.Events[0].Kind)
	assert.Equal(t, 1, res.Reactivated)

	b := account(t, s, "b")
	assert.True(t, b.Active)
	assert.Equal(t, day1, b.FirstSeen)
	assert.Equal(t, day2, b.LastSeen)
	assert.True(t, b.Reciprocates, "flag survives when no checker runs")
}

func TestReconcileDeduplicatesSnapshot(t *testing.T) {
	s := testStore(t)
	r := New(s, nil, "me", logger.NewTestLogger())

	res, err := r.Reconcile(context.Background(), []string{"alice", "Alice", "alice", " "}, day1)
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, 1, res.Active)
}

func TestReconcileReciprocityFailureDegrades(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s, models.TrackedAccount{Identifier: "old", FirstSeen: day1, LastSeen: day1, Active: true, Reciprocates: true})
	checker := &stubChecker{fail: map[string]bool{"old": true, "new": true}}
	tl := logger.NewTestLogger()
	r := New(s, checker, "me", tl)

	res, err := r.Reconcile(context.Background(), []string{"old", "new"}, day2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ReciprocityFailures)
	assert.True(t, account(t, s, "old").Reciprocates, "existing value is kept")
	assert.False(t, account(t, s, "new").Reciprocates, "new accounts default to false")
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
}

func TestReconcileReciprocityUpdatesFlag(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s, models.TrackedAccount{Identifier: "old", FirstSeen: day1, LastSeen: day1, Active: true, Reciprocates: true})
	checker := &stubChecker{follows: map[string]bool{}}
	var progress []int
	r := New(s, checker, "me", logger.NewTestLogger())
	r.OnReciprocity = func(done, total int, id string) { progress = append(progress, done) }

	_, err := r.Reconcile(context.Background(), []string{"old"}, day2)
	require.NoError(t, err)
	assert.False(t, account(t, s, "old").Reciprocates)
	assert.Equal(t, []int{1}, progress)
	assert.Equal(t, []string{"old"}, checker.calls)
}

// failingStore fails AppendHistory after the given number of successful calls
type failingStore struct {
	store.Store
	after int
}

type failingTx struct {
	store.Tx
	remaining *int
}

func (f *failingStore) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) error {
	remaining := f.after
	return f.Store.RunAtomic(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, remaining: &remaining})
	})
}

func (t *failingTx) AppendHistory(ctx context.Context, e models.HistoryEvent) (int64, error) {
	if *t.remaining <= 0 {
		return 0, errors.New("disk I/O error")
	}
	*t.remaining--
	return t.Tx.AppendHistory(ctx, e)
}

func TestReconcilePersistenceFailureRollsBack(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s, models.TrackedAccount{Identifier: "a", FirstSeen: day1, LastSeen: day1, Active: true})
	r := New(&failingStore{Store: s, after: 1}, nil, "me", logger.NewTestLogger())

	res, err := r.Reconcile(context.Background(), []string{"b", "c"}, day2)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errs.ErrPersistence)

	assert.Empty(t, history(t, s))
	assert.Nil(t, account(t, s, "b"))
	a := account(t, s, "a")
	assert.True(t, a.Active)
	assert.Equal(t, day1, a.LastSeen)
}

// listSource reveals a fixed list in pages until it runs out
type listSource struct {
	all     []string
	page    int
	visible int
}

func (l *listSource) LoadMore(ctx context.Context) (int, error) {
	l.visible = min(l.visible+l.page, len(l.all))
	return l.visible, nil
}

func (l *listSource) ResetPosition(ctx context.Context) error { l.visible = 0; return nil }
func (l *listSource) JumpToEnd(ctx context.Context) error     { return nil }

func (l *listSource) ExtractIdentifiers(ctx context.Context) ([]string, error) {
	// overlapping renders repeat the last page
	out := append([]string{}, l.all[:l.visible]...)
	start := max(0, l.visible-l.page)
	return append(out, l.all[start:l.visible]...), nil
}

func users(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%03d", i)
	}
	return out
}

func fastCollector(src collector.PaginatedSource) *collector.Collector {
	opts := collector.DefaultOptions()
	opts.Pause, opts.SettleDelay, opts.ResetDelay, opts.PassDelay = 0, 0, 0, 0
	return collector.New(src, opts, logger.NewTestLogger())
}

func TestCollectAndReconcileAcceptedSnapshot(t *testing.T) {
	s := testStore(t)
	src := &listSource{all: users(95), page: 12}

	snap, err := fastCollector(src).Collect(context.Background(), 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, snap.Quality, 1e-9)

	res, err := New(s, nil, "me", logger.NewTestLogger()).Reconcile(context.Background(), snap.Identifiers(), day1)
	require.NoError(t, err)

	assert.Equal(t, 95, res.Created)
	assert.Len(t, history(t, s), 95)
	active, err := s.ListAccounts(context.Background(), store.AccountFilter{Active: store.Bool(true)})
	require.NoError(t, err)
	assert.Len(t, active, 95)
}

func TestCollectionFailureLeavesStoreUntouched(t *testing.T) {
	s := testStore(t)
	seedAccounts(t, s, models.TrackedAccount{Identifier: "user000", FirstSeen: day1, LastSeen: day1, Active: true})
	src := &listSource{all: users(40), page: 10}

	snap, err := fastCollector(src).Collect(context.Background(), 100)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errs.IsType(err, errs.ErrorTypeCollectionFailure))

	assert.Empty(t, history(t, s))
	accounts, err := s.ListAccounts(context.Background(), store.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, day1, accounts[0].LastSeen)
}
