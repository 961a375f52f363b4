package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igtracker/pkg/config"
	"igtracker/pkg/logger"
	"igtracker/pkg/models"
	"igtracker/pkg/runstate"
	"igtracker/pkg/store"
)

var seen = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cycle CycleFunc) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.RunAtomic(ctx, func(tx store.Tx) error {
		for _, a := range []models.TrackedAccount{
			{Identifier: "alice", FirstSeen: seen, LastSeen: seen, Active: true, Reciprocates: true},
			{Identifier: "bob", FirstSeen: seen, LastSeen: seen, Active: true},
			{Identifier: "carol", FirstSeen: seen, LastSeen: seen},
		} {
			if err := tx.UpsertAccount(ctx, a); err != nil {
				return err
			}
		}
		for i, kind := range []models.EventKind{models.EventNewFollow, models.EventNewFollow, models.EventUnfollow} {
			if _, err := tx.AppendHistory(ctx, models.HistoryEvent{
				Identifier: "carol", Kind: kind, OccurredAt: seen.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	runs, err := runstate.NewManager(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Instagram.Username = "me"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	return New(cfg, st, runs, cycle, logger.NewNopLogger()), st
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPages(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", "text/html", "Dashboard"},
		{"/history", "text/html", "History"},
		{"/health", "application/json", `"ok"`},
		{"/metrics", "text/plain", "igtracker_"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestSummaryAPI(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.Active)
	assert.Equal(t, 1, sum.Inactive)
	assert.Equal(t, 1, sum.Mutual)
	assert.Equal(t, 3, sum.Events)
}

func TestAccountsAPIFilters(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"alice", "bob", "carol"}},
		{"?active=true", []string{"alice", "bob"}},
		{"?active=true&reciprocates=false", []string{"bob"}},
		{"?active=false", []string{"carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, s, "/api/accounts"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var accounts []models.TrackedAccount
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
			var got []string
			for _, a := range accounts {
				got = append(got, a.Identifier)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/accounts?active=maybe").Code)
}

func TestHistoryAPI(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/api/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []models.HistoryEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, models.EventUnfollow, events[0].Kind)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/history?limit=-1").Code)
}

func TestStatusIncludesLastRun(t *testing.T) {
	s, _ := newTestServer(t, nil)
	run := s.runs.Begin("me")
	run.Finish(runstate.OutcomeSuccess, nil)
	require.NoError(t, s.runs.Save(run))

	rec := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CycleRunning bool          `json:"cycle_running"`
		LastRun      *runstate.Run `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.CycleRunning)
	require.NotNil(t, body.LastRun)
	assert.Equal(t, run.ID, body.LastRun.ID)
}

func TestCycleTrigger(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s, _ := newTestServer(t, func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})

	post := func() int {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, post())
	assert.Equal(t, http.StatusConflict, post())
	close(release)

	assert.Eventually(t, func() bool { return !s.CycleRunning() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCycleTriggerWithoutCycleFunc(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.cfg.Server.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunWaitsForCycleInFlight(t *testing.T) {
	var started, finished atomic.Bool
	s, _ := newTestServer(t, func(ctx context.Context) error {
		started.Store(true)
		<-ctx.Done()
		// simulate releasing the browser session
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})
	s.cfg.Server.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, finished.Load(), "cycle must finish before Run returns")
	assert.False(t, s.CycleRunning())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
