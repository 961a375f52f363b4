package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposed(t *testing.T) {
	ObserveCycle(time.Now().Add(-time.Minute), "succeeded")
	ObservePass(PassAccepted, 0.95, 42)
	ObservePass(PassError, 0, 0)
	IncHistoryEvent("NEW_FOLLOW")
	IncReciprocityCheck(ReciprocityFailure)
	SetAccountGauges(95, 40)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"igtracker_cycles_total",
		"igtracker_cycle_duration_seconds",
		"igtracker_collection_passes_total",
		"igtracker_collection_pass_quality_ratio",
		"igtracker_collection_load_attempts",
		"igtracker_history_events_total",
		"igtracker_reciprocity_checks_total",
		"igtracker_active_accounts",
		"igtracker_mutual_accounts",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(HistoryEvents.WithLabelValues("UNFOLLOW"))
	IncHistoryEvent("UNFOLLOW")
	IncHistoryEvent("UNFOLLOW")
	assert.Equal(t, before+2, testutil.ToFloat64(HistoryEvents.WithLabelValues("UNFOLLOW")))

	SetAccountGauges(10, 3)
	assert.Equal(t, float64(10), testutil.ToFloat64(ActiveAccounts))
	assert.Equal(t, float64(3), testutil.ToFloat64(MutualAccounts))
}
