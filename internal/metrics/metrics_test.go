package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposure(t *testing.T) {
	HarvestRuns.Inc()
	HarvestErrors.Inc()
	IncAccount(OutcomeRateLimited)
	AddInteractions("post", 2)
	IncAPIRetry("/v1/media/comments")
	IncPayloadSkipped("user_media")
	IncCommandRun("harvest")
	IncCommandError("harvest")
	ObserveHarvestDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"igharvest_harvest_runs_total",
		"igharvest_harvest_errors_total",
		"igharvest_harvest_duration_seconds",
		`igharvest_accounts_total{outcome="rate_limited"}`,
		`igharvest_interactions_total{type="post"}`,
		"igharvest_api_retries_total",
		`igharvest_payloads_skipped_total{endpoint="user_media"}`,
		`igharvest_command_runs_total{cmd="harvest"}`,
		"igharvest_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: %d", rec.Code)
	}
}

func TestStartServerDisabled(t *testing.T) {
	if srv := StartServer(""); srv != nil {
		t.Fatalf("expected no server for empty addr")
	}
}
