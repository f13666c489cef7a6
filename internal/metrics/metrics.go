package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Account outcomes of one harvest run.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

var (
	HarvestRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "igharvest_harvest_runs_total",
		Help: "Total harvest runs",
	})
	HarvestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "igharvest_harvest_errors_total",
		Help: "Total harvest error entries (failed accounts and configuration problems)",
	})
	HarvestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "igharvest_harvest_duration_seconds",
		Help:    "Harvest duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	Accounts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_accounts_total",
		Help: "Harvested accounts by outcome",
	}, []string{"outcome"})
	Interactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_interactions_total",
		Help: "Normalized interactions by type",
	}, []string{"type"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	PayloadsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_payloads_skipped_total",
		Help: "API entities dropped because they did not decode",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"cmd"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igharvest_command_errors_total",
		Help: "CLI command failures",
	}, []string{"cmd"})
)

func init() {
	prometheus.MustRegister(HarvestRuns, HarvestErrors, HarvestDuration, Accounts, Interactions, APIRetries, PayloadsSkipped, CommandRuns, CommandErrors)
}

// Handler returns the mux served by StartServer.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090"). An empty addr disables it.
func StartServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// ObserveHarvestDuration records a run duration
func ObserveHarvestDuration(start time.Time) {
	HarvestDuration.Observe(time.Since(start).Seconds())
}

func IncAccount(outcome string)       { Accounts.WithLabelValues(outcome).Inc() }
func AddInteractions(typ string, n int) { Interactions.WithLabelValues(typ).Add(float64(n)) }

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncPayloadSkipped(endpoint string) { PayloadsSkipped.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
