package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_mcp_build_info",
			Help: "Build information of the Oracle MCP server",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_mcp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_mcp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_mcp_auth_failures_total",
			Help: "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_mcp_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_mcp_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"tool_name"},
	)

	EstimateErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_mcp_estimate_errors_total",
			Help: "Total number of failed cost estimates by error kind",
		},
		[]string{"kind"},
	)

	EstimatedCost = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_mcp_estimated_cost",
			Help:    "Headline optimizer cost of estimated statements",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12), // 1 to ~4M
		},
	)

	PlanCleanupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_mcp_plan_cleanup_failures_total",
			Help: "Total number of failed PLAN_TABLE cleanups",
		},
	)

	DBRecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_mcp_db_recoveries_total",
			Help: "Total number of connection pool recoveries after a lost connection",
		},
		[]string{"status"},
	)
)
