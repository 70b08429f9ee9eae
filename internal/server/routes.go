package server

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

// Options wires the HTTP surface.
type Options struct {
	Agent runner

	// Registry enables /mcp when not nil.
	Registry *tool.Registry

	// Metrics and Gatherer enable /metrics when both are set.
	Metrics  *Metrics
	Gatherer prometheus.Gatherer

	Health *HealthChecker

	// RateLimit is requests per second on /agent; 0 disables it.
	RateLimit float64

	Logger *slog.Logger
}

// NewHandler builds the service mux:
//
//	POST /agent    prompt in, answer out
//	     /mcp      the Gmail tools over MCP, bearer credential required
//	GET  /healthz  liveness
//	GET  /readyz   readiness
//	GET  /metrics  Prometheus
func NewHandler(o Options) http.Handler {
	mux := http.NewServeMux()

	var agentH http.Handler = NewAgentHandler(o.Agent, o.Logger)
	agentH = withRateLimit(o.RateLimit, agentH)
	mux.Handle("/agent", withMetrics(o.Metrics, "/agent", agentH))

	if o.Registry != nil {
		mcpServer := tool.NewServer(o.Registry)
		mcpHTTP := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpServer }, nil)
		mux.Handle("/mcp", withMetrics(o.Metrics, "/mcp", auth.NewHTTPHandler(mcpHTTP, o.Logger)))
	}

	health := o.Health
	if health == nil {
		health = NewHealthChecker()
	}
	mux.Handle("/healthz", health.LivenessHandler())
	mux.Handle("/readyz", health.ReadinessHandler())

	if o.Metrics != nil && o.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}

	return withRequestID(mux)
}
