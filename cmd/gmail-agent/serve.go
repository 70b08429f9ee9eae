package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hal9000y/gmail-agent/internal/agent"
	"github.com/hal9000y/gmail-agent/internal/config"
	"github.com/hal9000y/gmail-agent/internal/gservice"
	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/logging"
	"github.com/hal9000y/gmail-agent/internal/server"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

const shutdownTimeout = 3 * time.Second

type serveFlags struct {
	httpAddr  string
	envFile   string
	logLevel  string
	logFormat string
	mcp       bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Endpoints:
  POST /agent    {"prompt": "...", "accessToken": "..."} -> {"response": "..."}
       /mcp      Gmail tools over MCP (Authorization: Bearer <token>)
  GET  /healthz  liveness
  GET  /readyz   readiness
  GET  /metrics  Prometheus metrics

Configuration is read from the environment (GEMINI_API_KEY, AGENT_MODEL,
AGENT_MODEL_BASE_URL, AGENT_CALL_TIMEOUT, AGENT_MAX_TOOL_ROUNDS,
AGENT_RATE_LIMIT, GMAIL_ENDPOINT), optionally loaded from --env-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.httpAddr, "http-addr", "localhost:8080", "HTTP server listen addr")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to env file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format: text, json")
	cmd.Flags().BoolVar(&f.mcp, "mcp", true, "Expose the Gmail tools over MCP at /mcp")

	return cmd
}

func runServe(ctx context.Context, f serveFlags) error {
	logger, err := logging.New(os.Stderr, f.logFormat, f.logLevel)
	if err != nil {
		return fmt.Errorf("logging.New failed: %w", err)
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(f.envFile)
	if err != nil {
		return fmt.Errorf("config.Load failed: %w", err)
	}

	app, err := newApp(cfg, f.mcp, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", f.httpAddr)
	if err != nil {
		return fmt.Errorf("net.Listen failed: %w", err)
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	stopHTTP, errHTTPCh := serveHTTP(srv, ln, logger)

	select {
	case err = <-errHTTPCh:
		logger.Error("http server failed", logging.Err(err))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	app.health.SetReady(false)
	stopHTTP()

	return err
}

type app struct {
	handler http.Handler
	health  *server.HealthChecker
}

// newApp wires the service. A missing API key is not fatal: /agent answers
// with a configuration error until the process is restarted with one.
func newApp(cfg config.Config, withMCP bool, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cfg.Validate failed: %w", err)
	}

	registry, err := tool.NewGmailRegistry(gservice.NewGmail(cfg.GmailEndpoint, nil), logger)
	if err != nil {
		return nil, fmt.Errorf("tool.NewGmailRegistry failed: %w", err)
	}

	var model agent.Model
	if cfg.ModelConfigured() {
		model = llm.NewClient(cfg.APIKey, cfg.ModelBaseURL, cfg.Model, nil)
	} else {
		logger.Warn("model access is not configured, /agent will fail", slog.String("env", config.EnvAPIKey))
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(promReg)

	a := agent.New(model, registry, agent.Config{
		MaxToolRounds: cfg.MaxToolRounds,
		CallTimeout:   cfg.CallTimeout,
	}, logger, agent.WithObserver(metrics))

	health := server.NewHealthChecker()

	opts := server.Options{
		Agent:     a,
		Metrics:   metrics,
		Gatherer:  promReg,
		Health:    health,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	}
	if withMCP {
		opts.Registry = registry
	}

	return &app{handler: server.NewHandler(opts), health: health}, nil
}

func serveHTTP(srv *http.Server, ln net.Listener, logger *slog.Logger) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		logger.Info("starting http server", slog.String("addr", ln.Addr().String()))

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errHTTPCh <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown failed", logging.Err(err))
		}

		<-errHTTPCh
		logger.Info("http server stopped")
	}, errHTTPCh
}
