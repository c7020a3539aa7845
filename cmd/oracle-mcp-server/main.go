package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/oracle-mcp/internal/config"
	"github.com/malbeclabs/oracle-mcp/internal/explain"
	"github.com/malbeclabs/oracle-mcp/internal/logger"
	"github.com/malbeclabs/oracle-mcp/internal/metrics"
	"github.com/malbeclabs/oracle-mcp/internal/oracle"
	"github.com/malbeclabs/oracle-mcp/internal/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultMetricsAddr = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Environment (and .env) provides the defaults; flags override them.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	transportFlag := flag.String("transport", cfg.Transport, "MCP transport (stdio, http)")
	listenAddrFlag := flag.String("listen-addr", cfg.ListenAddr, "HTTP server listen address when --transport=http")
	toolTimeoutFlag := flag.Duration("tool-timeout", cfg.ToolTimeout, "maximum duration of a single tool call")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (disabled when empty)")
	enablePprofFlag := flag.Bool("enable-pprof", false, "enable pprof server")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("oracle-mcp-server %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg.Transport = *transportFlag
	cfg.ListenAddr = *listenAddrFlag
	cfg.ToolTimeout = *toolTimeoutFlag
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.New(os.Stderr, *verboseFlag)

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	db, err := oracle.NewDB(ctx, oracle.Config{
		Logger:   log,
		Username: cfg.Username,
		Password: cfg.Password,
		DSN:      cfg.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	estimator, err := explain.New(explain.Config{
		Logger:        log,
		CostThreshold: cfg.CostThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to create estimator: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		Clock:           clockwork.NewRealClock(),
		DB:              db,
		Estimator:       estimator,
		Version:         version,
		Transport:       cfg.Transport,
		ListenAddr:      cfg.ListenAddr,
		AllowedTokens:   cfg.AllowedTokens,
		ToolTimeout:     cfg.ToolTimeout,
		QueryLimit:      cfg.QueryLimit,
		WhitelistTables: cfg.WhitelistTables,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return <-serverErrCh
	case err := <-serverErrCh:
		return err
	case err := <-metricsServerErrCh:
		return err
	}
}
