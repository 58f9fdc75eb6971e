// Package main is the entry point for the FlowSniper arbitrage bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/flowsniper/flowsniper/business/arbitrage"
	"github.com/flowsniper/flowsniper/business/blockchain"
	blockchainDI "github.com/flowsniper/flowsniper/business/blockchain/di"
	blockchainDomain "github.com/flowsniper/flowsniper/business/blockchain/domain"
	"github.com/flowsniper/flowsniper/business/custody"
	custodyApp "github.com/flowsniper/flowsniper/business/custody/app"
	custodyDI "github.com/flowsniper/flowsniper/business/custody/di"
	"github.com/flowsniper/flowsniper/business/engine"
	engineDI "github.com/flowsniper/flowsniper/business/engine/di"
	"github.com/flowsniper/flowsniper/business/execution"
	executionDI "github.com/flowsniper/flowsniper/business/execution/di"
	"github.com/flowsniper/flowsniper/business/market"
	"github.com/flowsniper/flowsniper/business/pricing"
	"github.com/flowsniper/flowsniper/internal/apm"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/control"
	"github.com/flowsniper/flowsniper/internal/health"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/metrics"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowsniper %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting FlowSniper",
		"version", version,
		"environment", cfg.App.Environment,
		"chain_id", cfg.Chain.ChainID,
		"demo_mode", cfg.Execution.DemoMode,
	)

	// Observability
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Application container
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // chain client, gas, tx sender
		&pricing.Module{},    // reference price oracle
		&market.Module{},     // on-chain quote aggregation
		&arbitrage.Module{},  // detection thresholds
		&custody.Module{},    // operator key, pairing, fund pulls
		&execution.Module{},  // swaps, transfers, consolidation
		&engine.Module{},     // scan scheduler
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	services := mono.Services()
	scheduler := engineDI.GetScheduler(services)
	flowLog := engineDI.GetFlowLog(services)
	executor := executionDI.GetTradeExecutor(services)
	custodyManager := custodyDI.GetCustodyManager(services)
	chain := blockchainDI.GetChainService(services)

	// Health endpoints
	healthServer := health.NewServer(8081, version)
	healthServer.RegisterCheck("chain", func(ctx context.Context) (bool, string) {
		state := chain.ConnectionState()
		return state == blockchainDomain.StateConnected, string(state)
	})
	healthServer.RegisterCheck("engine", func(ctx context.Context) (bool, string) {
		return true, string(scheduler.Snapshot().State)
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	}
	defer healthServer.Stop(context.Background())

	// Operator control surface
	controlServer := control.NewServer(
		control.Config{
			ListenAddr: cfg.Control.ListenAddr,
			AuthToken:  cfg.Control.AuthToken,
		},
		scheduler,
		flowLog,
		executor,
		custodian{custodyManager},
		mono.AssetRegistry(),
		log,
	)
	if err := controlServer.Start(); err != nil {
		return fmt.Errorf("failed to start control server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = controlServer.Stop(shutdownCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Liveness watchdog: restarts the engine after prolonged silence.
	watchdog := control.NewWatchdog(scheduler, cfg.Engine.WatchdogTimeout, log)
	g.Go(func() error {
		return watchdog.Run(gctx)
	})

	log.Info(ctx, "FlowSniper running",
		"control_addr", cfg.Control.ListenAddr,
		"operator", custodyManager.Operator().Hex(),
	)

	err = g.Wait()

	log.Info(context.Background(), "shutting down")
	if stopErr := scheduler.Stop(); stopErr != nil {
		log.Debug(context.Background(), "engine already stopped", "error", stopErr)
	}
	return err
}

// custodian adapts the custody manager to the control surface, which only
// needs pairing success or failure.
type custodian struct {
	manager *custodyApp.CustodyManager
}

func (c custodian) Operator() common.Address { return c.manager.Operator() }

func (c custodian) Owner() (common.Address, bool) { return c.manager.Owner() }

func (c custodian) Pair(ctx context.Context, owner common.Address, signature []byte) error {
	_, err := c.manager.Pair(ctx, owner, signature)
	return err
}
