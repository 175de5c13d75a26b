package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GoSim-25-26J-441/converter-eval/internal/evald"
	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
)

func main() {
	var configPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "config/eval.yaml", "evaluator configuration file")
	flag.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.LoadEvalConfig(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.SetDefault(logger.FromConfig(cfg.Logging, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	recorder, err := evald.OpenRecorder(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open evaluation store", "driver", cfg.Storage.Driver, "error", err)
		stop()
		os.Exit(1)
	}
	if recorder == nil {
		logger.Warn("evaluation records disabled; set storage.driver to sqlite to serve records from in-process evaluators")
	} else {
		defer recorder.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	opts := scoring.Options{
		PenaltyFactor:   cfg.Scoring.PenaltyFactor,
		ZeroTargetError: cfg.Scoring.ZeroTargetError,
	}

	// TODO: Configure gRPC server security (TLS, authentication) before
	// exposing the scoring service outside a trusted network.
	grpcServer, healthServer := evald.NewGRPCServer(opts, collector)

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           evald.NewHTTPServer(recorder, collector, opts).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
