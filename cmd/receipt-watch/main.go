package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/receipt-parser/internal/app"
	"github.com/joseph-ayodele/receipt-parser/internal/async"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/metrics"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
	ingestsvc "github.com/joseph-ayodele/receipt-parser/internal/services/ingest"
)

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("receipt-watch")
	var (
		dirs        = fs.StringLong("dirs", "", "comma-separated directories to watch (required)")
		owner       = fs.StringLong("owner", "Local Watch", "owner the receipts are filed under")
		initialScan = fs.BoolLong("initial-scan", "process files already present at startup")
		debounce    = fs.DurationLong("debounce", 500*time.Millisecond, "quiet time before a changed file is picked up")
		metricsAddr = fs.StringLong("metrics-addr", cfg.MetricsAddr, "listen address for /metrics; empty disables it")
		grpcAddr    = fs.StringLong("grpc-addr", "", "listen address for the gRPC health service; empty disables it")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	roots := splitList(*dirs)
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Error: --dirs is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	parser, err := app.NewParser(cfg, logger, pipeline.WithObserver(m))
	if err != nil {
		logger.Error("failed to build parser", "error", err)
		os.Exit(1)
	}
	svc, err := app.OpenServices(ctx, cfg, parser, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	ownerRec, err := svc.Owners.GetOrCreateByName(ctx, *owner, cfg.Extract.DefaultCurrency)
	if err != nil {
		logger.Error("failed to get or create owner", "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(svc.Processor, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.Timeout),
		async.WithHooks(m),
		async.WithOnResult(func(job async.Job, res pipeline.ProcessResult, err error) {
			if err != nil {
				return
			}
			logger.Info("receipt stored",
				"file", job.File.OriginalFilename,
				"receipt_id", res.Receipt.ID,
				"vendor", res.Receipt.VendorName,
				"amount", res.Receipt.Amount.String(),
				"currency", res.Receipt.Currency)
		}),
	)

	intake := ingestsvc.NewService(svc.Ingestor, svc.Owners, queue, logger, ingestsvc.WithObserver(m))

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", "addr", *metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", *grpcAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer()
		healthServer = health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		go func() {
			logger.Info("gRPC health listening", "addr", *grpcAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
			}
		}()
	}

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: *initialScan,
		Debounce:    *debounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	logger.Info("watching for receipts", "dirs", roots, "owner_id", ownerRec.ID)

	for events != nil || errs != nil {
		select {
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if _, err := intake.IngestFile(ctx, ingestsvc.FileIngestRequest{
				OwnerID:        ownerRec.ID.String(),
				Path:           path,
				SkipDuplicates: true,
			}); err != nil {
				logger.Warn("failed to ingest file", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher reported an error", "error", err)
		}
	}

	logger.Info("shutting down")
	if healthServer != nil {
		healthServer.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.Timeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
