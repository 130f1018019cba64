package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/sia/internal/auth"
	"example.com/sia/internal/config"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/events"
	"example.com/sia/internal/logger"
	"example.com/sia/internal/testsupport"
	httptransport "example.com/sia/internal/transport/http"
)

func main() {
	os.Exit(run())
}

func run() int {
	seed := flag.Bool("seed", false, "create an activity and a profile for SIA_USER_ID on startup")
	consume := flag.Bool("consume-events", false, "log progress events read back from SIA_KAFKA_BROKERS")
	origin := flag.String("cors-origin", "http://localhost:5173", "browser origin allowed to call the API")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Printf("failed to build logger: %v", err)
		return 1
	}
	defer logg.Sync()

	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	service := testsupport.NewService(testsupport.WithAuth(authCfg))
	if *seed {
		if cfg.UserID == "" {
			logg.Error("-seed needs SIA_USER_ID")
			return 2
		}
		activity := service.Seed(cfg.UserID)
		service.SetProfile(cfg.UserID, domain.PatientMetadata{PatientName: "Dev Patient", PatientAge: 65})
		logg.Info("seeded dev data", "user_id", cfg.UserID, "activity_id", activity.ID)
	}

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	skipper := func(r *http.Request) bool {
		return r.Method == http.MethodOptions || r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := httptransport.Chain(mux,
		httptransport.RequestLogger(logg),
		httptransport.CORS(*origin),
		auth.NewMiddleware(authCfg, skipper).WithLogger(logg).Wrap,
	)

	serverCfg := httptransport.DefaultServerConfig(cfg.DevServerAddress)
	server := httptransport.NewServer(serverCfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httptransport.Serve(gctx, server, serverCfg.ShutdownTimeout, logg)
	})
	if cfg.MetricsAddress != "" && cfg.MetricsAddress != cfg.DevServerAddress {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
		group.Go(func() error {
			return httptransport.Serve(gctx, httptransport.NewServer(metricsCfg, metricsMux), metricsCfg.ShutdownTimeout, logg)
		})
	}
	if *consume && len(cfg.KafkaBrokers) > 0 {
		reader := events.NewReader(cfg.KafkaBrokers, cfg.EventsTopic, "sia-devserver")
		processor := events.NewProcessor(reader, events.LogHandler(logg), logg.With("component", "progress-consumer"))
		group.Go(func() error {
			defer reader.Close()
			if err := processor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	logg.Info("sia dev backend started", "address", cfg.DevServerAddress, "signed_tokens", authCfg.Secret != "")
	if err := group.Wait(); err != nil {
		logg.Error("dev backend stopped", "error", err)
		return 1
	}
	logg.Info("dev backend stopped")
	return 0
}
