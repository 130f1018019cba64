package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/sia/internal/api"
	"example.com/sia/internal/auth"
	"example.com/sia/internal/cache"
	"example.com/sia/internal/cli"
	"example.com/sia/internal/config"
	"example.com/sia/internal/dashboard"
	"example.com/sia/internal/events"
	"example.com/sia/internal/logger"
	"example.com/sia/internal/observability"
	"example.com/sia/internal/profile"
	"example.com/sia/internal/session"
	httptransport "example.com/sia/internal/transport/http"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env-file", ".env", "dotenv file read before the environment")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), cli.ErrUsage.Error())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*envFile)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, logg, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "sia-cli",
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		logg.Error("failed to init tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logg.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
		go func() {
			if err := httptransport.Serve(ctx, httptransport.NewServer(metricsCfg, mux), metricsCfg.ShutdownTimeout, logg); err != nil {
				logg.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logg.Warn("event publisher close failed", "error", err)
		}
	}()

	tokens := auth.NewTokenSource(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, cfg.UserID, cfg.JWTTTL)
	client := api.NewClient(cfg.BackendBaseURL, tokens, api.WithTimeout(cfg.HTTPTimeout), api.WithLogger(logg.Named("api")))
	store := cache.NewStore()

	app := &cli.App{
		UserID:    cfg.UserID,
		Dashboard: dashboard.New(client, store, logg),
		Profiles:  profile.NewEditor(client, store, logg),
		Session: func(activityID string) *session.Controller {
			return session.NewController(activityID, client, store,
				session.WithPublisher(publisher),
				session.WithLogger(logg.Named("session")),
			)
		},
		In:  os.Stdin,
		Out: os.Stdout,
		Log: logg,
	}

	if err := app.Run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, cli.ErrUsage) {
			flag.Usage()
		}
		return 1
	}
	return 0
}
