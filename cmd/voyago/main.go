// Command voyago runs the travel assistant HTTP gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	voyago "github.com/voyago/voyago"
	"github.com/voyago/voyago/capability"
	"github.com/voyago/voyago/config"
	"github.com/voyago/voyago/gateway"
	"github.com/voyago/voyago/internal/retry"
	"github.com/voyago/voyago/internal/timeout"
	"github.com/voyago/voyago/middleware"
	openaiplanner "github.com/voyago/voyago/planner/openai"
	"github.com/voyago/voyago/registry"
	"github.com/voyago/voyago/router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracing, err := voyago.SetupTracing(voyago.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: "voyago",
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: 20 * time.Second}

	auth := capability.NewAmadeusAuth(cfg.Amadeus.BaseURL, cfg.Amadeus.APIKey, cfg.Amadeus.APISecret, httpClient)
	flights := capability.NewFlightClient(cfg.Amadeus.BaseURL, auth, httpClient, logger)
	hotels := capability.NewHotelClient(cfg.Amadeus.BaseURL, auth, httpClient, logger)
	weather := capability.NewWeatherClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, httpClient, logger)

	// Third-party APIs expose no health route, so probes only test
	// reachability of the provider host.
	reg := registry.New(&registry.ReachabilityProber{Client: httpClient}, registry.Config{
		Interval:     cfg.Registry.Interval,
		ProbeTimeout: cfg.Registry.ProbeTimeout,
	}, logger)
	reg.Register("search_flights", cfg.Amadeus.BaseURL)
	reg.Register("search_hotels", cfg.Amadeus.BaseURL)
	reg.Register("get_weather", cfg.Weather.BaseURL)
	go reg.Run(ctx)

	rt := router.New(reg, router.Config{
		Retry: retry.Config{
			MaxRetries: cfg.Routing.MaxRetries,
			Delay:      cfg.Routing.RetryDelay,
		},
		CallTimeout: cfg.Routing.CallTimeout,
	}, logger)
	rt.Register(flights)
	rt.Register(hotels)
	rt.Register(weather)

	catalog := voyago.NewCatalog(
		capability.FlightSpec(),
		capability.HotelSpec(),
		capability.WeatherSpec(),
	)

	planner := openaiplanner.New(openaiplanner.Config{
		APIKey:      cfg.Planner.APIKey,
		Model:       cfg.Planner.Model,
		BaseURL:     cfg.Planner.BaseURL,
		Temperature: float32(cfg.Planner.Temperature),
	}, logger)

	timeouts := timeout.DefaultConfig()
	if cfg.Assistant.TurnTimeout > 0 {
		timeouts.TurnExecution = cfg.Assistant.TurnTimeout
	}
	if cfg.Assistant.PlannerCall > 0 {
		timeouts.PlannerCall = cfg.Assistant.PlannerCall
	}
	if cfg.Routing.CallTimeout > 0 {
		// Whole-invocation budget: every attempt plus the backoff between them.
		attempts := time.Duration(cfg.Routing.MaxRetries + 1)
		timeouts.CapabilityCall = attempts*cfg.Routing.CallTimeout +
			time.Duration(cfg.Routing.MaxRetries)*cfg.Routing.RetryDelay
	}

	dispatcher, err := voyago.New(voyago.Config{
		Planner:      planner,
		Router:       rt,
		Catalog:      catalog,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		MaxParallel:  cfg.Assistant.MaxParallel,
		Timeouts:     &timeouts,
		Logging:      &voyago.LoggingConfig{Logger: logger, LogToolCalls: true, LogReplies: true, RedactSensitive: true},
	})
	if err != nil {
		return err
	}
	dispatcher.Use(middleware.NewTimingMiddleware(logger))

	srv := gateway.New(gateway.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, dispatcher, rt, reg, logger)

	err = srv.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if terr := shutdownTracing(flushCtx); terr != nil {
		logger.Warn("tracer shutdown failed", "error", terr)
	}
	return err
}

func buildLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
