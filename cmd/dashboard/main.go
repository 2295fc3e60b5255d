// Package main is the entry point for the Skyline dashboard API.
//
// It loads the configuration, wires the weather client, forecast processor
// and chart renderer into the HTTP chassis, and starts serving.
//
// Outside Lambda it runs as a standard HTTP server on the configured port.
// Inside Lambda (detected via AWS_LAMBDA_RUNTIME_API) the same router is
// served through the API Gateway v2 adapter.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"

	"skyline/internal/api/handlers"
	"skyline/internal/charts"
	"skyline/internal/config"
	"skyline/internal/core"
	"skyline/internal/external"
	"skyline/internal/forecasts"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skyline dashboard starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	var metrics *core.CloudWatchMetrics
	if cfg.Observability.MetricsEnabled {
		metrics, err = newCloudWatchMetrics(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
	}

	srv, err := buildServer(cfg, logger, metrics)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires every dependency and mounts the routes. metrics may be
// nil, in which case nothing is published.
func buildServer(cfg *config.Config, logger *slog.Logger, metrics *core.CloudWatchMetrics) (*core.Server, error) {
	loc, err := cfg.Weather.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving display timezone: %w", err)
	}

	style, err := charts.NewStyle(cfg.Chart.WidthInches, cfg.Chart.HeightInches, cfg.Chart.Format)
	if err != nil {
		return nil, fmt.Errorf("building chart style: %w", err)
	}

	if cfg.Weather.UsesPlaceholderKey() {
		logger.Warn("OPENWEATHERMAP_API_KEY is the placeholder value; provider calls will be rejected")
	}

	var clientOpts []external.WeatherClientOption
	if metrics != nil {
		clientOpts = append(clientOpts, external.WithFailureRecorder(metrics))
	}
	client := external.NewWeatherClient(external.WeatherClientConfig{
		BaseURL:          cfg.Weather.BaseURL,
		APIKey:           cfg.Weather.APIKey,
		Timeout:          cfg.Weather.Timeout,
		ValidateTimeout:  cfg.Weather.ValidateTimeout,
		ValidateLocation: cfg.Weather.ValidateLocation,
		UserAgent:        cfg.Weather.UserAgent,
	}, logger, clientOpts...)

	processor := forecasts.NewProcessor(loc, logger)
	renderer := charts.NewRenderer(style, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	if metrics != nil {
		srv.Metrics = metrics
	}
	if cfg.Observability.HealthCheckKey {
		srv.HealthProbes = append(srv.HealthProbes, core.KeyProbe{Validator: client})
	}

	weatherHandler := handlers.NewWeatherHandler(client, processor, renderer, cfg.Weather.ForecastDays, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/weather", weatherHandler.RegisterRoutes)
	})

	srv.MountRoutes()
	return srv, nil
}

// newCloudWatchMetrics builds the CloudWatch publisher from the default AWS
// credential chain.
func newCloudWatchMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.CloudWatchMetrics, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Observability.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger), nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda hands the router to the Lambda runtime. lambda.Start does not
// return under normal operation.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	lambda.Start(core.LambdaHandler(srv.Handler()))
	return nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
