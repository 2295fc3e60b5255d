// Package main implements weatherctl, a command-line client for the same
// fetch, process and render pipeline the dashboard API serves.
//
// Usage:
//
//	weatherctl current --location=Paris
//	weatherctl forecast --location=Paris --days=3 --comfort
//	weatherctl export --location=Paris --format=csv --out=./exports
//	weatherctl charts --location=Paris --chart=line --format=svg
//	weatherctl charts --location=Paris --zip
//	weatherctl validate-key
//
// Configuration comes from the environment (or a .env file), exactly as for
// the dashboard. Logs go to stderr; results go to stdout or the --out
// directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"skyline/internal/charts"
	"skyline/internal/config"
	"skyline/internal/external"
	"skyline/internal/forecasts"
	"skyline/internal/types"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks failures caused by bad arguments.
var errUsage = errors.New("usage error")

// weatherSource is the subset of the weather client the CLI uses.
type weatherSource interface {
	FetchCurrent(ctx context.Context, location string) (*types.CurrentPayload, error)
	FetchForecast(ctx context.Context, location string, days int) (*types.ForecastPayload, error)
	ValidateKey(ctx context.Context) bool
}

// app holds the wired pipeline for one invocation.
type app struct {
	source      weatherSource
	processor   *forecasts.Processor
	renderer    *charts.Renderer
	defaultDays int
	stdout      io.Writer
	logger      *slog.Logger
	now         func() time.Time
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"current":      {"Show current conditions for a location", runCurrent},
	"forecast":     {"Show daily aggregates and patterns for a forecast", runForecast},
	"export":       {"Write the forecast table as CSV or JSON", runExport},
	"charts":       {"Render charts to image files or a zip bundle", runCharts},
	"validate-key": {"Check that the provider accepts the configured API key", runValidateKey},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run dispatches one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	logger := newLogger(cfg.LogLevel, stderr)
	a, err := newApp(cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			if !errors.Is(err, flag.ErrHelp) {
				fmt.Fprintf(stderr, "error: %v\n", err)
			}
			return exitUsage
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

// newApp wires the pipeline from configuration.
func newApp(cfg *config.Config, logger *slog.Logger, stdout io.Writer) (*app, error) {
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

	client := external.NewWeatherClient(external.WeatherClientConfig{
		BaseURL:          cfg.Weather.BaseURL,
		APIKey:           cfg.Weather.APIKey,
		Timeout:          cfg.Weather.Timeout,
		ValidateTimeout:  cfg.Weather.ValidateTimeout,
		ValidateLocation: cfg.Weather.ValidateLocation,
		UserAgent:        cfg.Weather.UserAgent,
	}, logger)

	return &app{
		source:      client,
		processor:   forecasts.NewProcessor(loc, logger),
		renderer:    charts.NewRenderer(style, logger),
		defaultDays: cfg.Weather.ForecastDays,
		stdout:      stdout,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// forecastFlags are shared by every command that loads a forecast.
type forecastFlags struct {
	location string
	days     int
	comfort  bool
}

func (a *app) newFlagSet(name string, ff *forecastFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if ff != nil {
		fs.StringVar(&ff.location, "location", "", "City name, optionally with country code (e.g. \"Paris,FR\")")
		fs.IntVar(&ff.days, "days", a.defaultDays, "Forecast days, 1-5")
		fs.BoolVar(&ff.comfort, "comfort", false, "Append the comfort_index column")
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

func (ff *forecastFlags) validate() error {
	ff.location = strings.TrimSpace(ff.location)
	if ff.location == "" {
		return fmt.Errorf("%w: --location is required", errUsage)
	}
	if ff.days < 1 || ff.days > external.DefaultForecastDays {
		return fmt.Errorf("%w: --days must be between 1 and %d", errUsage, external.DefaultForecastDays)
	}
	return nil
}

// loadForecast fetches and processes the forecast. An empty table is an error.
func (a *app) loadForecast(ctx context.Context, ff forecastFlags) (*forecasts.Table, error) {
	payload, err := a.source.FetchForecast(ctx, ff.location, ff.days)
	if err != nil {
		return nil, err
	}
	table := a.processor.NormalizeForecast(payload)
	if table.Empty() {
		return nil, types.NewAppError(types.ErrCodeEmptyResult, "no forecast data available for "+ff.location, nil)
	}
	if ff.comfort {
		table = a.processor.ComfortIndex(table)
	}
	return table, nil
}

func runCurrent(ctx context.Context, a *app, args []string) error {
	var ff forecastFlags
	fs := a.newFlagSet("current", &ff)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := ff.validate(); err != nil {
		return err
	}

	payload, err := a.source.FetchCurrent(ctx, ff.location)
	if err != nil {
		return err
	}
	obs := a.processor.NormalizeCurrent(payload)
	if obs == nil {
		return types.NewAppError(types.ErrCodeEmptyResult, "current conditions could not be read for "+ff.location, nil)
	}

	loc := a.processor.Location()
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Location\t%s, %s\n", obs.Location, obs.Country)
	fmt.Fprintf(tw, "Observed\t%s\n", obs.ObservedAt.In(loc).Format(types.TimestampLayout))
	fmt.Fprintf(tw, "Conditions\t%s (%s)\n", obs.Condition, obs.Description)
	fmt.Fprintf(tw, "Temperature\t%.1f°C (feels like %.1f°C)\n", obs.Temperature, obs.FeelsLike)
	fmt.Fprintf(tw, "Humidity\t%.0f%%\n", obs.Humidity)
	fmt.Fprintf(tw, "Pressure\t%.0f hPa\n", obs.Pressure)
	fmt.Fprintf(tw, "Wind\t%.1f m/s at %.0f°\n", obs.WindSpeed, obs.WindDirection)
	fmt.Fprintf(tw, "Cloudiness\t%.0f%%\n", obs.Cloudiness)
	fmt.Fprintf(tw, "Visibility\t%.1f km\n", obs.VisibilityKm)
	fmt.Fprintf(tw, "Sunrise\t%s\n", obs.Sunrise.In(loc).Format(types.TimestampLayout))
	fmt.Fprintf(tw, "Sunset\t%s\n", obs.Sunset.In(loc).Format(types.TimestampLayout))
	return tw.Flush()
}

func runForecast(ctx context.Context, a *app, args []string) error {
	var ff forecastFlags
	fs := a.newFlagSet("forecast", &ff)
	asJSON := fs.Bool("json", false, "Print patterns and daily aggregates as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := ff.validate(); err != nil {
		return err
	}

	table, err := a.loadForecast(ctx, ff)
	if err != nil {
		return err
	}
	patterns := a.processor.DetectPatterns(table)
	daily := a.processor.DailyAggregates(table)

	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Patterns forecasts.PatternSummary   `json:"patterns"`
			Daily    []forecasts.DailyAggregate `json:"daily"`
		}{patterns, daily})
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Samples\t%d\n", patterns.Samples)
	fmt.Fprintf(tw, "Temperature\tavg %.2f°C, range %.2f, %s\n", patterns.AvgTemperature, patterns.TemperatureRange, patterns.TemperatureTrend)
	fmt.Fprintf(tw, "Humidity\tavg %.2f%%, %s\n", patterns.AvgHumidity, patterns.HumidityTrend)
	fmt.Fprintf(tw, "Pressure\tavg %.2f hPa, %s\n", patterns.AvgPressure, patterns.PressureTrend)
	fmt.Fprintf(tw, "Wind\tavg %.2f m/s, max %.2f m/s\n", patterns.AvgWindSpeed, patterns.MaxWindSpeed)
	fmt.Fprintf(tw, "Dominant\t%s\n\n", patterns.DominantCondition)

	fmt.Fprintln(tw, "DATE\tMIN\tMAX\tMEAN\tHUMIDITY\tWIND\tPRECIP")
	for _, d := range daily {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			d.Date, d.TemperatureMin, d.TemperatureMax, d.TemperatureMean,
			d.HumidityMean, d.WindSpeedMean, d.Precipitation3hSum)
	}
	return tw.Flush()
}

func runExport(ctx context.Context, a *app, args []string) error {
	var ff forecastFlags
	fs := a.newFlagSet("export", &ff)
	format := fs.String("format", forecasts.FormatCSV, "csv or json")
	outDir := fs.String("out", ".", "Directory to write the export into")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := ff.validate(); err != nil {
		return err
	}

	var render func(*forecasts.Table) string
	switch *format {
	case forecasts.FormatCSV:
		render = a.processor.ExportCSV
	case forecasts.FormatJSON:
		render = a.processor.ExportJSON
	default:
		return fmt.Errorf("%w: --format must be csv or json", errUsage)
	}

	table, err := a.loadForecast(ctx, ff)
	if err != nil {
		return err
	}

	name := forecasts.ExportFileName(ff.location, a.today(), *format)
	path, err := writeFile(*outDir, name, []byte(render(table)))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func runCharts(ctx context.Context, a *app, args []string) error {
	var ff forecastFlags
	fs := a.newFlagSet("charts", &ff)
	chartName := fs.String("chart", "all", "Chart name or alias, or \"all\"")
	format := fs.String("format", "", "png or svg (defaults to CHART_FORMAT)")
	outDir := fs.String("out", ".", "Directory to write charts into")
	bundle := fs.Bool("zip", false, "Write every chart into one zip archive")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := ff.validate(); err != nil {
		return err
	}

	renderer := a.renderer
	if *format != "" {
		f := charts.Format(strings.ToLower(*format))
		if f != charts.FormatPNG && f != charts.FormatSVG {
			return fmt.Errorf("%w: --format must be png or svg", errUsage)
		}
		renderer = charts.NewRenderer(renderer.Style().WithFormat(f), a.logger)
	}

	var selected charts.Chart
	if *chartName != "all" {
		c, ok := charts.ParseChart(*chartName)
		if !ok {
			return fmt.Errorf("%w: unknown chart %q; available: %s", errUsage, *chartName, strings.Join(chartNames(), ", "))
		}
		selected = c
	}
	if *bundle && selected != "" {
		return fmt.Errorf("%w: --zip always bundles every chart; drop --chart", errUsage)
	}

	table, err := a.loadForecast(ctx, ff)
	if err != nil {
		return err
	}

	if selected != "" {
		artifact, err := renderer.Render(selected, table)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", selected, err)
		}
		path, err := writeFile(*outDir, artifact.FileName(), artifact.Data)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, path)
		return nil
	}

	artifacts, err := renderer.RenderAll(ctx, table)
	if err != nil {
		return fmt.Errorf("rendering charts: %w", err)
	}

	if *bundle {
		today := a.today()
		f, err := createFile(*outDir, charts.BundleFileName(ff.location, today))
		if err != nil {
			return err
		}
		if err := charts.WriteBundle(f, artifacts, today); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, f.Name())
		return nil
	}

	for _, artifact := range artifacts {
		path, err := writeFile(*outDir, artifact.FileName(), artifact.Data)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, path)
	}
	return nil
}

func runValidateKey(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(a.newFlagSet("validate-key", nil), args); err != nil {
		return err
	}
	if !a.source.ValidateKey(ctx) {
		return types.NewAppError(types.ErrCodeUpstreamUnauthorized, "the provider rejected the configured API key", nil)
	}
	fmt.Fprintln(a.stdout, "API key is valid")
	return nil
}

func (a *app) today() time.Time {
	return a.now().In(a.processor.Location())
}

func createFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return f, nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func chartNames() []string {
	names := make([]string, len(charts.AllCharts))
	for i, c := range charts.AllCharts {
		names[i] = string(c)
	}
	return names
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: weatherctl <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nRun 'weatherctl <command> -h' for command flags.\n")
}

// newLogger creates a structured slog.Logger writing to w.
func newLogger(level string, w io.Writer) *slog.Logger {
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
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
