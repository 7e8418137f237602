package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/common/expfmt"

	"github.com/dd0wney/cluso-perfsim/pkg/artifacts"
	"github.com/dd0wney/cluso-perfsim/pkg/audit"
	"github.com/dd0wney/cluso-perfsim/pkg/config"
	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/metrics"
	"github.com/dd0wney/cluso-perfsim/pkg/vitals"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	missingStyle = cellStyle.
			Foreground(lipgloss.Color("#808080"))

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF"))
)

func main() {
	var (
		configFile  = flag.String("config", "", "Settings file (YAML)")
		location    = flag.String("artifacts", "", "Artifacts directory or s3://bucket/prefix")
		preset      = flag.String("preset", "", "Throttling preset: mobile, desktop or provided")
		profileFile = flag.String("profile", "", "Throttling profile file (YAML), layered over the preset")
		output      = flag.String("output", "", "Output format: json or table")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn or error")
		workers     = flag.Int("workers", 0, "Concurrent metric extractions")
		metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
		timeout     = flag.Duration("timeout", 2*time.Minute, "Overall audit timeout")
	)

	flag.Parse()

	settings := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load settings: %v", err)
		}
		settings = loaded
	}

	if *location == "" && flag.NArg() > 0 {
		*location = flag.Arg(0)
	}
	override(&settings.Artifacts, *location)
	override(&settings.Preset, *preset)
	override(&settings.ProfileFile, *profileFile)
	override(&settings.Output, *output)
	override(&settings.LogLevel, *logLevel)
	override(&settings.MetricsFile, *metricsFile)
	if *workers > 0 {
		settings.Workers = *workers
	}

	if err := settings.Resolve(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	logger := logging.NewJSONLogger(os.Stderr, settings.Level())
	if err := run(ctx, settings, logger, os.Stdout); err != nil {
		log.Fatalf("Audit failed: %v", err)
	}
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func run(ctx context.Context, settings *config.Settings, logger logging.Logger, stdout io.Writer) error {
	profile, err := settings.Profile()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()

	src, err := artifacts.Open(ctx, settings.Artifacts, settings.S3)
	if err != nil {
		return fmt.Errorf("failed to open artifacts: %w", err)
	}
	switch s := src.(type) {
	case *artifacts.FileSource:
		s.Metrics = reg
	case *artifacts.S3Source:
		s.Metrics = reg
	}

	logger.Info("loading artifacts", logging.String("source", src.String()))
	in, err := src.Load(ctx)
	if err != nil {
		return err
	}

	auditor := audit.New(audit.Options{Metrics: reg, Logger: logger, Workers: settings.Workers})
	res, err := auditor.Run(ctx, in, profile)
	if err != nil {
		return err
	}

	switch settings.Output {
	case config.OutputTable:
		_, err = fmt.Fprintln(stdout, renderTable(res))
	default:
		err = writeJSON(stdout, res)
	}
	if err != nil {
		return err
	}

	if settings.MetricsFile != "" {
		if err := writeMetrics(reg, settings.MetricsFile); err != nil {
			return err
		}
		logger.Info("metrics written", logging.String("path", settings.MetricsFile))
	}
	return nil
}

func writeJSON(w io.Writer, res audit.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func renderTable(res audit.Result) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("METRIC", "VALUE", "OBSERVED")

	missing := make(map[[2]int]bool)
	for i, name := range res.Names() {
		v := res[name]
		value, observed := formatValue(name, v.Value), formatValue(name, v.ObservedValue)
		missing[[2]int{i, 1}] = v.Value == nil
		missing[[2]int{i, 2}] = v.ObservedValue == nil
		t.Row(name, value, observed)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case missing[[2]int{row, col}]:
			return missingStyle
		default:
			return cellStyle
		}
	})
	return t.Render()
}

// formatValue renders milliseconds for timing metrics and a bare score for CLS
func formatValue(name string, v *float64) string {
	if v == nil {
		return "-"
	}
	if isScore(name) {
		return strconv.FormatFloat(*v, 'f', 3, 64)
	}
	return strconv.FormatFloat(*v, 'f', 0, 64) + " ms"
}

func isScore(name string) bool {
	return name == vitals.MetricCumulativeLayoutShift || name == vitals.MetricCumulativeLayoutShiftAllFrames
}

func writeMetrics(reg *metrics.Registry, path string) (retErr error) {
	families, err := reg.GetPrometheusRegistry().Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
