// Command riskreport computes a risk report for a CSV of returns and prints
// it to the console, optionally saving an Excel workbook and uploading it to
// R2 object storage.
//
// The CSV has a date column followed by one column per asset:
//
//	date,AAPL,MSFT
//	2024-01-02,0.0051,-0.0032
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tom-sims/quant-research-toolkit/internal/config"
	"github.com/tom-sims/quant-research-toolkit/internal/di"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/reporting"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
	"github.com/tom-sims/quant-research-toolkit/pkg/logger"
)

func main() {
	defaults := reporting.DefaultOptions()

	var (
		csvFile     = flag.String("csv", "", "Path to CSV file with dated returns")
		weightsFlag = flag.String("weights", "", "Comma-separated portfolio weights (default: equal)")
		title       = flag.String("title", defaults.Title, "Report title")
		confidence  = flag.Float64("confidence", defaults.Confidence, "VaR confidence level")
		horizon     = flag.Int("horizon", defaults.HorizonSteps, "Simulation horizon in steps")
		trials      = flag.Int("trials", defaults.Trials, "Number of Monte Carlo trials")
		ppy         = flag.Int("periods-per-year", defaults.PeriodsPerYear, "Return periods per year")
		riskFree    = flag.Float64("risk-free", 0, "Annual risk-free rate")
		seed        = flag.Int64("seed", -1, "Random seed (negative for nondeterministic)")
		workers     = flag.Int("workers", 0, "Simulation workers (0 = NumCPU)")
		withFactors = flag.Bool("factors", false, "Fit the Fama-French five-factor model (downloads factor data)")
		xlsxPath    = flag.String("xlsx", "", "Write the report to this .xlsx file")
		upload      = flag.Bool("upload", false, "Upload the .xlsx file to R2 (requires R2_* settings)")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

	if *csvFile == "" {
		log.Fatal().Msg("CSV file path is required. Use -csv flag.")
	}
	if *upload && *xlsxPath == "" {
		log.Fatal().Msg("-upload requires -xlsx")
	}

	in, err := loadInput(*csvFile, *weightsFlag)
	if err != nil {
		log.Fatal().Err(err).Str("csv", *csvFile).Msg("Failed to load returns")
	}

	opts := reporting.Options{
		Title:          *title,
		Confidence:     *confidence,
		HorizonSteps:   *horizon,
		Trials:         *trials,
		PeriodsPerYear: *ppy,
		RiskFreeRate:   *riskFree,
		Workers:        resolveWorkers(*workers),
	}
	if *seed >= 0 {
		s := uint64(*seed)
		opts.Seed = &s
	}

	ctx := context.Background()

	// Config and the container are only needed for factor data and uploads
	var cfg *config.Config
	if *withFactors || *upload {
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}

	if *withFactors {
		container, _, err := di.Wire(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to wire dependencies")
		}
		defer container.Close()
		opts.Fitter = container.FactorModel
	}

	report, err := reporting.NewBuilder(log).Build(ctx, in, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build report")
	}

	reporting.WriteConsole(os.Stdout, report)

	if *xlsxPath != "" {
		if err := reporting.WriteXLSX(*xlsxPath, report); err != nil {
			log.Fatal().Err(err).Str("path", *xlsxPath).Msg("Failed to write workbook")
		}
		fmt.Printf("Workbook written to %s\n", *xlsxPath)
	}

	if *upload {
		if err := uploadReport(ctx, cfg, *xlsxPath, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload report")
		}
	}
}

// loadInput reads the CSV as a table and applies optional weights.
func loadInput(path, weightsFlag string) (risk.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return risk.Input{}, err
	}
	defer f.Close()

	table, err := risk.ReadTableCSV(f)
	if err != nil {
		return risk.Input{}, err
	}

	weights, err := parseWeights(weightsFlag)
	if err != nil {
		return risk.Input{}, err
	}
	return risk.FromTable(table, weights), nil
}

func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	weights := make([]float64, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		weights = append(weights, w)
	}
	return weights, nil
}

func uploadReport(ctx context.Context, cfg *config.Config, path string, log zerolog.Logger) error {
	if !cfg.Storage.Enabled() {
		return fmt.Errorf("R2 storage is not configured")
	}
	uploader, err := reporting.NewUploader(ctx, reporting.StorageConfig{
		Endpoint:        reporting.R2Endpoint(cfg.Storage.AccountID),
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		Prefix:          "reports",
	}, log)
	if err != nil {
		return err
	}
	key, err := uploader.UploadFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded to %s/%s\n", cfg.Storage.Bucket, key)
	return nil
}

// resolveWorkers maps the -workers flag to a worker count; 0 or less means
// one worker per CPU.
func resolveWorkers(n int) int {
	if n < 1 {
		return runtime.NumCPU()
	}
	return n
}
