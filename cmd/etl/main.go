package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farxc/ans-expenses/internal/ans"
	"github.com/farxc/ans-expenses/internal/ans/audit"
	"github.com/farxc/ans-expenses/internal/ans/downloader"
	"github.com/farxc/ans-expenses/internal/ans/load"
	"github.com/farxc/ans-expenses/internal/config"
	"github.com/farxc/ans-expenses/internal/db"
	"github.com/farxc/ans-expenses/internal/env"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/farxc/ans-expenses/internal/store"
)

type options struct {
	fetch         bool
	fetchRegistry bool
	load          bool
}

// parseFlags overlays command line flags on cfg, which already carries the
// environment values, so a flag always wins over the environment.
func parseFlags(args []string, cfg *config.Config) (options, error) {
	var opts options
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)

	fs.StringVar(&cfg.InputDir, "input", cfg.InputDir, "Directory with the extracted quarterly files")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Directory for every generated artifact")
	fs.StringVar(&cfg.RegistryPath, "registry", cfg.RegistryPath, "Operator registry CSV")
	fs.StringVar(&cfg.Policy, "policy", cfg.Policy, "Expense classification policy: strict, loose")
	fs.StringVar(&cfg.AmountMode, "amount-mode", cfg.AmountMode, "Amount source: value, final_balance, balance_delta")
	fs.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "Encoding of the quarterly files")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Files normalized concurrently")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Rows read per chunk")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level: debug, info, warn, error")
	noEnrich := fs.Bool("no-enrich", !cfg.Enrich, "Skip registry enrichment, validation and aggregation")
	fs.BoolVar(&opts.fetch, "fetch", false, "Download the latest quarters before processing")
	fs.IntVar(&cfg.Fetch.Quarters, "quarters", cfg.Fetch.Quarters, "Quarters downloaded with -fetch")
	fs.BoolVar(&opts.fetchRegistry, "fetch-registry", false, "Download the operator registry before processing")
	fs.BoolVar(&opts.load, "load", false, "Load the results into the database")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	cfg.Enrich = !*noEnrich
	return opts, nil
}

func fetch(ctx context.Context, cfg config.Config, opts options, appLogger *logger.Logger) error {
	const component = "Fetch"
	client := downloader.NewClient(cfg.Fetch.BaseURL, appLogger)

	if opts.fetch {
		if err := os.MkdirAll(cfg.Fetch.ZipDir, os.ModePerm); err != nil {
			return err
		}
		paths, err := client.FetchQuarters(ctx, cfg.Fetch.Quarters, cfg.Fetch.ZipDir, cfg.InputDir)
		if err != nil {
			return err
		}
		appLogger.Info(component, "Quarterly files extracted: files=%d dir=%s", len(paths), cfg.InputDir)
	}

	if opts.fetchRegistry {
		res := client.FetchData(ctx, downloader.RegistryURL, cfg.RegistryPath)
		if !res.Success {
			return errors.New("registry download failed")
		}
	}
	return nil
}

func persist(ctx context.Context, cfg config.Config, result *ans.Result, runErr error, appLogger *logger.Logger) error {
	const component = "Persist"

	database, err := db.New(cfg.DB.Driver, cfg.DB.Addr, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.MaxIdleTime)
	if err != nil {
		return err
	}
	defer database.Close()
	appLogger.Info(component, "Database connection pool established: driver=%s", cfg.DB.Driver)

	if err := store.Migrate(ctx, database); err != nil {
		return err
	}
	storage := store.NewStorage(database)

	run, err := load.StartRun(ctx, storage, appLogger)
	if err != nil {
		return err
	}

	var loadErr error
	if runErr == nil {
		loadErr = load.LoadPayload(ctx, load.Payload{
			Operators:    result.Operators,
			Consolidated: result.Consolidated,
			Aggregated:   result.Aggregated,
		}, storage, appLogger)
	}

	var report *audit.Report
	if result != nil {
		report = result.Report
	}
	err = load.FinishRun(ctx, storage, run, report, errors.Join(runErr, loadErr), appLogger)
	return errors.Join(loadErr, err)
}

func main() {
	const component = "Main"
	log.SetFlags(0)

	if err := env.Load(".env"); err != nil {
		log.Printf("no .env loaded: %v", err)
	}
	cfg := config.FromEnv()

	opts, err := parseFlags(os.Args[1:], &cfg)
	if err != nil {
		os.Exit(2)
	}

	appLogger := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	monitor := NewMonitor()
	monitor.Start(400*time.Millisecond, appLogger)

	startingTime := time.Now()
	appLogger.Info(component, "Application starting: startTime=%s input=%s output=%s", startingTime.Format(time.RFC3339), cfg.InputDir, cfg.OutputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.fetch || opts.fetchRegistry {
		if err := fetch(ctx, cfg, opts, appLogger); err != nil {
			appLogger.Fatal(component, "Fetch failed: error=%v", err)
			return
		}
	}

	pipeline, err := ans.NewPipeline(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(component, "Invalid configuration: error=%v", err)
		return
	}

	result, runErr := pipeline.Run(ctx)

	if opts.load {
		if err := persist(ctx, cfg, result, runErr, appLogger); err != nil {
			appLogger.Error(component, "Database load failed: error=%v", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	stats := monitor.Stop()
	appLogger.Info(component, "Resource peaks: goroutines=%d memoryMB=%d", stats.PeakGoroutines, stats.PeakMemoryMB)

	if runErr != nil {
		appLogger.Fatal(component, "Run failed: error=%v", runErr)
		return
	}

	appLogger.Info(component, "Application completed successfully: duration=%.2f seconds", time.Since(startingTime).Seconds())
}
