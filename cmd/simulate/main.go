package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/achat/internal/simulate"
)

// Default configuration constants.
const (
	defaultBuyers      = 5
	defaultDossiers    = 200
	defaultAutoShare   = 0.5
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		buyers     = flag.Int("buyers", defaultBuyers, "Buyers to register")
		dossiers   = flag.Int("dossiers", defaultDossiers, "Dossiers to submit")
		autoShare  = flag.Float64("auto", defaultAutoShare, "Fraction of dossiers auto-assigned on creation")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitters")
		batchSize  = flag.Int("batch", simulate.DefaultBatchSize, "Drafts per batch run")
		retries    = flag.Int("retries", simulate.DefaultRetries, "Attempts per request on backpressure")
		seed       = flag.Uint64("seed", 0, "Generator seed (0 for random)")
		timeout    = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the generated dossiers to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Log every request")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return 0
	}

	closer, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		Buyers:     *buyers,
		Dossiers:   *dossiers,
		AutoShare:  *autoShare,
		Workers:    *workers,
		BatchSize:  *batchSize,
		Retries:    *retries,
		Seed:       *seed,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
