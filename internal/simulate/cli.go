package simulate

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/achat/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends JSON logs to stdout and, when logFile is set, to that
// file as well. The returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w, closer = io.MultiWriter(os.Stdout, f), f
	}
	if err := logger.InitWith(w, logger.FormatJSON); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`achat workload simulator
========================

Registers a team of buyers on a running achat service, submits random
dossiers concurrently, balances the drafts with the batch optimizer and
checks the resulting workload.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -buyers int        Buyers to register (default 5)
  -dossiers int      Dossiers to submit (default 200)
  -auto float        Fraction of dossiers auto-assigned on creation (default 0.5)
  -workers int       Concurrent submitters (default CPU cores * 2)
  -batch int         Drafts per batch run (default 200)
  -retries int       Attempts per request when the service pushes back (default 5)
  -seed uint         Generator seed, 0 for a random one
  -timeout duration  HTTP request timeout (default 30s)
  -output string     Write the generated dossiers to this JSON file
  -log string        Also write logs to this file
  -verbose           Log every request
  -help              Show this help message

Examples:
  go run ./cmd/simulate -buyers 8 -dossiers 1000 -auto 0.3
  go run ./cmd/simulate -seed 42 -output dossiers.json
`)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
