package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/achat/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	percent             = 100
)

// Run executes a complete simulation and returns its statistics. A failed
// check is returned as an error after the statistics are logged.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	run := "sim-" + uuid.NewString()[:8]

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log.Info(ctx, "starting simulation",
		logger.String("run", run),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("buyers", cfg.Buyers),
		logger.Int("dossiers", cfg.Dossiers),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
	)

	if err := client.Do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	buyers, err := registerBuyers(ctx, client, cfg, run, stats)
	if err != nil {
		return stats, err
	}

	auto := int(math.Round(cfg.AutoShare * float64(cfg.Dossiers)))
	dossiers := NewGenerator(seed).Dossiers(run, cfg.Dossiers, auto)
	if cfg.OutputFile != "" {
		if err := saveDossiers(cfg.OutputFile, dossiers); err != nil {
			log.Warn(ctx, "failed to save dossiers", logger.Error(err))
		}
	}

	created, checks := submitDossiers(ctx, client, cfg, dossiers, stats)
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	var drafts []Created
	for _, c := range created {
		if c.Status == "Draft" {
			drafts = append(drafts, c)
		}
	}
	stats.Drafts = len(drafts)

	var last *BatchResult
	for start := 0; start < len(drafts); start += cfg.BatchSize {
		chunk := drafts[start:min(start+cfg.BatchSize, len(drafts))]
		res, err := runBatch(ctx, client, cfg, chunk)
		if err != nil {
			return stats, err
		}
		stats.Batches++
		if res.Status != "optimal" {
			stats.Approximate++
		}
		stats.BatchMaxLoad = math.Max(stats.BatchMaxLoad, res.MaxLoad)
		if err := verifyBatch(res, chunk); err != nil {
			checks = append(checks, fmt.Errorf("batch %s: %w", res.RunID, err))
		}
		last = res
	}

	var w Workload
	if err := client.Do(ctx, http.MethodGet, "/workload", nil, &w); err != nil {
		return stats, fmt.Errorf("workload retrieval failed: %w", err)
	}
	if err := verifyWorkload(&w, buyers, last); err != nil {
		checks = append(checks, err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats, &w)

	if err := errors.Join(checks...); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// registerBuyers adds the team one by one so the tie-break order is the
// numbering order.
func registerBuyers(ctx context.Context, client *HTTPClient, cfg *Config, run string, stats *Stats) ([]string, error) {
	names := make([]string, cfg.Buyers)
	for i := range names {
		names[i] = fmt.Sprintf("%s-b%02d", run, i+1)
		body := map[string]string{"name": names[i], "email": fmt.Sprintf("b%02d@%s.example.com", i+1, run)}
		if _, err := retry(ctx, cfg.Retries, func() error {
			return client.Do(ctx, http.MethodPost, "/buyers", body, nil)
		}); err != nil {
			return nil, fmt.Errorf("register buyer %s: %w", names[i], err)
		}
		stats.BuyersRegistered++
	}
	return names, nil
}

// submitDossiers posts every dossier with at most cfg.Workers in flight.
// Failed submissions are counted, not fatal; the returned slice holds the
// successful ones in submission order.
func submitDossiers(ctx context.Context, client *HTTPClient, cfg *Config, dossiers []Dossier, stats *Stats) ([]Created, []error) {
	log := logger.Get().Named("simulate")
	results := make([]*Created, len(dossiers))
	problems := make([]error, len(dossiers))
	var backpressured, failed, auto atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range dossiers {
		d := &dossiers[i]
		g.Go(func() error {
			var c Created
			n, err := retry(gctx, cfg.Retries, func() error {
				return client.Do(gctx, http.MethodPost, "/requests", d, &c)
			})
			backpressured.Add(int64(n))
			if err != nil {
				failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "submission failed", logger.String("dossier", d.Description), logger.Error(err))
				}
				return nil
			}
			if d.AutoAssign {
				auto.Add(1)
			}
			results[i] = &c
			problems[i] = verifyCreated(d, &c)
			if cfg.Verbose {
				log.Info(gctx, "dossier created",
					logger.String("code", c.Code),
					logger.String("buyer", c.Buyer),
					logger.Float64("complexity", c.Complexity),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Submitted = len(dossiers)
	stats.Backpressured = int(backpressured.Load())
	stats.Failed = int(failed.Load())
	stats.AutoAssigned = int(auto.Load())

	created := make([]Created, 0, len(dossiers))
	var checks []error
	for i, c := range results {
		if c != nil {
			created = append(created, *c)
		}
		if problems[i] != nil {
			checks = append(checks, problems[i])
		}
	}
	return created, checks
}

func runBatch(ctx context.Context, client *HTTPClient, cfg *Config, drafts []Created) (*BatchResult, error) {
	codes := make([]string, len(drafts))
	for i, d := range drafts {
		codes[i] = d.Code
	}
	var res BatchResult
	body := map[string]any{"codes": codes, "apply": true}
	if _, err := retry(ctx, cfg.Retries, func() error {
		return client.Do(ctx, http.MethodPost, "/batch", body, &res)
	}); err != nil {
		return nil, fmt.Errorf("batch of %d drafts failed: %w", len(drafts), err)
	}
	return &res, nil
}

// saveDossiers writes the generated dossiers as a JSON array.
func saveDossiers(filename string, dossiers []Dossier) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(dossiers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dossiers: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, w *Workload) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Submitted-stats.Failed) / float64(stats.Submitted) * percent
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("buyers", stats.BuyersRegistered),
		logger.Int("submitted", stats.Submitted),
		logger.Int("autoAssigned", stats.AutoAssigned),
		logger.Int("drafts", stats.Drafts),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("failed", stats.Failed),
		logger.Int("batches", stats.Batches),
		logger.Int("approximate", stats.Approximate),
		logger.Float64("batchMaxLoad", stats.BatchMaxLoad),
		logger.Float64("workloadMax", w.MaxLoad),
		logger.Float64("workloadTotal", w.Total),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("dossiersPerSecond", perSecond),
	)
}
