// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and ACHAT_* environment variables.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/achat/internal/domain/model"
)

// Solver names accepted by the solver key.
const (
	SolverExact = "exact"
	SolverLPT   = "lpt"
)

// ScoreParams are the coefficients of the article formula
// base + a * articles^b for one request type.
type ScoreParams struct {
	Base float64 `koanf:"base"`
	A    float64 `koanf:"a"`
	B    float64 `koanf:"b"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir holds dossiers.csv and buyers.csv.
	DataDir string `koanf:"data_dir"`

	// Persist enables CSV persistence; when false the store is memory only.
	Persist bool `koanf:"persist"`

	// FlushIntervalMS is how often unsaved CSV changes are written in the
	// background. Zero disables the background flush.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// QueueSize bounds the writer's mutation queue.
	QueueSize int `koanf:"queue_size"`

	// Solver picks the batch solver: "exact" (branch and bound) or "lpt".
	Solver string `koanf:"solver"`

	// SolverTimeLimitMS bounds one batch solve.
	SolverTimeLimitMS int `koanf:"solver_time_limit_ms"`

	// SoftLimit is the complexity above which the logarithmic damping applies.
	SoftLimit float64 `koanf:"soft_limit"`

	// MaxBatchSize caps the number of dossiers in one optimizer run.
	MaxBatchSize int `koanf:"max_batch_size"`

	// TypeParams overrides the article formula per request type, keyed by
	// type name ("SparePart", "Equipment", "Market" or the office labels).
	TypeParams map[string]ScoreParams `koanf:"type_params"`

	// EffortTable overrides the Market base complexity per effort level
	// ("1".."5"). Levels left out fall back to the article formula.
	EffortTable map[string]float64 `koanf:"effort_table"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		DataDir:           "data",
		Persist:           true,
		FlushIntervalMS:   5_000,
		QueueSize:         1_024,
		Solver:            SolverExact,
		SolverTimeLimitMS: 30_000,
		SoftLimit:         100.0,
		MaxBatchSize:      200,
	}
}

// SolverTimeLimit returns the solver time limit as a duration.
func (c *Config) SolverTimeLimit() time.Duration {
	return time.Duration(c.SolverTimeLimitMS) * time.Millisecond
}

// FlushInterval returns the background flush interval as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// Effort returns EffortTable keyed by level. Call Validate first.
func (c *Config) Effort() map[int]float64 {
	if len(c.EffortTable) == 0 {
		return nil
	}
	out := make(map[int]float64, len(c.EffortTable))
	for k, v := range c.EffortTable {
		level, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		out[level] = v
	}
	return out
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Persist && strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty when persist is enabled", ErrInvalidConfig)
	case c.FlushIntervalMS < 0:
		return fmt.Errorf("%w: flush_interval_ms must not be negative, got %d", ErrInvalidConfig, c.FlushIntervalMS)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.Solver != SolverExact && c.Solver != SolverLPT:
		return fmt.Errorf("%w: solver must be %q or %q, got %q", ErrInvalidConfig, SolverExact, SolverLPT, c.Solver)
	case c.SolverTimeLimitMS < 1:
		return fmt.Errorf("%w: solver_time_limit_ms must be positive, got %d", ErrInvalidConfig, c.SolverTimeLimitMS)
	case c.SoftLimit <= 0:
		return fmt.Errorf("%w: soft_limit must be positive, got %g", ErrInvalidConfig, c.SoftLimit)
	case c.MaxBatchSize < 1:
		return fmt.Errorf("%w: max_batch_size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	}
	return c.validateScoring()
}

func (c *Config) validateScoring() error {
	for name, p := range c.TypeParams {
		if _, err := model.ParseRequestType(name); err != nil || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: type_params: unknown request type %q", ErrInvalidConfig, name)
		}
		if p.Base < 0 || p.A < 0 || p.B <= 0 {
			return fmt.Errorf("%w: type_params.%s: base and a must not be negative and b must be positive", ErrInvalidConfig, name)
		}
	}
	for k, v := range c.EffortTable {
		level, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || level < 1 || level > 5 {
			return fmt.Errorf("%w: effort_table: level %q must be 1..5", ErrInvalidConfig, k)
		}
		if v <= 0 {
			return fmt.Errorf("%w: effort_table.%s must be positive, got %g", ErrInvalidConfig, k, v)
		}
	}
	return nil
}
