// Package simulate drives a running achat service over HTTP: it registers
// a team, submits random dossiers concurrently, balances the drafts in
// batches and checks the service's consistency from the outside.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Buyers     int           // Buyers to register
	Dossiers   int           // Dossiers to submit
	AutoShare  float64       // Fraction of dossiers auto-assigned on creation (0-1)
	Workers    int           // Concurrent submitters
	BatchSize  int           // Drafts per POST /batch; must not exceed the service limit
	Timeout    time.Duration // HTTP request timeout
	Retries    int           // Attempts per request on backpressure
	Seed       uint64        // Generator seed; 0 picks one from the clock
	OutputFile string        // Optional JSON dump of the generated dossiers
	Verbose    bool          // Log every request
}

// Dossier is the body of POST /requests.
type Dossier struct {
	Description      string          `json:"description,omitempty"`
	Type             string          `json:"type"`
	Articles         int             `json:"articles"`
	ForeignSuppliers int             `json:"foreign_suppliers,omitempty"`
	TotalSuppliers   int             `json:"total_suppliers,omitempty"`
	EffortLevel      int             `json:"effort_level,omitempty"`
	TenderType       string          `json:"tender_type,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	EstimatedAmount  decimal.Decimal `json:"estimated_amount"`
	AutoAssign       bool            `json:"auto_assign,omitempty"`
}

// Created is the subset of a dossier response the run checks.
type Created struct {
	Code       string  `json:"code"`
	Buyer      string  `json:"buyer"`
	Status     string  `json:"status"`
	Complexity float64 `json:"complexity"`
}

// BuyerLoad is one row of GET /workload.
type BuyerLoad struct {
	Buyer string  `json:"buyer"`
	Load  float64 `json:"load"`
}

// Workload is the body of GET /workload.
type Workload struct {
	Buyers  []BuyerLoad `json:"buyers"`
	Total   float64     `json:"total"`
	MaxLoad float64     `json:"max_load"`
}

// Assignment is one row of a batch result.
type Assignment struct {
	Code       string  `json:"code"`
	Buyer      string  `json:"buyer"`
	Complexity float64 `json:"complexity"`
}

// BatchResult is the body of POST /batch.
type BatchResult struct {
	RunID       string             `json:"run_id"`
	Solver      string             `json:"solver"`
	Status      string             `json:"status"`
	MaxLoad     float64            `json:"max_load"`
	Loads       map[string]float64 `json:"loads"`
	DurationMs  float64            `json:"duration_ms"`
	Applied     bool               `json:"applied"`
	Assignments []Assignment       `json:"assignments"`
}

// Stats holds run statistics.
type Stats struct {
	BuyersRegistered int
	Submitted        int
	AutoAssigned     int
	Drafts           int
	Backpressured    int
	Failed           int
	Batches          int
	Approximate      int
	BatchMaxLoad     float64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Defaults applied by Validate to unset fields.
const (
	DefaultBatchSize = 200
	DefaultTimeout   = 30 * time.Second
	DefaultRetries   = 5
)

// Validate fills unset fields and rejects unusable settings.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Buyers < 1:
		return fmt.Errorf("%w: at least one buyer is required", ErrInvalidConfig)
	case c.Dossiers < 0:
		return fmt.Errorf("%w: dossiers must not be negative", ErrInvalidConfig)
	case c.AutoShare < 0 || c.AutoShare > 1:
		return fmt.Errorf("%w: auto share must be within [0, 1], got %g", ErrInvalidConfig, c.AutoShare)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries < 1 {
		c.Retries = DefaultRetries
	}
	return nil
}
