package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
	"github.com/shopspring/decimal"
)

// File names inside the data directory.
const (
	RequestsFile = "dossiers.csv"
	BuyersFile   = "buyers.csv"
)

var requestHeader = []string{ //nolint:gochecknoglobals // file layout
	"code", "description", "type", "articles", "foreign_suppliers", "total_suppliers",
	"effort_level", "buyer", "status", "assigned_date", "closed_date",
	"tender_type", "currency", "estimated_amount", "complexity",
}

var buyerHeader = []string{"name", "email"} //nolint:gochecknoglobals // file layout

// CSVStore is a MemoryStore mirrored to two CSV files in a directory.
type CSVStore struct {
	*MemoryStore

	dir           string
	flushInterval time.Duration
	logger        logger.Logger

	persistMu sync.Mutex
	dirty     atomic.Bool

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore loads dir/dossiers.csv and dir/buyers.csv. Missing files
// yield an empty store; the directory is created on first Persist.
func NewCSVStore(ctx context.Context, dir string, opts ...Option) (*CSVStore, error) {
	s := &CSVStore{
		MemoryStore: NewMemoryStore(),
		dir:         dir,
		logger:      logger.Get().Named("csv-store"),
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	buyers, err := readBuyers(filepath.Join(dir, BuyersFile))
	if err != nil {
		return nil, err
	}
	for _, b := range buyers {
		if _, err := s.MemoryStore.AddBuyer(ctx, b.Name, b.Email); err != nil {
			return nil, fmt.Errorf("%s: %w", BuyersFile, err)
		}
	}

	requests, err := readRequests(filepath.Join(dir, RequestsFile))
	if err != nil {
		return nil, err
	}
	for _, r := range requests {
		if err := s.MemoryStore.Insert(ctx, r); err != nil {
			return nil, fmt.Errorf("%s: %w", RequestsFile, err)
		}
	}

	s.logger.Info(ctx, "data loaded",
		logger.String("dir", dir),
		logger.Int("requests", len(requests)),
		logger.Int("buyers", len(buyers)),
	)

	if s.flushInterval > 0 {
		s.startPeriodicFlush(ctx)
	}
	return s, nil
}

// Insert implements RequestStore.
func (s *CSVStore) Insert(ctx context.Context, r model.Request) error {
	if err := s.MemoryStore.Insert(ctx, r); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// Upsert implements RequestStore.
func (s *CSVStore) Upsert(ctx context.Context, r model.Request) error {
	if err := s.MemoryStore.Upsert(ctx, r); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// AddBuyer implements BuyerStore.
func (s *CSVStore) AddBuyer(ctx context.Context, name, email string) (model.Buyer, error) {
	b, err := s.MemoryStore.AddBuyer(ctx, name, email)
	if err != nil {
		return b, err
	}
	s.dirty.Store(true)
	return b, nil
}

// Persist writes both files. Each file is written to a temporary file and
// renamed so readers never see a partial file.
func (s *CSVStore) Persist(ctx context.Context) (err error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordStorePersist(float64(time.Since(start).Microseconds())/1000.0, err)
		if err != nil {
			s.logger.Error(ctx, "persist failed", logger.Error(err))
		}
	}()

	s.dirty.Store(false)
	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("create data dir: %w", err)
	}

	buyers, _ := s.MemoryStore.ListBuyers(ctx)
	requests, _ := s.MemoryStore.List(ctx)

	if err = writeAtomic(filepath.Join(s.dir, BuyersFile), buyerRecords(buyers)); err != nil {
		s.dirty.Store(true)
		return err
	}
	if err = writeAtomic(filepath.Join(s.dir, RequestsFile), requestRecords(requests)); err != nil {
		s.dirty.Store(true)
		return err
	}
	return nil
}

// Close stops the background flush and saves pending changes.
func (s *CSVStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	if s.dirty.Load() {
		return s.Persist(context.Background())
	}
	return nil
}

func (s *CSVStore) startPeriodicFlush(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if s.dirty.Load() {
					_ = s.Persist(ctx)
				}
			}
		}
	}()
}

func writeAtomic(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// readAll returns the data rows of a CSV file after checking its header.
// A missing or empty file has no rows.
func readAll(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	got, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFile, path, err)
	}
	if !validateHeader(got, header) {
		return nil, fmt.Errorf("%w: %s header mismatch, expected %v, got %v", ErrCorruptFile, path, header, got)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFile, path, err)
	}
	return rows, nil
}

func validateHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func readBuyers(path string) ([]model.Buyer, error) {
	rows, err := readAll(path, buyerHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Buyer, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Buyer{Name: row[0], Email: row[1]})
	}
	return out, nil
}

func buyerRecords(buyers []model.Buyer) [][]string {
	out := make([][]string, 0, len(buyers)+1)
	out = append(out, buyerHeader)
	for _, b := range buyers {
		out = append(out, []string{b.Name, b.Email})
	}
	return out
}

func readRequests(path string) ([]model.Request, error) {
	rows, err := readAll(path, requestHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Request, 0, len(rows))
	for i, row := range rows {
		r, err := parseRequest(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %w", ErrCorruptFile, path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRequest(row []string) (model.Request, error) {
	var (
		r   model.Request
		err error
	)
	r.Code = row[0]
	r.Description = row[1]
	if r.Type, err = model.ParseRequestType(row[2]); err != nil {
		return r, err
	}
	if r.Articles, err = atoiEmpty(row[3]); err != nil {
		return r, fmt.Errorf("articles: %w", err)
	}
	if r.ForeignSuppliers, err = atoiEmpty(row[4]); err != nil {
		return r, fmt.Errorf("foreign_suppliers: %w", err)
	}
	if r.TotalSuppliers, err = atoiEmpty(row[5]); err != nil {
		return r, fmt.Errorf("total_suppliers: %w", err)
	}
	if r.EffortLevel, err = atoiEmpty(row[6]); err != nil {
		return r, fmt.Errorf("effort_level: %w", err)
	}
	r.Buyer = row[7]
	if r.Status, err = model.ParseStatus(row[8]); err != nil {
		return r, err
	}
	if row[9] != "" {
		if r.AssignedAt, err = time.Parse(time.RFC3339, row[9]); err != nil {
			return r, fmt.Errorf("assigned_date: %w", err)
		}
	}
	if row[10] != "" {
		closed, err := time.Parse(time.RFC3339, row[10])
		if err != nil {
			return r, fmt.Errorf("closed_date: %w", err)
		}
		r.ClosedAt = &closed
	}
	r.TenderType = row[11]
	r.Currency = row[12]
	if row[13] != "" {
		if r.EstimatedAmount, err = decimal.NewFromString(row[13]); err != nil {
			return r, fmt.Errorf("estimated_amount: %w", err)
		}
	}
	// The aggregator ignores NaN, so a bad score must not block loading.
	if r.Complexity, err = strconv.ParseFloat(row[14], 64); err != nil {
		r.Complexity = math.NaN()
	}
	return r, nil
}

func atoiEmpty(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func requestRecords(requests []model.Request) [][]string {
	out := make([][]string, 0, len(requests)+1)
	out = append(out, requestHeader)
	for _, r := range requests {
		var assigned, closed, amount string
		if !r.AssignedAt.IsZero() {
			assigned = r.AssignedAt.Format(time.RFC3339)
		}
		if r.ClosedAt != nil {
			closed = r.ClosedAt.Format(time.RFC3339)
		}
		if !r.EstimatedAmount.IsZero() {
			amount = r.EstimatedAmount.String()
		}
		out = append(out, []string{
			r.Code,
			r.Description,
			string(r.Type),
			strconv.Itoa(r.Articles),
			strconv.Itoa(r.ForeignSuppliers),
			strconv.Itoa(r.TotalSuppliers),
			strconv.Itoa(r.EffortLevel),
			r.Buyer,
			string(r.Status),
			assigned,
			closed,
			r.TenderType,
			r.Currency,
			amount,
			strconv.FormatFloat(r.Complexity, 'g', -1, 64),
		})
	}
	return out
}
