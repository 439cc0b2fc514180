// Package dedupe reserves dossier codes so a code is never issued or
// accepted twice, even while the write that stores it is still queued.
package dedupe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CodeDateLayout is the date part of generated codes.
const CodeDateLayout = "20060102"

// Reserver tracks dossier codes in use.
type Reserver interface {
	// Reserve atomically checks whether code is taken and takes it if not.
	// Returns true if the code was already taken.
	Reserve(ctx context.Context, code string) bool

	// Release frees a code whose dossier was never stored
	// (e.g. queue backpressure).
	Release(ctx context.Context, code string)

	// Next reserves and returns the next free code for day,
	// formatted PREFIX-YYYYMMDD-NNN.
	Next(ctx context.Context, day time.Time) string

	Size() int64
}

type inMemoryReserver struct {
	mu     sync.Mutex
	taken  map[string]struct{}
	seq    map[string]int // day -> highest sequence handed out or seen
	prefix string
	size   atomic.Int64
}

// NewInMemoryReserver creates a reserver seeded with the given options.
func NewInMemoryReserver(opts ...Option) Reserver {
	r := &inMemoryReserver{
		taken:  make(map[string]struct{}),
		seq:    make(map[string]int),
		prefix: "DA",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *inMemoryReserver) Reserve(_ context.Context, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.take(code)
}

func (r *inMemoryReserver) Release(_ context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.taken[code]; ok {
		delete(r.taken, code)
		r.size.Add(-1)
	}
}

func (r *inMemoryReserver) Next(_ context.Context, day time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := day.Format(CodeDateLayout)
	n := r.seq[key]
	for {
		n++
		code := fmt.Sprintf("%s-%s-%03d", r.prefix, key, n)
		if r.take(code) {
			return code
		}
	}
}

func (r *inMemoryReserver) Size() int64 {
	return r.size.Load()
}

// take records code and reports whether it was free. Caller holds r.mu.
func (r *inMemoryReserver) take(code string) bool {
	if _, ok := r.taken[code]; ok {
		return false
	}
	r.taken[code] = struct{}{}
	r.size.Add(1)

	if day, n, ok := r.parse(code); ok && n > r.seq[day] {
		r.seq[day] = n
	}
	return true
}

// parse splits a generated code into its day and sequence.
func (r *inMemoryReserver) parse(code string) (string, int, bool) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != r.prefix || len(parts[1]) != len(CodeDateLayout) {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return parts[1], n, true
}
