package repository

import (
	"time"

	"github.com/okian/achat/pkg/logger"
)

// Option applies a configuration option to the CSVStore.
type Option func(*CSVStore)

// WithFlushInterval enables a background flush of unsaved changes.
// Zero disables it; Persist must then be called explicitly.
func WithFlushInterval(interval time.Duration) Option {
	return func(s *CSVStore) {
		if interval >= 0 {
			s.flushInterval = interval
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *CSVStore) {
		if l != nil {
			s.logger = l
		}
	}
}
