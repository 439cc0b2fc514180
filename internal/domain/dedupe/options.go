package dedupe

// Option applies a configuration option to the reserver.
type Option func(*inMemoryReserver)

// WithPrefix sets the prefix of generated codes. Defaults to "DA".
func WithPrefix(prefix string) Option {
	return func(r *inMemoryReserver) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithCodes marks existing codes as taken, typically those already stored.
func WithCodes(codes ...string) Option {
	return func(r *inMemoryReserver) {
		for _, c := range codes {
			if c != "" {
				r.take(c)
			}
		}
	}
}
