package bsonjs

import "time"

// Option configures a Codec.
type Option func(*config)

type config struct {
	logger   Logger
	resolver PathResolver
	location *time.Location
	now      func() time.Time
}

func applyOptions(opts []Option) config {
	cfg := config{
		logger:   noopLogger{},
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger receives warnings for malformed binary tags and timestamps.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithResolver sets the index used to turn ObjectIDs into paths while
// decoding. Without one every ObjectID fails with ErrUnknownReference.
func WithResolver(resolver PathResolver) Option {
	return func(cfg *config) {
		cfg.resolver = resolver
	}
}

// WithLocation sets the zone decoded dates are expressed in. The default is
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(cfg *config) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithClock overrides the time source used when a timestamp string has to be
// replaced by the current time.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Codec converts between Values, BSON values and tunnelled JSON text.
// A Codec holds no mutable state of its own; its resolver may.
type Codec struct {
	cfg config
}

// New constructs a Codec.
func New(opts ...Option) *Codec {
	return &Codec{cfg: applyOptions(opts)}
}
