package migrate

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/enviriot/bsonjs/internal/config"
	"github.com/enviriot/bsonjs/internal/filter"
	"github.com/enviriot/bsonjs/pkg/activity"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	filter   filter.Filter
	window   time.Duration
	logger   *log.Logger
	hooks    activity.Hooks
	location *time.Location
	now      func() time.Time
	runID    string
}

func applyOptions(opts []Option) runConfig {
	cfg := runConfig{
		filter:   filter.MatchAll(),
		window:   config.DefaultHistoryWindow,
		logger:   log.New(io.Discard),
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

// WithFilter selects which topics are migrated.
func WithFilter(f filter.Filter) Option {
	return func(cfg *runConfig) {
		if f != nil {
			cfg.filter = f
		}
	}
}

// WithHistoryWindow migrates log entries no older than window.
func WithHistoryWindow(window time.Duration) Option {
	return func(cfg *runConfig) {
		if window > 0 {
			cfg.window = window
		}
	}
}

// WithLogger sets the run logger. Codec warnings are reported through it.
func WithLogger(logger *log.Logger) Option {
	return func(cfg *runConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithHooks receives activity events for every record and phase.
func WithHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *runConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithLocation sets the zone decoded dates are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(cfg *runConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithClock sets the time source for the history window and substituted
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *runConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(cfg *runConfig) {
		cfg.runID = id
	}
}
