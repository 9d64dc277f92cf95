// Package logging builds the process logger and adapts it to the codec and
// filter logging hooks.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/enviriot/bsonjs"
	"github.com/enviriot/bsonjs/internal/filter"
)

// New returns a leveled logger writing to w. An unknown level falls back to
// info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
}

// CodecLogger reports recovered codec warnings at warn level.
func CodecLogger(logger *log.Logger) bsonjs.Logger {
	return bsonjs.LoggerFunc(func(w bsonjs.Warning) {
		logger.Warn(w.Kind.Error(), "key", w.Key, "input", w.Input, "err", w.Err)
	})
}

// FilterLogger reports filter decisions at debug level.
func FilterLogger(logger *log.Logger) filter.Logger {
	return filter.LoggerFunc(func(e filter.Evaluation) {
		kv := []any{"engine", e.Engine, "path", e.Path, "outcome", e.Outcome(), "duration", e.Duration}
		if e.Err != nil {
			kv = append(kv, "err", e.Err)
		}
		logger.Debug("filter evaluated", kv...)
	})
}
