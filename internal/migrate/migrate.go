// Package migrate copies topics, log history and archive samples from the
// document store into the SQL target, translating values through the codec.
package migrate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/enviriot/bsonjs"
	"github.com/enviriot/bsonjs/internal/filter"
	"github.com/enviriot/bsonjs/internal/logging"
	"github.com/enviriot/bsonjs/pkg/activity"
	"github.com/enviriot/bsonjs/pkg/docstore"
)

// Source is the document store being migrated. It also resolves object ids
// to paths.
type Source interface {
	bsonjs.PathResolver
	Topics(ctx context.Context, fn func(docstore.Topic) error) error
	LogRecords(ctx context.Context, since time.Time, fn func(docstore.LogRecord) error) error
	ArchRecords(ctx context.Context, fn func(docstore.ArchRecord) error) error
}

// Sink is the SQL target.
type Sink interface {
	WriteTopic(ctx context.Context, path string, manifest, state []byte) (int64, error)
	WriteLog(ctx context.Context, dt time.Time, level int32, message string) error
	WriteArch(ctx context.Context, id int64, dt time.Time, value float64) error
}

// PhaseReport counts the outcome of every record in one phase.
type PhaseReport struct {
	Migrated int
	Skipped  int
	Failed   int
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Topics  PhaseReport
	Logs    PhaseReport
	Archive PhaseReport
	// FailedPaths lists topics whose translation failed, in source order.
	FailedPaths []string
	IDs         *IDMap
}

type runner struct {
	cfg     runConfig
	src     Source
	dst     Sink
	codec   *bsonjs.Codec
	emitter *activity.Emitter
	logger  *log.Logger
	report  *Report
}

// Run migrates every phase in order. A topic that cannot be translated or is
// rejected by its filter is counted and skipped; a failed write to dst or a
// failed read from src ends the run. The returned report is valid in both
// cases.
func Run(ctx context.Context, src Source, dst Sink, opts ...Option) (*Report, error) {
	cfg := applyOptions(opts)
	runID := cfg.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := cfg.logger.With("run", runID)
	r := &runner{
		cfg: cfg,
		src: src,
		dst: dst,
		codec: bsonjs.New(
			bsonjs.WithResolver(bsonjs.NewPassCache(src)),
			bsonjs.WithLogger(logging.CodecLogger(logger)),
			bsonjs.WithLocation(cfg.location),
			bsonjs.WithClock(cfg.now),
		),
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{Enabled: true, RunID: runID, Now: cfg.now}),
		logger:  logger,
		report:  &Report{RunID: runID, IDs: NewIDMap()},
	}

	logger.Info("migration started")
	phases := []struct {
		name string
		run  func(context.Context) error
		rep  *PhaseReport
		msg  string
	}{
		{name: activity.PhaseTopics, run: r.topics, rep: &r.report.Topics, msg: "topics transfer finished"},
		{name: activity.PhaseLogs, run: r.logs, rep: &r.report.Logs, msg: "logs transfer finished"},
		{name: activity.PhaseArchive, run: r.archive, rep: &r.report.Archive, msg: "arch transfer finished"},
	}
	for _, phase := range phases {
		if err := phase.run(ctx); err != nil {
			logger.Error("migration aborted", "phase", phase.name, "err", err)
			return r.report, fmt.Errorf("migrate: %s: %w", phase.name, err)
		}
		logger.Info(phase.msg, "migrated", phase.rep.Migrated, "skipped", phase.rep.Skipped, "failed", phase.rep.Failed)
		r.emit(ctx, activity.BuildPhaseFinishedEvent(runID, phase.name, phase.rep.Migrated, phase.rep.Skipped, phase.rep.Failed))
	}
	logger.Info("migration finished", "topics", r.report.Topics.Migrated, "failed", len(r.report.FailedPaths))
	return r.report, nil
}

func (r *runner) emit(ctx context.Context, event activity.Event) {
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.logger.Warn("activity hook failed", "verb", event.Verb, "err", err)
	}
}

func (r *runner) topics(ctx context.Context) error {
	rep := &r.report.Topics
	return r.src.Topics(ctx, func(t docstore.Topic) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		manifest, state, err := r.translate(ctx, t)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			rep.Failed++
			r.report.FailedPaths = append(r.report.FailedPaths, t.Path)
			r.logger.Error("topic translation failed", "path", t.Path, "err", err)
			r.emit(ctx, activity.BuildRecordFailedEvent(activity.RecordEventInput{
				RunID: r.report.RunID, Phase: activity.PhaseTopics, Path: t.Path, Err: err,
			}))
			return nil
		}
		ok, err := r.cfg.filter.Match(filter.Record{Path: t.Path, Manifest: manifest.value, State: state.value})
		if err != nil {
			rep.Failed++
			r.report.FailedPaths = append(r.report.FailedPaths, t.Path)
			r.logger.Error("topic filter failed", "path", t.Path, "err", err)
			r.emit(ctx, activity.BuildRecordFailedEvent(activity.RecordEventInput{
				RunID: r.report.RunID, Phase: activity.PhaseTopics, Path: t.Path, Err: err,
			}))
			return nil
		}
		if !ok {
			rep.Skipped++
			r.emit(ctx, activity.BuildRecordSkippedEvent(activity.RecordEventInput{
				RunID: r.report.RunID, Phase: activity.PhaseTopics, Path: t.Path, Reason: "filtered",
			}))
			return nil
		}

		id, err := r.dst.WriteTopic(ctx, t.Path, manifest.text, state.text)
		if err != nil {
			return err
		}
		r.report.IDs.Put(t.Path, id)
		rep.Migrated++
		r.emit(ctx, activity.BuildRecordMigratedEvent(activity.RecordEventInput{
			RunID: r.report.RunID, Phase: activity.PhaseTopics, Path: t.Path,
			Metadata: map[string]any{"id": id},
		}))
		return nil
	})
}

// translated is a decoded value together with its JSON tunnel text. text is
// nil for an undefined value.
type translated struct {
	value bsonjs.Value
	text  []byte
}

func (r *runner) translate(ctx context.Context, t docstore.Topic) (*translated, *translated, error) {
	mv, err := r.codec.Decode(ctx, t.Manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: %w", err)
	}
	mt, err := r.codec.Stringify(mv)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: %w", err)
	}
	manifest := &translated{value: mv, text: mt}

	state := &translated{value: bsonjs.UndefinedValue()}
	if !t.HasState {
		return manifest, state, nil
	}
	sv, err := r.codec.Decode(ctx, t.State)
	if err != nil {
		return nil, nil, fmt.Errorf("state: %w", err)
	}
	st, err := r.codec.Stringify(sv)
	if err != nil {
		return nil, nil, fmt.Errorf("state: %w", err)
	}
	state.value, state.text = sv, st
	return manifest, state, nil
}

func (r *runner) logs(ctx context.Context) error {
	rep := &r.report.Logs
	since := r.cfg.now().Add(-r.cfg.window)
	return r.src.LogRecords(ctx, since, func(rec docstore.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.dst.WriteLog(ctx, rec.Time, rec.Level, rec.Message); err != nil {
			return err
		}
		rep.Migrated++
		r.emit(ctx, activity.BuildRecordMigratedEvent(activity.RecordEventInput{
			RunID: r.report.RunID, Phase: activity.PhaseLogs, Path: rec.Time.In(r.cfg.location).Format(time.DateTime),
		}))
		return nil
	})
}

func (r *runner) archive(ctx context.Context) error {
	rep := &r.report.Archive
	return r.src.ArchRecords(ctx, func(rec docstore.ArchRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if math.IsNaN(rec.Value) {
			rep.Skipped++
			r.emit(ctx, activity.BuildRecordSkippedEvent(activity.RecordEventInput{
				RunID: r.report.RunID, Phase: activity.PhaseArchive, Path: rec.Path, Reason: "nan",
			}))
			return nil
		}
		id, ok := r.report.IDs.Lookup(rec.Path)
		if !ok {
			rep.Skipped++
			r.logger.Debug("archive sample has no topic id", "path", rec.Path)
			r.emit(ctx, activity.BuildRecordSkippedEvent(activity.RecordEventInput{
				RunID: r.report.RunID, Phase: activity.PhaseArchive, Path: rec.Path, Reason: "no id",
			}))
			return nil
		}
		if err := r.dst.WriteArch(ctx, id, rec.Time, rec.Value); err != nil {
			return err
		}
		rep.Migrated++
		r.emit(ctx, activity.BuildRecordMigratedEvent(activity.RecordEventInput{
			RunID: r.report.RunID, Phase: activity.PhaseArchive, Path: rec.Path,
		}))
		return nil
	})
}
