package migrate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/enviriot/bsonjs/internal/filter"
	"github.com/enviriot/bsonjs/pkg/activity"
	"github.com/enviriot/bsonjs/pkg/docstore"
)

type fakeSource struct {
	topics   []docstore.Topic
	logs     []docstore.LogRecord
	arch     []docstore.ArchRecord
	paths    map[bson.ObjectID]string
	resolves int
	since    time.Time
}

func (s *fakeSource) ResolvePath(_ context.Context, id bson.ObjectID) (string, bool, error) {
	s.resolves++
	path, ok := s.paths[id]
	return path, ok, nil
}

func (s *fakeSource) Topics(_ context.Context, fn func(docstore.Topic) error) error {
	for _, t := range s.topics {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) LogRecords(_ context.Context, since time.Time, fn func(docstore.LogRecord) error) error {
	s.since = since
	for _, rec := range s.logs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) ArchRecords(_ context.Context, fn func(docstore.ArchRecord) error) error {
	for _, rec := range s.arch {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

type topicRow struct {
	Path     string
	Manifest string
	State    *string
}

type archRow struct {
	ID    int64
	Value float64
}

type fakeSink struct {
	topics   []topicRow
	logs     []string
	arch     []archRow
	topicErr error
}

func (s *fakeSink) WriteTopic(_ context.Context, path string, manifest, state []byte) (int64, error) {
	if s.topicErr != nil {
		return 0, s.topicErr
	}
	row := topicRow{Path: path, Manifest: string(manifest)}
	if state != nil {
		st := string(state)
		row.State = &st
	}
	s.topics = append(s.topics, row)
	return int64(len(s.topics)) * 10, nil
}

func (s *fakeSink) WriteLog(_ context.Context, _ time.Time, _ int32, message string) error {
	s.logs = append(s.logs, message)
	return nil
}

func (s *fakeSink) WriteArch(_ context.Context, id int64, _ time.Time, value float64) error {
	s.arch = append(s.arch, archRow{ID: id, Value: value})
	return nil
}

func strPtr(s string) *string { return &s }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fakeSource {
	boilerID := bson.NewObjectID()
	src := &fakeSource{
		paths: map[bson.ObjectID]string{boilerID: "/plc/boiler"},
		topics: []docstore.Topic{
			{
				ID:   boilerID,
				Path: "/plc/boiler",
				Manifest: bson.D{
					{Key: "type", Value: "sensor"},
					{Key: "a_002Eb", Value: int32(1)},
				},
				State:    bson.Binary{Data: []byte{0xDE, 0xAD}},
				HasState: true,
			},
			{
				Path: "/plc/pump",
				Manifest: bson.D{
					{Key: "source", Value: boilerID},
					{Key: "alias", Value: boilerID},
				},
			},
		},
		logs: []docstore.LogRecord{{Time: testNow.Add(-time.Hour), Level: 2, Message: "boot"}},
		arch: []docstore.ArchRecord{
			{Path: "/plc/boiler", Value: 1.5},
			{Path: "/plc/boiler", Value: math.NaN()},
			{Path: "/gone", Value: 2},
		},
	}
	return src
}

func TestRun(t *testing.T) {
	src := newFixture()
	dst := &fakeSink{}
	capture := &activity.Recorder{}

	report, err := Run(context.Background(), src, dst,
		WithRunID("run-1"),
		WithClock(func() time.Time { return testNow }),
		WithHooks(capture),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantTopics := []topicRow{
		{Path: "/plc/boiler", Manifest: `{"type":"sensor","a.b":1}`, State: strPtr(`"¤BA3q0="`)},
		{Path: "/plc/pump", Manifest: `{"source":"¤TR/plc/boiler","alias":"¤TR/plc/boiler"}`},
	}
	if diff := cmp.Diff(wantTopics, dst.topics); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"boot"}, dst.logs); diff != "" {
		t.Fatalf("logs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]archRow{{ID: 10, Value: 1.5}}, dst.arch); diff != "" {
		t.Fatalf("archive mismatch (-want +got):\n%s", diff)
	}

	want := PhaseReport{Migrated: 1, Skipped: 2}
	if report.RunID != "run-1" || report.Topics.Migrated != 2 || report.Logs.Migrated != 1 || report.Archive != want {
		t.Fatalf("unexpected report %+v", report)
	}
	if !src.since.Equal(testNow.Add(-14 * 24 * time.Hour)) {
		t.Fatalf("history window start = %v", src.since)
	}
	if src.resolves != 1 {
		t.Fatalf("expected one resolver lookup per id per run, got %d", src.resolves)
	}

	verbs := map[string]int{}
	for _, e := range capture.Events() {
		if e.RunID != "run-1" || !e.OccurredAt.Equal(testNow) {
			t.Fatalf("event without run defaults: %+v", e)
		}
		verbs[e.Verb]++
	}
	wantVerbs := map[string]int{
		activity.VerbRecordMigrated: 4,
		activity.VerbRecordSkipped:  2,
		activity.VerbPhaseFinished:  3,
	}
	if diff := cmp.Diff(wantVerbs, verbs); diff != "" {
		t.Fatalf("event verbs mismatch (-want +got):\n%s", diff)
	}
	if n := capture.Count(activity.VerbRecordSkipped, activity.PhaseArchive); n != 2 {
		t.Fatalf("archive skips = %d", n)
	}
}

func TestRunUnknownReferenceFailsOnlyThatTopic(t *testing.T) {
	src := newFixture()
	src.topics = append([]docstore.Topic{{
		Path:     "/broken",
		Manifest: bson.D{{Key: "link", Value: bson.NewObjectID()}},
	}}, src.topics...)
	src.arch = append(src.arch, docstore.ArchRecord{Path: "/broken", Value: 3})
	dst := &fakeSink{}
	capture := &activity.Recorder{}

	report, err := Run(context.Background(), src, dst, WithHooks(capture))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Topics.Failed != 1 || report.Topics.Migrated != 2 {
		t.Fatalf("unexpected topic counts %+v", report.Topics)
	}
	if diff := cmp.Diff([]string{"/broken"}, report.FailedPaths); diff != "" {
		t.Fatalf("failed paths mismatch (-want +got):\n%s", diff)
	}
	if _, ok := report.IDs.Lookup("/broken"); ok {
		t.Fatalf("failed topic must not get an id")
	}
	if report.Archive.Skipped != 3 {
		t.Fatalf("archive samples of the failed topic must be skipped, got %+v", report.Archive)
	}

	if diff := cmp.Diff([]string{"/broken"}, capture.Paths(activity.VerbRecordFailed)); diff != "" {
		t.Fatalf("failure events mismatch (-want +got):\n%s", diff)
	}
	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Fatalf("generated run id: %v", err)
	}
}

func TestRunFilter(t *testing.T) {
	src := newFixture()
	dst := &fakeSink{}
	f, err := filter.New(filter.EngineExpr, `manifest.type == "sensor"`)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	report, err := Run(context.Background(), src, dst, WithFilter(f))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Topics.Migrated != 1 || report.Topics.Skipped != 1 {
		t.Fatalf("unexpected topic counts %+v", report.Topics)
	}
	if len(dst.topics) != 1 || dst.topics[0].Path != "/plc/boiler" {
		t.Fatalf("unexpected written topics %+v", dst.topics)
	}
}

func TestRunSinkFailureAborts(t *testing.T) {
	src := newFixture()
	boom := errors.New("disk full")
	dst := &fakeSink{topicErr: boom}

	report, err := Run(context.Background(), src, dst)
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if report == nil || report.Topics.Migrated != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(dst.logs) != 0 {
		t.Fatalf("later phases must not run after an abort")
	}
}

func TestRunCanceled(t *testing.T) {
	src := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, src, &fakeSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIDMap(t *testing.T) {
	var nilMap *IDMap
	if _, ok := nilMap.Lookup("/a"); ok || nilMap.Len() != 0 {
		t.Fatalf("nil map must be empty")
	}
	m := NewIDMap()
	m.Put("/a", 1)
	m.Put("/a", 2)
	if id, ok := m.Lookup("/a"); !ok || id != 2 || m.Len() != 1 {
		t.Fatalf("unexpected map state id=%d ok=%v len=%d", id, ok, m.Len())
	}
}
