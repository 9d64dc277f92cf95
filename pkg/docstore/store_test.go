package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// fakeCollection serves documents in the order given and records the
// filters it was queried with. FindOne matches on _id.
type fakeCollection struct {
	docs    []bson.D
	filters []any
	findErr error
}

func (f *fakeCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	f.filters = append(f.filters, filter)
	if f.findErr != nil {
		return nil, f.findErr
	}
	docs := make([]any, len(f.docs))
	for i, doc := range f.docs {
		docs[i] = doc
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	f.filters = append(f.filters, filter)
	want := lookupID(filter)
	for _, doc := range f.docs {
		if lookupID(doc) == want {
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func lookupID(v any) bson.ObjectID {
	doc, ok := v.(bson.D)
	if !ok {
		return bson.ObjectID{}
	}
	for _, elem := range doc {
		if elem.Key == "_id" {
			id, _ := elem.Value.(bson.ObjectID)
			return id
		}
	}
	return bson.ObjectID{}
}

func TestNewRequiresObjectsAndStates(t *testing.T) {
	if _, err := New(Collections{States: &fakeCollection{}}); !errors.Is(err, ErrMissingCollection) {
		t.Fatalf("expected ErrMissingCollection without objects, got %v", err)
	}
	if _, err := New(Collections{Objects: &fakeCollection{}}); !errors.Is(err, ErrMissingCollection) {
		t.Fatalf("expected ErrMissingCollection without states, got %v", err)
	}
}

func TestTopicsPairsStates(t *testing.T) {
	withState := bson.NewObjectID()
	withoutState := bson.NewObjectID()
	objects := &fakeCollection{docs: []bson.D{
		{{Key: "_id", Value: withState}, {Key: "p", Value: "/a"}, {Key: "v", Value: bson.D{{Key: "type", Value: "x"}}}},
		{{Key: "_id", Value: withoutState}, {Key: "p", Value: "/b"}, {Key: "v", Value: bson.D{}}},
	}}
	states := &fakeCollection{docs: []bson.D{
		{{Key: "_id", Value: withState}, {Key: "v", Value: 21.5}},
	}}
	store, err := New(Collections{Objects: objects, States: states})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []Topic
	err = store.Topics(context.Background(), func(topic Topic) error {
		got = append(got, topic)
		return nil
	})
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(got))
	}
	if got[0].Path != "/a" || got[0].ID != withState || !got[0].HasState || got[0].State != 21.5 {
		t.Fatalf("unexpected first topic %+v", got[0])
	}
	if diff := cmp.Diff(bson.D{{Key: "type", Value: "x"}}, got[0].Manifest); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
	if got[1].Path != "/b" || got[1].HasState || got[1].State != nil {
		t.Fatalf("unexpected second topic %+v", got[1])
	}
}

func TestTopicsStopsOnCallbackError(t *testing.T) {
	objects := &fakeCollection{docs: []bson.D{
		{{Key: "_id", Value: bson.NewObjectID()}, {Key: "p", Value: "/a"}},
		{{Key: "_id", Value: bson.NewObjectID()}, {Key: "p", Value: "/b"}},
	}}
	store, err := New(Collections{Objects: objects, States: &fakeCollection{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := errors.New("stop")
	calls := 0
	err = store.Topics(context.Background(), func(Topic) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("Topics = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestTopicsFindError(t *testing.T) {
	boom := errors.New("offline")
	store, err := New(Collections{Objects: &fakeCollection{findErr: boom}, States: &fakeCollection{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Topics(context.Background(), func(Topic) error { return nil }); !errors.Is(err, boom) {
		t.Fatalf("expected find error, got %v", err)
	}
}

func TestLogRecords(t *testing.T) {
	since := time.Date(2024, 4, 17, 0, 0, 0, 0, time.UTC)
	when := since.Add(time.Hour)
	history := &fakeCollection{docs: []bson.D{
		{{Key: "t", Value: bson.NewDateTimeFromTime(when)}, {Key: "l", Value: int32(2)}, {Key: "m", Value: "boot"}},
	}}
	store, err := New(Collections{Objects: &fakeCollection{}, States: &fakeCollection{}, History: history})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []LogRecord
	if err := store.LogRecords(context.Background(), since, func(rec LogRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("LogRecords: %v", err)
	}
	if len(got) != 1 || !got[0].Time.Equal(when) || got[0].Level != 2 || got[0].Message != "boot" {
		t.Fatalf("unexpected records %+v", got)
	}
	wantFilter := bson.D{{Key: "t", Value: bson.D{{Key: "$gt", Value: bson.NewDateTimeFromTime(since)}}}}
	if diff := cmp.Diff(wantFilter, history.filters[0]); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestLogRecordsWithoutHistory(t *testing.T) {
	store, err := New(Collections{Objects: &fakeCollection{}, States: &fakeCollection{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	called := false
	if err := store.LogRecords(context.Background(), time.Now(), func(LogRecord) error {
		called = true
		return nil
	}); err != nil || called {
		t.Fatalf("LogRecords without history = %v, called=%v", err, called)
	}
}

func TestArchRecords(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	archive := &fakeCollection{docs: []bson.D{
		{{Key: "t", Value: bson.NewDateTimeFromTime(when)}, {Key: "p", Value: "/a"}, {Key: "v", Value: 1.25}},
	}}
	store, err := New(Collections{Objects: &fakeCollection{}, States: &fakeCollection{}, Archive: archive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []ArchRecord
	if err := store.ArchRecords(context.Background(), func(rec ArchRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("ArchRecords: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/a" || got[0].Value != 1.25 || !got[0].Time.Equal(when) {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestResolvePath(t *testing.T) {
	known := bson.NewObjectID()
	numeric := bson.NewObjectID()
	objects := &fakeCollection{docs: []bson.D{
		{{Key: "_id", Value: known}, {Key: "p", Value: "/plc/boiler"}},
		{{Key: "_id", Value: numeric}, {Key: "p", Value: int32(5)}},
	}}
	store, err := New(Collections{Objects: objects, States: &fakeCollection{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	path, ok, err := store.ResolvePath(ctx, known)
	if err != nil || !ok || path != "/plc/boiler" {
		t.Fatalf("ResolvePath(known) = %q, %v, %v", path, ok, err)
	}
	if _, ok, err := store.ResolvePath(ctx, numeric); err != nil || ok {
		t.Fatalf("non-string path should not resolve, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.ResolvePath(ctx, bson.NewObjectID()); err != nil || ok {
		t.Fatalf("unknown id should not resolve, ok=%v err=%v", ok, err)
	}
}
