// Package docstore reads topics, log history and archived samples from the
// document store being migrated.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ObjectsCollection = "objects"
	StatesCollection  = "states"
	HistoryCollection = "history"
	ArchiveCollection = "archive"
)

// ErrMissingCollection reports that a required collection does not exist.
var ErrMissingCollection = errors.New("docstore: missing collection")

// Collection is the subset of *mongo.Collection the store reads through.
type Collection interface {
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
}

// Collections groups the collections a Store reads. History may be nil.
type Collections struct {
	Objects Collection
	States  Collection
	History Collection
	Archive Collection
}

// Store reads the source collections.
type Store struct {
	objects Collection
	states  Collection
	history Collection
	archive Collection
}

// New builds a Store over already opened collections.
func New(c Collections) (*Store, error) {
	if c.Objects == nil {
		return nil, fmt.Errorf("docstore: collection %q: %w", ObjectsCollection, ErrMissingCollection)
	}
	if c.States == nil {
		return nil, fmt.Errorf("docstore: collection %q: %w", StatesCollection, ErrMissingCollection)
	}
	return &Store{
		objects: c.Objects,
		states:  c.States,
		history: c.History,
		archive: c.Archive,
	}, nil
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	archive *mongo.Database
}

// WithArchiveDatabase reads the archive collection from db instead of the
// main database.
func WithArchiveDatabase(db *mongo.Database) Option {
	return func(cfg *openConfig) {
		cfg.archive = db
	}
}

// Connect opens a client for uri and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	return client, nil
}

// Open checks that db holds the objects and states collections and returns a
// Store over them. The history collection is optional.
func Open(ctx context.Context, db *mongo.Database, opts ...Option) (*Store, error) {
	cfg := openConfig{archive: db}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("docstore: list collections: %w", err)
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, name := range []string{ObjectsCollection, StatesCollection} {
		if !present[name] {
			return nil, fmt.Errorf("docstore: collection %q in %s: %w", name, db.Name(), ErrMissingCollection)
		}
	}
	c := Collections{
		Objects: db.Collection(ObjectsCollection),
		States:  db.Collection(StatesCollection),
		Archive: cfg.archive.Collection(ArchiveCollection),
	}
	if present[HistoryCollection] {
		c.History = db.Collection(HistoryCollection)
	}
	return New(c)
}

// Topic is a raw object entry paired with its state. Manifest and State are
// undecoded document values.
type Topic struct {
	ID       bson.ObjectID
	Path     string
	Manifest any
	State    any
	HasState bool
}

// LogRecord is one entry of the history collection.
type LogRecord struct {
	Time    time.Time
	Level   int32
	Message string
}

// ArchRecord is one archived sample.
type ArchRecord struct {
	Time  time.Time
	Path  string
	Value float64
}

type objectDoc struct {
	ID    bson.ObjectID `bson:"_id"`
	Path  string        `bson:"p"`
	Value any           `bson:"v"`
}

type stateDoc struct {
	Value any `bson:"v"`
}

type historyDoc struct {
	Time    bson.DateTime `bson:"t"`
	Level   int32         `bson:"l"`
	Message string        `bson:"m"`
}

type archiveDoc struct {
	Time  bson.DateTime `bson:"t"`
	Path  string        `bson:"p"`
	Value float64       `bson:"v"`
}

// Topics calls fn for every object ordered by path. Iteration stops at the
// first error fn returns.
func (s *Store) Topics(ctx context.Context, fn func(Topic) error) error {
	cursor, err := s.objects.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "p", Value: 1}}))
	if err != nil {
		return fmt.Errorf("docstore: find objects: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc objectDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("docstore: decode object: %w", err)
		}
		topic := Topic{ID: doc.ID, Path: doc.Path, Manifest: doc.Value}
		state, ok, err := s.state(ctx, doc.ID)
		if err != nil {
			return err
		}
		topic.State, topic.HasState = state, ok
		if err := fn(topic); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("docstore: iterate objects: %w", err)
	}
	return nil
}

func (s *Store) state(ctx context.Context, id bson.ObjectID) (any, bool, error) {
	var doc stateDoc
	err := s.states.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("docstore: find state %s: %w", id.Hex(), err)
	}
	return doc.Value, true, nil
}

// LogRecords calls fn for every history entry newer than since, oldest
// first. It does nothing when the store has no history collection.
func (s *Store) LogRecords(ctx context.Context, since time.Time, fn func(LogRecord) error) error {
	if s.history == nil {
		return nil
	}
	filter := bson.D{{Key: "t", Value: bson.D{{Key: "$gt", Value: bson.NewDateTimeFromTime(since)}}}}
	cursor, err := s.history.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "t", Value: 1}}))
	if err != nil {
		return fmt.Errorf("docstore: find history: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc historyDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("docstore: decode history: %w", err)
		}
		if err := fn(LogRecord{Time: doc.Time.Time(), Level: doc.Level, Message: doc.Message}); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("docstore: iterate history: %w", err)
	}
	return nil
}

// ArchRecords calls fn for every archived sample ordered by time.
func (s *Store) ArchRecords(ctx context.Context, fn func(ArchRecord) error) error {
	if s.archive == nil {
		return nil
	}
	cursor, err := s.archive.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "t", Value: 1}}))
	if err != nil {
		return fmt.Errorf("docstore: find archive: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc archiveDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("docstore: decode archive: %w", err)
		}
		if err := fn(ArchRecord{Time: doc.Time.Time(), Path: doc.Path, Value: doc.Value}); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("docstore: iterate archive: %w", err)
	}
	return nil
}

// ResolvePath returns the path stored on the object with the given id. An
// object whose path field is not a string counts as not found.
func (s *Store) ResolvePath(ctx context.Context, id bson.ObjectID) (string, bool, error) {
	var doc bson.D
	err := s.objects.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("docstore: find object %s: %w", id.Hex(), err)
	}
	for _, elem := range doc {
		if elem.Key == "p" {
			path, ok := elem.Value.(string)
			return path, ok, nil
		}
	}
	return "", false, nil
}
