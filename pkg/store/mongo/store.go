package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/refreshd/pkg/refresh"
)

// Collection names.
const (
	BookmarksCollection = "bookmarks"
	LicensesCollection  = "licenses"
	CountersCollection  = "counters"
)

const connectTimeout = 10 * time.Second

// ErrNotFound is returned when a bookmark id does not exist.
var ErrNotFound = errors.New("bookmark not found")

// Store is a MongoDB-backed bookmark store. It implements refresh.Store and
// refresh.Catalog.
type Store struct {
	client    *mongo.Client
	bookmarks *mongo.Collection
	licenses  *mongo.Collection
	counters  *mongo.Collection
	logger    *log.Logger
}

var (
	_ refresh.Store   = (*Store)(nil)
	_ refresh.Catalog = (*Store)(nil)
)

// Open connects to uri, verifies the connection and ensures indexes on the
// given database.
func Open(ctx context.Context, uri, database string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		bookmarks: db.Collection(BookmarksCollection),
		licenses:  db.Collection(LicensesCollection),
		counters:  db.Collection(CountersCollection),
		logger:    logger,
	}
	if err := s.ensureIndexes(cctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	logger.Debug("mongo store ready", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.bookmarks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "last_refresh_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create bookmark indexes: %w", err)
	}
	if _, err := s.licenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "identifier", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create license index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ReadDue returns the bookmarks whose last refresh (or creation, when never
// refreshed) is at or before before, oldest first.
func (s *Store) ReadDue(ctx context.Context, before time.Time) ([]refresh.Record, error) {
	cur, err := s.bookmarks.Aggregate(ctx, duePipeline(before))
	if err != nil {
		return nil, fmt.Errorf("query due bookmarks: %w", err)
	}
	var docs []bookmarkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read due bookmarks: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	recs := make([]refresh.Record, len(docs))
	for i, d := range docs {
		recs[i] = d.record()
	}
	return recs, nil
}

// Get returns one bookmark.
func (s *Store) Get(ctx context.Context, id int64) (refresh.Record, error) {
	var d bookmarkDoc
	err := s.bookmarks.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return refresh.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return refresh.Record{}, fmt.Errorf("get bookmark %d: %w", id, err)
	}
	return d.record(), nil
}

// Write applies patch to bookmark id with a single $set.
func (s *Store) Write(ctx context.Context, id int64, patch refresh.Patch) error {
	filter := bson.D{{Key: "_id", Value: id}}
	set := setDoc(patch)
	if len(set) == 0 {
		n, err := s.bookmarks.CountDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("check bookmark %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil
	}

	res, err := s.bookmarks.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update bookmark %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Insert adds a bookmark and returns its id. Bookmark CRUD belongs to the
// owning application; Insert exists for seeding and tests.
func (s *Store) Insert(ctx context.Context, rec refresh.Record) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	id, err := s.nextID(ctx, BookmarksCollection)
	if err != nil {
		return 0, err
	}
	rec.ID = id
	if _, err := s.bookmarks.InsertOne(ctx, fromRecord(rec)); err != nil {
		return 0, fmt.Errorf("insert bookmark: %w", err)
	}
	return id, nil
}

func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", name, err)
	}
	return counter.Seq, nil
}

// ListForOwner returns the license identifiers in owner's catalog.
func (s *Store) ListForOwner(ctx context.Context, ownerID int64) ([]string, error) {
	cur, err := s.licenses.Find(ctx,
		bson.D{{Key: "owner_id", Value: ownerID}},
		options.Find().SetSort(bson.D{{Key: "identifier", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query licenses: %w", err)
	}
	var docs []licenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read licenses: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.Identifier
	}
	return ids, nil
}

// AddLicense adds identifier to owner's catalog. Adding an existing
// identifier is a no-op.
func (s *Store) AddLicense(ctx context.Context, ownerID int64, identifier string) error {
	doc := licenseDoc{OwnerID: ownerID, Identifier: identifier}
	_, err := s.licenses.UpdateOne(ctx,
		bson.D{{Key: "owner_id", Value: ownerID}, {Key: "identifier", Value: identifier}},
		bson.D{{Key: "$setOnInsert", Value: doc}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("add license %q: %w", identifier, err)
	}
	return nil
}
