// Package mongo is a memory.Store on MongoDB.
//
// Documents look like {_id: ObjectId, text, embedding: [double], timestamp: date}
// and ids are the 24-character hex form of the ObjectId.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config holds MongoDB backend configuration.
type Config struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	Collection     string        `yaml:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // server selection timeout
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
}

// DefaultConfig returns the defaults for a local MongoDB.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "smart_stubs_db",
		Collection:     "memories",
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    10,
	}
}

// document is the stored form of a record.
type document struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	Embedding []float64          `bson:"embedding"`
	Timestamp time.Time          `bson:"timestamp"`
}

// MongoStore implements memory.Store on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects and pings the server within ConnectTimeout.
func New(cfg Config) (*MongoStore, error) {
	def := DefaultConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = def.MaxPoolSize
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w: connect: %w", memory.ErrConnection, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: %w: ping: %w", memory.ErrConnection, err)
	}

	log.Printf("[MONGO] Connected to %s.%s", cfg.Database, cfg.Collection)
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Insert stores a new document. ObjectIds created in one process increase,
// so _id order is insertion order.
func (s *MongoStore) Insert(ctx context.Context, rec *memory.Record) (string, error) {
	doc := document{
		ID:        primitive.NewObjectID(),
		Text:      rec.Text,
		Embedding: toFloat64(rec.Embedding),
		Timestamp: rec.Timestamp.UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo: insert: %w", err)
	}
	return doc.ID.Hex(), nil
}

// FindAll returns every document sorted by _id.
func (s *MongoStore) FindAll(ctx context.Context) ([]*memory.Record, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode: %w", err)
	}

	records := make([]*memory.Record, len(docs))
	for i, doc := range docs {
		records[i] = &memory.Record{
			ID:        doc.ID.Hex(),
			Text:      doc.Text,
			Embedding: toFloat32(doc.Embedding),
			Timestamp: doc.Timestamp.UTC(),
		}
	}
	return records, nil
}

// Replace sets text and embedding and raises the timestamp with $max in one
// UpdateOne. A matched document counts as updated even if nothing changed.
func (s *MongoStore) Replace(ctx context.Context, id string, rec *memory.Record) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("mongo: %w: id %q: %v", memory.ErrInvalidArgument, id, err)
	}

	update := bson.M{
		"$set": bson.M{
			"text":      rec.Text,
			"embedding": toFloat64(rec.Embedding),
		},
		"$max": bson.M{
			"timestamp": rec.Timestamp.UTC(),
		},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return false, fmt.Errorf("mongo: update %s: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	return nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
