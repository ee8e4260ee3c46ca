package review

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection is the MongoDB collection holding decisions.
const DefaultCollection = "decisions"

// MongoStore keeps the ledger in MongoDB, one document per suggestion. A
// unique index on suggestion_id enforces single decisions.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoConfig locates the ledger.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// NewMongoStore connects to MongoDB and ensures the ledger's index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "rootline"
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "suggestion_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("suggestion_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("decided_at_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("create ledger indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Record(ctx context.Context, d Decision) error {
	_, err := s.coll.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyDecided
	}
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Decision, error) {
	var d Decision
	err := s.coll.FindOne(ctx, bson.D{{Key: "suggestion_id", Value: id}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find decision: %w", err)
	}
	return &d, nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]Decision, error) {
	opts := options.Find().SetSort(bson.D{{Key: "decided_at", Value: -1}, {Key: "suggestion_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	var out []Decision
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode decisions: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
