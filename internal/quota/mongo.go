package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const defaultMongoTimeout = 5 * time.Second

// MongoLedger stores daily counters in a MongoDB collection. The
// check-and-increment is a single FindOneAndUpdate with an aggregation
// pipeline, so concurrent consumers see a consistent counter.
type MongoLedger struct {
	client     *mongo.Client
	collection *mongo.Collection
	uri        string
	dbName     string
	limit      int
	now        func() time.Time
}

// NewMongoLedger creates a MongoDB-backed ledger. Call Initialize before use.
func NewMongoLedger(uri, dbName string, limit int) *MongoLedger {
	if dbName == "" {
		dbName = "svgforge"
	}
	if limit <= 0 {
		limit = 3
	}
	return &MongoLedger{uri: uri, dbName: dbName, limit: limit, now: time.Now}
}

// Initialize connects to MongoDB and prepares the collection.
func (m *MongoLedger) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(m.uri)
	clientOptions.SetMaxPoolSize(10)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.collection = client.Database(m.dbName).Collection("trial_quota")
	return nil
}

func (m *MongoLedger) Consume(ctx context.Context, userID string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	today := dayKey(m.now())

	// Single pipeline: stale day resets the counter to 1, a fresh day
	// increments only while under the limit. All field references read the
	// pre-update document, so day and used stay consistent.
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "day", Value: today},
			{Key: "used", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$ne", Value: bson.A{"$day", today}}},
				1,
				bson.D{{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$lt", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$used", 0}}}, m.limit}}},
					bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$used", 0}}}, 1}}},
					"$used",
				}}}},
			}}},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var before struct {
		Day  string `bson:"day"`
		Used int    `bson:"used"`
	}
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Upserted: first use of the day.
		return Decision{Allowed: true, Used: 1, Limit: m.limit, Remaining: remaining(m.limit, 1)}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("quota consume: %w", err)
	}

	if before.Day != today {
		return Decision{Allowed: true, Used: 1, Limit: m.limit, Remaining: remaining(m.limit, 1)}, nil
	}
	if before.Used >= m.limit {
		return Decision{Allowed: false, Used: before.Used, Limit: m.limit}, nil
	}
	used := before.Used + 1
	return Decision{Allowed: true, Used: used, Limit: m.limit, Remaining: remaining(m.limit, used)}, nil
}

func (m *MongoLedger) Peek(ctx context.Context, userID string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	today := dayKey(m.now())
	var doc struct {
		Day  string `bson:"day"`
		Used int    `bson:"used"`
	}
	err := m.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && doc.Day != today) {
		return Decision{Allowed: true, Used: 0, Limit: m.limit, Remaining: m.limit}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("quota peek: %w", err)
	}
	return Decision{
		Allowed:   doc.Used < m.limit,
		Used:      doc.Used,
		Limit:     m.limit,
		Remaining: remaining(m.limit, doc.Used),
	}, nil
}

func (m *MongoLedger) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
