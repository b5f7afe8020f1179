// Package backup mirrors post-sync indicator summaries into MongoDB Atlas.
// The store is optional: without a configured URI every operation is a
// logged no-op and sync runs proceed unaffected.
package backup

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go_stocksync/models"
)

// MongoDB database and collection names
const (
	mongoDBName          = "stocksync"
	indicatorsCollection = "indicator_summaries"
)

// MongoStore writes indicator snapshots to MongoDB Atlas.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

// indicatorDoc is the snapshot document, one per symbol.
type indicatorDoc struct {
	Symbol    string                `bson:"_id"`
	Date      time.Time             `bson:"date"`
	UpdatedAt time.Time             `bson:"updated_at"`
	Values    models.StockIndicator `bson:"values"`
}

// NewMongoStore connects to MongoDB Atlas and verifies the connection with a
// ping. An empty URI returns (nil, nil): backups disabled.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		log.Println("[Backup] MONGODB_URI not set, indicator backups disabled")
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetRetryWrites(true)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(connectCtx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:   client,
		database: client.Database(mongoDBName),
	}
	store.createIndexes(connectCtx)

	log.Println("[Backup] MongoDB Atlas connected")
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) {
	collection := s.database.Collection(indicatorsCollection)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	if err != nil {
		log.Printf("[Backup] Failed to create indexes: %v", err)
	}
}

// SaveIndicatorSummary upserts the latest indicator row for one symbol.
func (s *MongoStore) SaveIndicatorSummary(ctx context.Context, indicator models.StockIndicator) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	doc := indicatorDoc{
		Symbol:    indicator.Symbol,
		Date:      indicator.Date,
		UpdatedAt: time.Now(),
		Values:    indicator,
	}

	collection := s.database.Collection(indicatorsCollection)
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(opCtx, bson.M{"_id": indicator.Symbol}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to save indicator snapshot for %s: %w", indicator.Symbol, err)
	}
	return nil
}

// LoadIndicatorSummary reads back the snapshot for one symbol.
func (s *MongoStore) LoadIndicatorSummary(ctx context.Context, symbol string) (*models.StockIndicator, time.Time, error) {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	collection := s.database.Collection(indicatorsCollection)

	var doc indicatorDoc
	err := collection.FindOne(opCtx, bson.M{"_id": symbol}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, time.Time{}, fmt.Errorf("no indicator snapshot for %s", symbol)
		}
		return nil, time.Time{}, fmt.Errorf("failed to load indicator snapshot for %s: %w", symbol, err)
	}

	return &doc.Values, doc.UpdatedAt, nil
}

// SnapshotCount returns the number of stored snapshots.
func (s *MongoStore) SnapshotCount(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.database.Collection(indicatorsCollection).CountDocuments(opCtx, bson.M{})
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
