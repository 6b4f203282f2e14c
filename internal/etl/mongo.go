package etl

import (
	"context"
	"time"

	"github.com/BartekS5/marketload/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecorder appends one document per run to a MongoDB collection.
type MongoRecorder struct {
	Client     *mongo.Client
	Database   string
	Collection string
}

func NewMongoRecorder(client *mongo.Client, database, collection string) *MongoRecorder {
	return &MongoRecorder{
		Client:     client,
		Database:   database,
		Collection: collection,
	}
}

func (m *MongoRecorder) coll() *mongo.Collection {
	return m.Client.Database(m.Database).Collection(m.Collection)
}

func (m *MongoRecorder) Record(ctx context.Context, summary *RunSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := m.coll().InsertOne(ctx, summary)
	if err != nil {
		return err
	}
	logger.Infof("Recorded run %s in %s.%s (id %v)", summary.RunID, m.Database, m.Collection, res.InsertedID)
	return nil
}

// Recent returns the latest runs for a table, newest first.
func (m *MongoRecorder) Recent(ctx context.Context, table string, limit int64) ([]RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOpts := options.Find().
		SetSort(bson.M{"started_at": -1}).
		SetLimit(limit)

	cursor, err := m.coll().Find(ctx, bson.M{"table": table}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []RunSummary
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (m *MongoRecorder) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
