package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStateStore keeps the owner-keyed blob map in a Mongo collection for
// hosted deployments where the dev facade serves more than one machine.
type MongoStateStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStateStore(ctx context.Context, uri, dbName, collName string) (*MongoStateStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return &MongoStateStore{client: cli, coll: cli.Database(dbName).Collection(collName)}, nil
}

func (m *MongoStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

func (m *MongoStateStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("empty key")
	}
	_, err := m.coll.UpdateByID(
		ctx,
		key,
		bson.M{
			"$set":         bson.M{"value": value, "updatedAt": time.Now()},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoStateStore) Delete(ctx context.Context, key string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoStateStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
