// configstore/mongo.go
package configstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps one document per config name in the "config" collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type configDoc struct {
	Name      string            `bson:"_id"`
	Values    map[string]string `bson:"values"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// OpenMongo connects to uri and pings the primary.
func OpenMongo(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("configstore: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("configstore: mongo ping: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("config"),
	}, nil
}

// Save upserts the document for name, replacing its values. No values
// deletes the document.
func (s *MongoStore) Save(ctx context.Context, name string, values map[string]string) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(values) == 0 {
		if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
			return fmt.Errorf("configstore: mongo delete %q: %w", name, err)
		}
		return nil
	}
	doc := configDoc{Name: name, Values: copyValues(values), UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("configstore: mongo save %q: %w", name, err)
	}
	return nil
}

// Load returns the values stored under name.
func (s *MongoStore) Load(ctx context.Context, name string) (map[string]string, error) {
	var doc configDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("configstore: mongo load %q: %w", name, err)
	}
	if len(doc.Values) == 0 {
		return nil, ErrNotFound
	}
	return doc.Values, nil
}

// Ping checks the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
