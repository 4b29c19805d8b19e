package remote

import (
	"context"
	"errors"
	"fmt"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one Mongo collection per remote collection. The record id
// is stored as _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ domain.RemoteStore = (*MongoStore)(nil)

// NewMongoStore connects and, when asked, creates the unique slot index.
func NewMongoStore(ctx context.Context, uri, database string, enforceUniqueSlot bool) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx, enforceUniqueSlot); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context, enforceUniqueSlot bool) error {
	slot := mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "time_label", Value: 1}},
		Options: options.Index().SetName("reservations_slot").SetUnique(enforceUniqueSlot),
	}
	if _, err := s.db.Collection(string(models.CollectionReservations)).Indexes().CreateOne(ctx, slot); err != nil {
		return fmt.Errorf("create slot index: %w", err)
	}
	return nil
}

func (s *MongoStore) collection(c models.Collection) (*mongo.Collection, error) {
	if _, ok := models.Columns[c]; !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, c)
	}
	return s.db.Collection(string(c)), nil
}

func toDocument(record models.Record, withID bool) bson.M {
	doc := bson.M{}
	for k, v := range record {
		if k == "id" {
			if withID {
				doc["_id"] = v
			}
			continue
		}
		doc[k] = v
	}
	return doc
}

func fromDocument(doc bson.M) models.Record {
	rec := make(models.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			rec["id"] = v
			continue
		}
		rec[k] = v
	}
	return rec
}

func mongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %v", domain.ErrRecordNotFound, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
}

func (s *MongoStore) Insert(ctx context.Context, collection models.Collection, record models.Record) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	if record.ID() == "" {
		return fmt.Errorf("%w: record without id", domain.ErrRecordRejected)
	}
	if err := checkColumns(collection, record); err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, toDocument(record, true))
	return mongoError(err)
}

func (s *MongoStore) FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if orderBy == "" {
		orderBy = models.DefaultOrder[collection]
	}
	if !models.HasColumn(collection, orderBy) {
		return nil, fmt.Errorf("%w: cannot order by %q", domain.ErrRecordRejected, orderBy)
	}
	sortKey := orderBy
	if sortKey == "id" {
		sortKey = "_id"
	}

	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoError(err)
	}
	defer cursor.Close(ctx)

	var records []models.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, mongoError(err)
		}
		records = append(records, fromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, mongoError(err)
	}
	return records, nil
}

func (s *MongoStore) Update(ctx context.Context, collection models.Collection, id string, record models.Record) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := checkColumns(collection, record); err != nil {
		return err
	}
	fields := toDocument(record, false)
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", domain.ErrRecordRejected)
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return mongoError(err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	result, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoError(err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
