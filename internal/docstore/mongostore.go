// Copyright 2024 Makerhive
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore is the document-database backend. The filter/update algebra is
// already mongo-shaped, so translation is mostly validation plus identity
// mapping: callers say "id" with a hex string, mongo wants "_id" with an
// ObjectID, and results surface the identity back as "id".
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: cannot connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore: cannot reach mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(dbName)}
	s.ensureIndexes(ctx)
	zap.S().Infow("Mongo store initialized", "database", dbName)
	return s, nil
}

// ensureIndexes mirrors the relational DDL: uniqueness on account fields and
// a recency index per collection. Index creation is idempotent in mongo, and
// a failure here is logged rather than fatal because the store works without
// indexes, only slower.
func (s *MongoStore) ensureIndexes(ctx context.Context) {
	users := s.Collection("users")
	for _, idx := range []struct {
		spec IndexSpec
		opts IndexOptions
	}{
		{IndexSpec{"username": Ascending}, IndexOptions{Unique: true}},
		{IndexSpec{"email": Ascending}, IndexOptions{Unique: true}},
		{IndexSpec{"apiKey": Ascending}, IndexOptions{Unique: true, Sparse: true}},
	} {
		if err := users.CreateIndex(ctx, idx.spec, idx.opts); err != nil {
			zap.S().Warnw("Failed to create users index", "spec", idx.spec, "error", err)
		}
	}
	for _, name := range CollectionNames {
		if err := s.Collection(name).CreateIndex(ctx, IndexSpec{"createdAt": Descending}, IndexOptions{}); err != nil {
			zap.S().Warnw("Failed to create recency index", "collection", name, "error", err)
		}
	}
}

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{coll: s.db.Collection(name)}
}

func (s *MongoStore) Kind() string { return "mongo" }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error) {
	insert := bson.M{}
	for k, v := range doc {
		insert[k] = v
	}
	if _, ok := insert["createdAt"]; !ok {
		insert["createdAt"] = time.Now().UTC()
	}
	res, err := c.coll.InsertOne(ctx, insert)
	if err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: idToLogical(res.InsertedID)}, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	err = c.coll.FindOne(ctx, f).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bsonToDocument(raw), nil
}

func (c *mongoCollection) Find(filter Filter) Query {
	return &mongoQuery{coll: c, filter: filter, skip: -1, limit: -1}
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (*UpdateResult, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return nil, err
	}
	u, err := updateToBSON(update)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateOne(ctx, f, u)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteOne(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter Filter) (*DeleteResult, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteMany(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, f)
}

func (c *mongoCollection) CreateIndex(ctx context.Context, spec IndexSpec, opts IndexOptions) error {
	keys := bson.D{}
	for _, field := range sortedSpecKeys(spec) {
		keys = append(keys, bson.E{Key: field, Value: int(spec[field])})
	}
	indexOpts := options.Index()
	if opts.Unique {
		indexOpts.SetUnique(true)
	}
	if opts.Sparse {
		indexOpts.SetSparse(true)
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: indexOpts})
	return err
}

type mongoQuery struct {
	coll      *mongoCollection
	filter    Filter
	sortField string
	sortDir   SortDirection
	skip      int64
	limit     int64
}

func (q *mongoQuery) Sort(field string, direction SortDirection) Query {
	q.sortField = field
	q.sortDir = direction
	return q
}

func (q *mongoQuery) Skip(n int64) Query {
	q.skip = n
	return q
}

func (q *mongoQuery) Limit(n int64) Query {
	q.limit = n
	return q
}

func (q *mongoQuery) All(ctx context.Context) ([]Document, error) {
	f, err := filterToBSON(q.filter)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if q.sortField != "" {
		field := q.sortField
		if field == "id" {
			field = "_id"
		}
		findOpts.SetSort(bson.D{{Key: field, Value: int(q.sortDir)}})
	}
	if q.skip > 0 {
		findOpts.SetSkip(q.skip)
	}
	if q.limit >= 0 {
		findOpts.SetLimit(q.limit)
	}

	cur, err := q.coll.coll.Find(ctx, f, findOpts)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]Document, len(raw))
	for i, m := range raw {
		docs[i] = bsonToDocument(m)
	}
	return docs, nil
}

// filterToBSON validates the filter against the supported algebra and
// rewrites identity lookups to _id with proper ObjectIDs.
func filterToBSON(filter Filter) (bson.M, error) {
	out := bson.M{}
	for field, cond := range filter {
		if strings.HasPrefix(field, "$") {
			if field != "$or" {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, field)
			}
			subs, err := toFilterList(cond)
			if err != nil {
				return nil, err
			}
			branches := make(bson.A, 0, len(subs))
			for _, sub := range subs {
				b, err := filterToBSON(sub)
				if err != nil {
					return nil, err
				}
				branches = append(branches, b)
			}
			out["$or"] = branches
			continue
		}

		key := field
		value := cond
		if field == "id" || field == "_id" {
			key = "_id"
			value = logicalToID(cond)
		}

		if ops, isOp := operatorObject(value); isOp {
			for op := range ops {
				switch op {
				case "$in", "$regex", "$options":
				default:
					return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
				}
			}
		}
		out[key] = value
	}
	return out, nil
}

func updateToBSON(update Update) (bson.M, error) {
	out := bson.M{}
	for op, fields := range update {
		switch op {
		case "$set", "$push", "$pull", "$inc":
			out[op] = fields
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return out, nil
}

// bsonToDocument reshapes a decoded row: _id becomes the logical "id" and
// bson list types flatten to plain Go slices.
func bsonToDocument(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			doc["id"] = idToLogical(v)
			continue
		}
		if arr, ok := v.(bson.A); ok {
			v = []any(arr)
		}
		if dt, ok := v.(primitive.DateTime); ok {
			v = dt.Time().UTC()
		}
		doc[k] = v
	}
	return doc
}

func idToLogical(id any) any {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return id
}

// logicalToID upgrades hex strings (and $in lists of them) to ObjectIDs.
func logicalToID(v any) any {
	switch value := v.(type) {
	case string:
		if oid, err := primitive.ObjectIDFromHex(value); err == nil {
			return oid
		}
		return value
	case primitive.ObjectID:
		return value
	}
	if ops, isOp := operatorObject(v); isOp {
		out := bson.M{}
		for op, arg := range ops {
			if op == "$in" {
				if list, err := toList(arg); err == nil {
					ids := make(bson.A, len(list))
					for i, item := range list {
						ids[i] = logicalToID(item)
					}
					out[op] = ids
					continue
				}
			}
			out[op] = arg
		}
		return out
	}
	return v
}
