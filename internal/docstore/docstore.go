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

// Package docstore maps one document-oriented query surface onto three
// interchangeable backends: PostgreSQL, a JSON-file store and MongoDB.
// The calling layer only ever sees Store, Collection and Query; which
// backend is active is decided once at startup by Connect.
package docstore

import (
	"context"
	"errors"
)

// Document is one record, a field-name to value mapping. The backend assigns
// the identity field "id" on insert and a "createdAt" timestamp when the
// caller did not provide one.
type Document map[string]any

// Filter selects documents. Top-level keys combine by conjunction. A value
// is either a literal (equality, deep for lists) or an operator object:
// {"$in": [...]} or {"$regex": pattern, "$options": flags}. The reserved
// top-level key "$or" holds a list of sub-filters of which at least one must
// match. Anything else is rejected with ErrUnsupportedOperator.
type Filter map[string]any

// Update mutates matched documents through one of $set, $push, $pull or
// $inc. Callers are expected to pass exactly one operator; if several appear
// $set is applied first, then $push, $pull and $inc (see DESIGN.md).
type Update map[string]any

// SortDirection follows the mongo convention: 1 ascending, -1 descending.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

var (
	// ErrUnsupportedOperator rejects filters or updates that use an operator
	// outside the supported algebra. Rejecting loudly beats silently
	// returning unfiltered results.
	ErrUnsupportedOperator = errors.New("docstore: unsupported operator")

	// ErrUnknownCollection is returned by the relational backend when asked
	// for a collection outside the fixed schema.
	ErrUnknownCollection = errors.New("docstore: unknown collection")

	// ErrNoBackend means no backend could be constructed from the given
	// configuration.
	ErrNoBackend = errors.New("docstore: no usable backend configured")
)

// CollectionNames is the fixed set of collections the platform uses. The
// file store creates one file per name at startup and the relational
// backend declares one table per name.
var CollectionNames = []string{"users", "projects", "discussions", "replies", "lessons", "rooms"}

// InsertOneResult carries the identity assigned by the backend: a random
// hex token for the file store, an int64 for postgres, an ObjectID hex
// string for mongo. Callers treat it as opaque.
type InsertOneResult struct {
	InsertedID any
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

// IndexSpec maps indexed fields (logical document names) to a direction.
type IndexSpec map[string]SortDirection

type IndexOptions struct {
	Unique bool
	// Sparse limits a unique index to rows where the field is set, so that
	// many documents may omit it without colliding on NULL.
	Sparse bool
}

// Query is a find in progress. Sort, Skip and Limit may be chained in any
// order; nothing touches the backend until All runs.
type Query interface {
	Sort(field string, direction SortDirection) Query
	Skip(n int64) Query
	Limit(n int64) Query
	All(ctx context.Context) ([]Document, error)
}

// Collection is one named set of documents on the active backend.
type Collection interface {
	InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error)

	// FindOne returns the first match, or (nil, nil) when nothing matches.
	// Not finding a document is never an error.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	Find(filter Filter) Query

	UpdateOne(ctx context.Context, filter Filter, update Update) (*UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error)
	DeleteMany(ctx context.Context, filter Filter) (*DeleteResult, error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)

	// CreateIndex is effective on the relational and document-store
	// backends and accepted as a no-op by the file store.
	CreateIndex(ctx context.Context, spec IndexSpec, opts IndexOptions) error
}

// Store is the handle to the active backend. Exactly one is constructed per
// process (by Connect) and passed explicitly to whoever needs it.
type Store interface {
	Collection(name string) Collection

	// Kind names the active backend variant ("postgres", "file", "mongo").
	// It exists for logging; callers must not branch on it.
	Kind() string

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
