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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterToBSONIdentity(t *testing.T) {
	oid := primitive.NewObjectID()

	f, err := filterToBSON(Filter{"id": oid.Hex()})
	require.NoError(t, err)
	assert.Equal(t, oid, f["_id"], "hex identity strings upgrade to ObjectID under _id")

	// Non-hex ids stay as given (they may come from another backend).
	f, err = filterToBSON(Filter{"_id": "not-an-object-id"})
	require.NoError(t, err)
	assert.Equal(t, "not-an-object-id", f["_id"])
}

func TestFilterToBSONOr(t *testing.T) {
	f, err := filterToBSON(Filter{"$or": []Filter{{"category": "a"}, {"category": "b"}}})
	require.NoError(t, err)

	branches, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, branches, 2)
}

func TestFilterToBSONRejectsUnknownOperator(t *testing.T) {
	_, err := filterToBSON(Filter{"likes": Filter{"$gt": 1}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = filterToBSON(Filter{"$where": "this.likes > 1"})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestUpdateToBSON(t *testing.T) {
	u, err := updateToBSON(Update{"$inc": map[string]any{"likes": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"likes": 1}, u["$inc"])

	_, err = updateToBSON(Update{"$rename": map[string]any{"a": "b"}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestBSONToDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := bsonToDocument(bson.M{
		"_id":     oid,
		"title":   "T",
		"tags":    bson.A{"cnc", "wood"},
		"created": primitive.NewDateTimeFromTime(primitive.NewObjectID().Timestamp()),
	})

	assert.Equal(t, oid.Hex(), doc["id"], "identity surfaces as the logical id field")
	assert.Equal(t, "T", doc["title"])
	assert.Equal(t, []any{"cnc", "wood"}, doc["tags"])
	_, isHexOnly := doc["_id"]
	assert.False(t, isHexOnly, "_id does not leak through")
}
