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
)

func TestMatchEquality(t *testing.T) {
	doc := Document{"id": "abc", "category": "robotics", "likes": int64(3)}

	ok, err := matchDocument(doc, Filter{"category": "robotics"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchDocument(doc, Filter{"category": "woodwork"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Numbers compare by value across integer widths.
	ok, err = matchDocument(doc, Filter{"likes": 3})
	require.NoError(t, err)
	assert.True(t, ok)

	// Conjunction across top-level keys.
	ok, err = matchDocument(doc, Filter{"category": "robotics", "likes": 4})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchIdentityAliases(t *testing.T) {
	doc := Document{"id": "abc123"}

	for _, field := range []string{"id", "_id"} {
		ok, err := matchDocument(doc, Filter{field: "abc123"})
		require.NoError(t, err)
		assert.True(t, ok, "alias %s should resolve the identity field", field)
	}
}

func TestMatchMissingField(t *testing.T) {
	doc := Document{"title": "CNC basics"}

	// Equality on a missing field never matches a non-nil literal.
	ok, err := matchDocument(doc, Filter{"category": "robotics"})
	require.NoError(t, err)
	assert.False(t, ok)

	// A nil literal does match a missing field...
	ok, err = matchDocument(doc, Filter{"category": nil})
	require.NoError(t, err)
	assert.True(t, ok)

	// ...and a field present with nil.
	ok, err = matchDocument(Document{"category": nil}, Filter{"category": nil})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchIn(t *testing.T) {
	doc := Document{"category": "robotics"}

	ok, err := matchDocument(doc, Filter{"category": Filter{"$in": []any{"robotics", "electronics"}}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchDocument(doc, Filter{"category": Filter{"$in": []any{"woodwork"}}})
	require.NoError(t, err)
	assert.False(t, ok)

	// Empty list matches nothing.
	ok, err = matchDocument(doc, Filter{"category": Filter{"$in": []any{}}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchRegex(t *testing.T) {
	doc := Document{"title": "Laser Cutter Safety"}

	ok, err := matchDocument(doc, Filter{"title": Filter{"$regex": "laser", "$options": "i"}})
	require.NoError(t, err)
	assert.True(t, ok)

	// Case sensitive without the flag.
	ok, err = matchDocument(doc, Filter{"title": Filter{"$regex": "laser"}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = matchDocument(doc, Filter{"title": Filter{"$regex": "(["}})
	assert.Error(t, err)
}

func TestMatchOr(t *testing.T) {
	docs := []Document{
		{"category": "a"},
		{"category": "b"},
		{"category": "c"},
	}
	filter := Filter{"$or": []Filter{{"category": "a"}, {"category": "b"}}}

	var matched int
	for _, doc := range docs {
		ok, err := matchDocument(doc, filter)
		require.NoError(t, err)
		if ok {
			matched++
		}
	}
	// Exactly the "a" and "b" documents, nothing else.
	assert.Equal(t, 2, matched)
}

func TestMatchRejectsUnknownOperator(t *testing.T) {
	doc := Document{"likes": 10}

	_, err := matchDocument(doc, Filter{"likes": Filter{"$gt": 5}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = matchDocument(doc, Filter{"$and": []Filter{{"likes": 10}}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestMatchListEquality(t *testing.T) {
	doc := Document{"tags": []any{"cnc", "wood"}}

	ok, err := matchDocument(doc, Filter{"tags": []any{"cnc", "wood"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchDocument(doc, Filter{"tags": []any{"wood", "cnc"}})
	require.NoError(t, err)
	assert.False(t, ok, "list equality is ordered")
}

func TestApplyUpdateSet(t *testing.T) {
	doc := Document{"id": "x", "title": "old"}

	modified, err := applyUpdate(doc, Update{"$set": map[string]any{"title": "new", "id": "evil"}})
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "new", doc["title"])
	assert.Equal(t, "x", doc["id"], "identity is immutable")

	// Setting the same value again reports no modification.
	modified, err = applyUpdate(doc, Update{"$set": map[string]any{"title": "new"}})
	require.NoError(t, err)
	assert.False(t, modified)
}

func TestApplyUpdatePushPull(t *testing.T) {
	doc := Document{"members": []any{"alice"}}

	_, err := applyUpdate(doc, Update{"$push": map[string]any{"members": "bob"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", "bob"}, doc["members"])

	_, err = applyUpdate(doc, Update{"$pull": map[string]any{"members": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"bob"}, doc["members"])

	// Push onto a missing field creates the list.
	_, err = applyUpdate(doc, Update{"$push": map[string]any{"tags": "cnc"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"cnc"}, doc["tags"])
}

func TestApplyUpdateInc(t *testing.T) {
	doc := Document{"likes": int64(2)}

	_, err := applyUpdate(doc, Update{"$inc": map[string]any{"likes": 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc["likes"])

	// Incrementing a missing field starts from zero.
	_, err = applyUpdate(doc, Update{"$inc": map[string]any{"views": 5}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc["views"])
}

func TestApplyUpdateCombinedPrecedence(t *testing.T) {
	// Callers never combine operators, but when they do $set applies
	// before the others.
	doc := Document{"likes": int64(0)}

	_, err := applyUpdate(doc, Update{
		"$set": map[string]any{"likes": 10},
		"$inc": map[string]any{"likes": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc["likes"])
}

func TestApplyUpdateRejectsUnknownOperator(t *testing.T) {
	doc := Document{"likes": int64(0)}

	_, err := applyUpdate(doc, Update{"$rename": map[string]any{"likes": "stars"}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
	assert.Equal(t, int64(0), doc["likes"], "rejected update must not mutate")
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"id": "a", "likes": int64(1)},
		{"id": "b", "likes": int64(5)},
		{"id": "c", "likes": int64(5)},
		{"id": "d", "likes": int64(3)},
	}

	sortDocuments(docs, "likes", Descending)
	assert.Equal(t, "b", docs[0]["id"])
	assert.Equal(t, "c", docs[1]["id"], "ties keep their original order")
	assert.Equal(t, "d", docs[2]["id"])
	assert.Equal(t, "a", docs[3]["id"])

	sortDocuments(docs, "likes", Ascending)
	assert.Equal(t, "a", docs[0]["id"])
}
