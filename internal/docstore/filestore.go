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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// FileStore keeps every collection fully in memory and rewrites one JSON
// file per collection after each mutation. It needs no database engine at
// all, which makes it the terminal link of the fallback chain.
//
// Layout:
//
//	data_dir/
//	  users.json       # full ordered list of the "users" collection
//	  projects.json
//	  ...
type FileStore struct {
	dir string

	mu    sync.Mutex
	colls map[string]*fileCollection
}

// NewFileStore ensures dir exists and loads every known collection from its
// file. A missing file yields an empty collection which is persisted right
// away, so "never existed" and "empty" are indistinguishable afterwards.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: cannot create data dir %s: %w", dir, err)
	}
	s := &FileStore{dir: dir, colls: make(map[string]*fileCollection)}
	for _, name := range CollectionNames {
		coll := &fileCollection{store: s, name: name}
		if err := coll.load(); err != nil {
			return nil, err
		}
		s.colls[name] = coll
	}
	zap.S().Infow("File store initialized", "dir", dir, "collections", len(s.colls))
	return s, nil
}

func (s *FileStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.colls[name]
	if !ok {
		// The store is schemaless; unknown names start out empty.
		coll = &fileCollection{store: s, name: name}
		if err := coll.load(); err != nil {
			zap.S().Errorw("Failed to load collection", "collection", name, "error", err)
		}
		s.colls[name] = coll
	}
	return coll
}

func (s *FileStore) Kind() string { return "file" }

func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

type fileCollection struct {
	store *FileStore
	name  string

	mu   sync.RWMutex
	docs []Document
}

func (c *fileCollection) path() string {
	return filepath.Join(c.store.dir, c.name+".json")
}

func (c *fileCollection) load() error {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			c.docs = []Document{}
			return c.persist()
		}
		return fmt.Errorf("docstore: cannot read %s: %w", c.path(), err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("docstore: corrupt collection file %s: %w", c.path(), err)
	}
	c.docs = docs
	return nil
}

// persist rewrites the whole collection file. Callers hold the write lock.
// When this fails after an in-memory mutation, memory and disk disagree
// until the next successful write; see the durability note in DESIGN.md.
func (c *fileCollection) persist() error {
	data, err := json.MarshalIndent(c.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("docstore: cannot marshal %s: %w", c.name, err)
	}
	if err := os.WriteFile(c.path(), data, 0o644); err != nil {
		return fmt.Errorf("docstore: cannot write %s: %w", c.path(), err)
	}
	return nil
}

func (c *fileCollection) InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make(Document, len(doc)+2)
	for k, v := range doc {
		stored[k] = v
	}
	if _, ok := stored["id"]; !ok {
		stored["id"] = newHexID()
	}
	if _, ok := stored["createdAt"]; !ok {
		stored["createdAt"] = time.Now().UTC()
	}

	c.docs = append(c.docs, stored)
	if err := c.persist(); err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: stored["id"]}, nil
}

func (c *fileCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return doc, nil
		}
	}
	return nil, nil
}

func (c *fileCollection) Find(filter Filter) Query {
	return &fileQuery{coll: c, filter: filter, skip: -1, limit: -1}
}

func (c *fileCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (*UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		modified, err := applyUpdate(doc, update)
		if err != nil {
			return nil, err
		}
		res := &UpdateResult{MatchedCount: 1}
		if modified {
			res.ModifiedCount = 1
			if err := c.persist(); err != nil {
				return nil, err
			}
		}
		return res, nil
	}
	return &UpdateResult{}, nil
}

func (c *fileCollection) DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			if err := c.persist(); err != nil {
				return nil, err
			}
			return &DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &DeleteResult{}, nil
}

func (c *fileCollection) DeleteMany(ctx context.Context, filter Filter) (*DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]Document, 0, len(c.docs))
	var deleted int64
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	if deleted > 0 {
		c.docs = kept
		if err := c.persist(); err != nil {
			return nil, err
		}
	}
	return &DeleteResult{DeletedCount: deleted}, nil
}

func (c *fileCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// CreateIndex is a no-op: the file store has no index structure, every
// operation is a linear scan over the in-memory collection.
func (c *fileCollection) CreateIndex(ctx context.Context, spec IndexSpec, opts IndexOptions) error {
	zap.S().Debugw("CreateIndex ignored by file store", "collection", c.name)
	return nil
}

type fileQuery struct {
	coll      *fileCollection
	filter    Filter
	sortField string
	sortDir   SortDirection
	skip      int64
	limit     int64
}

func (q *fileQuery) Sort(field string, direction SortDirection) Query {
	q.sortField = field
	q.sortDir = direction
	return q
}

func (q *fileQuery) Skip(n int64) Query {
	q.skip = n
	return q
}

func (q *fileQuery) Limit(n int64) Query {
	q.limit = n
	return q
}

func (q *fileQuery) All(ctx context.Context) ([]Document, error) {
	q.coll.mu.RLock()
	defer q.coll.mu.RUnlock()

	matched := make([]Document, 0)
	for _, doc := range q.coll.docs {
		ok, err := matchDocument(doc, q.filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	if q.sortField != "" {
		sortDocuments(matched, q.sortField, q.sortDir)
	}
	if q.skip > 0 {
		if q.skip >= int64(len(matched)) {
			return []Document{}, nil
		}
		matched = matched[q.skip:]
	}
	if q.limit >= 0 && q.limit < int64(len(matched)) {
		matched = matched[:q.limit]
	}
	return matched, nil
}

// newHexID mirrors the identity shape of a document database: 12 random
// bytes rendered as 24 hex characters.
func newHexID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// timestamp so inserts still get distinct ids.
		return fmt.Sprintf("%024x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
