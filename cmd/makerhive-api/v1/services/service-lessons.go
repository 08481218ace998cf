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

package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/internal/docstore"
)

// CreateLesson stores a new lesson. Only admins may publish lessons; the
// caller's role is checked here rather than in the transport layer.
func CreateLesson(ctx context.Context, store docstore.Store, caller docstore.Document, req models.CreateLessonRequest) (docstore.Document, error) {
	if role, _ := caller["role"].(string); role != "admin" {
		return nil, ErrForbidden
	}
	zap.S().Infof("[CreateLesson] %q", req.Title)

	doc := docstore.Document{
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"level":       req.Level,
		"videoUrl":    req.VideoUrl,
		"duration":    int64(req.Duration),
		"createdAt":   time.Now().UTC(),
	}
	res, err := store.Collection("lessons").InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// GetLesson fetches one lesson by id.
func GetLesson(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	doc, err := store.Collection("lessons").FindOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListLessons returns a page of lessons, newest first, optionally narrowed
// by category.
func ListLessons(ctx context.Context, store docstore.Store, opts models.ListOptions) ([]docstore.Document, error) {
	filter := docstore.Filter{}
	if len(opts.Categories) == 1 {
		filter["category"] = opts.Categories[0]
	} else if len(opts.Categories) > 1 {
		members := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			members[i] = c
		}
		filter["category"] = docstore.Filter{"$in": members}
	}

	q := store.Collection("lessons").Find(filter)
	return listQuery(q, opts.Skip, opts.Limit).All(ctx)
}
