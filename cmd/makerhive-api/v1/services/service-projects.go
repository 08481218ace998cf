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

// CreateProject stores a new project owned by userID.
func CreateProject(ctx context.Context, store docstore.Store, userID any, req models.CreateProjectRequest) (docstore.Document, error) {
	zap.S().Infof("[CreateProject] %q by user %v", req.Title, userID)

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := docstore.Document{
		"userId":      userID,
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"tags":        tags,
		"likes":       int64(0),
		"createdAt":   time.Now().UTC(),
	}
	res, err := store.Collection("projects").InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// GetProject fetches one project by id.
func GetProject(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	doc, err := store.Collection("projects").FindOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListProjects returns a page of projects, newest first. Categories narrow
// the result with an $in filter; a search term matches title or description
// case-insensitively.
func ListProjects(ctx context.Context, store docstore.Store, opts models.ListOptions) ([]docstore.Document, error) {
	filter := docstore.Filter{}
	switch len(opts.Categories) {
	case 0:
	case 1:
		filter["category"] = opts.Categories[0]
	default:
		members := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			members[i] = c
		}
		filter["category"] = docstore.Filter{"$in": members}
	}
	if opts.Search != "" {
		rx := docstore.Filter{"$regex": opts.Search, "$options": "i"}
		filter["$or"] = []docstore.Filter{
			{"title": rx},
			{"description": rx},
		}
	}

	q := store.Collection("projects").Find(filter)
	return listQuery(q, opts.Skip, opts.Limit).All(ctx)
}

// UpdateProject applies the optional fields of req to a project the caller
// owns. Non-owners get ErrForbidden.
func UpdateProject(ctx context.Context, store docstore.Store, userID any, id string, req models.UpdateProjectRequest) (docstore.Document, error) {
	zap.S().Infof("[UpdateProject] Updating project %s", id)

	doc, err := GetProject(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !docstore.EqualIDs(doc["userId"], userID) {
		return nil, ErrForbidden
	}

	set := docstore.Document{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.Tags != nil {
		set["tags"] = *req.Tags
	}
	if len(set) == 0 {
		return doc, nil
	}

	if _, err := store.Collection("projects").UpdateOne(ctx, docstore.Filter{"id": id}, docstore.Update{"$set": set}); err != nil {
		return nil, err
	}
	return GetProject(ctx, store, id)
}

// LikeProject bumps the like counter by one and returns the new document.
// Anyone authenticated may like any project, repeatedly.
func LikeProject(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	res, err := store.Collection("projects").UpdateOne(ctx,
		docstore.Filter{"id": id},
		docstore.Update{"$inc": docstore.Document{"likes": int64(1)}})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return GetProject(ctx, store, id)
}

// DeleteProject removes a project the caller owns.
func DeleteProject(ctx context.Context, store docstore.Store, userID any, id string) error {
	zap.S().Infof("[DeleteProject] Deleting project %s", id)

	doc, err := GetProject(ctx, store, id)
	if err != nil {
		return err
	}
	if !docstore.EqualIDs(doc["userId"], userID) {
		return ErrForbidden
	}
	_, err = store.Collection("projects").DeleteOne(ctx, docstore.Filter{"id": id})
	return err
}
