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

// CreateDiscussion opens a new discussion thread.
func CreateDiscussion(ctx context.Context, store docstore.Store, userID any, req models.CreateDiscussionRequest) (docstore.Document, error) {
	zap.S().Infof("[CreateDiscussion] %q by user %v", req.Title, userID)

	doc := docstore.Document{
		"userId":    userID,
		"title":     req.Title,
		"content":   req.Content,
		"category":  req.Category,
		"createdAt": time.Now().UTC(),
	}
	res, err := store.Collection("discussions").InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// GetDiscussion fetches one discussion by id.
func GetDiscussion(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	doc, err := store.Collection("discussions").FindOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListDiscussions returns a page of discussions, newest first.
func ListDiscussions(ctx context.Context, store docstore.Store, opts models.ListOptions) ([]docstore.Document, error) {
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

	q := store.Collection("discussions").Find(filter)
	return listQuery(q, opts.Skip, opts.Limit).All(ctx)
}

// DeleteDiscussion removes a discussion the caller owns, together with all
// of its replies. The two deletes are not atomic; a crash in between leaves
// orphaned replies that are unreachable through the API.
func DeleteDiscussion(ctx context.Context, store docstore.Store, userID any, id string) error {
	zap.S().Infof("[DeleteDiscussion] Deleting discussion %s", id)

	doc, err := GetDiscussion(ctx, store, id)
	if err != nil {
		return err
	}
	if !docstore.EqualIDs(doc["userId"], userID) {
		return ErrForbidden
	}
	if _, err := store.Collection("discussions").DeleteOne(ctx, docstore.Filter{"id": id}); err != nil {
		return err
	}
	_, err = store.Collection("replies").DeleteMany(ctx, docstore.Filter{"discussionId": doc["id"]})
	return err
}

// CreateReply appends a reply to an existing discussion.
func CreateReply(ctx context.Context, store docstore.Store, userID any, discussionID string, req models.CreateReplyRequest) (docstore.Document, error) {
	parent, err := GetDiscussion(ctx, store, discussionID)
	if err != nil {
		return nil, err
	}

	doc := docstore.Document{
		"discussionId": parent["id"],
		"userId":       userID,
		"content":      req.Content,
		"createdAt":    time.Now().UTC(),
	}
	res, err := store.Collection("replies").InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// ListReplies returns all replies of a discussion, oldest first.
func ListReplies(ctx context.Context, store docstore.Store, discussionID string) ([]docstore.Document, error) {
	parent, err := GetDiscussion(ctx, store, discussionID)
	if err != nil {
		return nil, err
	}
	return store.Collection("replies").
		Find(docstore.Filter{"discussionId": parent["id"]}).
		Sort("createdAt", docstore.Ascending).
		All(ctx)
}
