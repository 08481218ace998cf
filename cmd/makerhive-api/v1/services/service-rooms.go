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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/internal/docstore"
)

// CreateRoom opens a collaboration room. The creator joins as the first
// member.
func CreateRoom(ctx context.Context, store docstore.Store, userID any, req models.CreateRoomRequest) (docstore.Document, error) {
	zap.S().Infof("[CreateRoom] %q by user %v", req.Name, userID)

	doc := docstore.Document{
		"name":        req.Name,
		"description": req.Description,
		"createdBy":   userID,
		"members":     []string{fmt.Sprint(userID)},
		"createdAt":   time.Now().UTC(),
	}
	res, err := store.Collection("rooms").InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// GetRoom fetches one room by id.
func GetRoom(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	doc, err := store.Collection("rooms").FindOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListRooms returns a page of rooms, newest first.
func ListRooms(ctx context.Context, store docstore.Store, opts models.ListOptions) ([]docstore.Document, error) {
	q := store.Collection("rooms").Find(docstore.Filter{})
	return listQuery(q, opts.Skip, opts.Limit).All(ctx)
}

// JoinRoom adds the caller to the member list. Joining twice is a conflict;
// members hold each user at most once.
func JoinRoom(ctx context.Context, store docstore.Store, userID any, id string) (docstore.Document, error) {
	zap.S().Infof("[JoinRoom] User %v joins room %s", userID, id)

	room, err := GetRoom(ctx, store, id)
	if err != nil {
		return nil, err
	}
	member := fmt.Sprint(userID)
	if roomHasMember(room, member) {
		return nil, fmt.Errorf("%w: already a member", ErrConflict)
	}

	if _, err := store.Collection("rooms").UpdateOne(ctx,
		docstore.Filter{"id": id},
		docstore.Update{"$push": docstore.Document{"members": member}}); err != nil {
		return nil, err
	}
	return GetRoom(ctx, store, id)
}

// LeaveRoom removes the caller from the member list.
func LeaveRoom(ctx context.Context, store docstore.Store, userID any, id string) (docstore.Document, error) {
	zap.S().Infof("[LeaveRoom] User %v leaves room %s", userID, id)

	room, err := GetRoom(ctx, store, id)
	if err != nil {
		return nil, err
	}
	member := fmt.Sprint(userID)
	if !roomHasMember(room, member) {
		return nil, fmt.Errorf("%w: not a member", ErrNotFound)
	}

	if _, err := store.Collection("rooms").UpdateOne(ctx,
		docstore.Filter{"id": id},
		docstore.Update{"$pull": docstore.Document{"members": member}}); err != nil {
		return nil, err
	}
	return GetRoom(ctx, store, id)
}

// DeleteRoom removes a room. Only the creator may do this.
func DeleteRoom(ctx context.Context, store docstore.Store, userID any, id string) error {
	zap.S().Infof("[DeleteRoom] Deleting room %s", id)

	room, err := GetRoom(ctx, store, id)
	if err != nil {
		return err
	}
	if !docstore.EqualIDs(room["createdBy"], userID) {
		return ErrForbidden
	}
	_, err = store.Collection("rooms").DeleteOne(ctx, docstore.Filter{"id": id})
	return err
}

func roomHasMember(room docstore.Document, member string) bool {
	switch list := room["members"].(type) {
	case []string:
		for _, m := range list {
			if m == member {
				return true
			}
		}
	case []any:
		for _, m := range list {
			if fmt.Sprint(m) == member {
				return true
			}
		}
	}
	return false
}
