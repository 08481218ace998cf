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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/internal/docstore"
)

// RegisterUser creates an account and returns the stored document with the
// freshly minted API key still attached. This is the only moment the key
// crosses the wire; later reads strip it.
func RegisterUser(ctx context.Context, store docstore.Store, req models.RegisterUserRequest) (docstore.Document, error) {
	zap.S().Infof("[RegisterUser] Registering %s", req.Username)

	users := store.Collection("users")

	existing, err := users.FindOne(ctx, docstore.Filter{
		"$or": []docstore.Filter{
			{"username": req.Username},
			{"email": req.Email},
		},
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username or email already taken", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	key, err := newAPIKey()
	if err != nil {
		return nil, err
	}

	doc := docstore.Document{
		"username":     req.Username,
		"email":        req.Email,
		"passwordHash": string(hash),
		"apiKey":       key,
		"role":         "member",
		"bio":          req.Bio,
		"createdAt":    time.Now().UTC(),
	}
	res, err := users.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = res.InsertedID
	return doc, nil
}

// AuthenticateUser checks a username (or email) and password pair. A miss on
// either returns ErrUnauthorized; the caller cannot tell which half failed.
func AuthenticateUser(ctx context.Context, store docstore.Store, req models.LoginRequest) (docstore.Document, error) {
	zap.S().Debugf("[AuthenticateUser] Login attempt for %s", req.Username)

	user, err := store.Collection("users").FindOne(ctx, docstore.Filter{
		"$or": []docstore.Filter{
			{"username": req.Username},
			{"email": req.Username},
		},
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	hash, _ := user["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// GetUserByAPIKey resolves an API key to its account, or ErrUnauthorized.
func GetUserByAPIKey(ctx context.Context, store docstore.Store, key string) (docstore.Document, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	user, err := store.Collection("users").FindOne(ctx, docstore.Filter{"apiKey": key})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// GetUser fetches a single user by id.
func GetUser(ctx context.Context, store docstore.Store, id string) (docstore.Document, error) {
	user, err := store.Collection("users").FindOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateUser applies the optional profile fields of req to the caller's own
// account and returns the updated document.
func UpdateUser(ctx context.Context, store docstore.Store, id string, req models.UpdateUserRequest) (docstore.Document, error) {
	zap.S().Infof("[UpdateUser] Updating user %s", id)

	set := docstore.Document{}
	if req.Username != nil {
		users := store.Collection("users")
		other, err := users.FindOne(ctx, docstore.Filter{"username": *req.Username})
		if err != nil {
			return nil, err
		}
		if other != nil && !docstore.EqualIDs(other["id"], id) {
			return nil, fmt.Errorf("%w: username already taken", ErrConflict)
		}
		set["username"] = *req.Username
	}
	if req.Bio != nil {
		set["bio"] = *req.Bio
	}
	if len(set) == 0 {
		return GetUser(ctx, store, id)
	}

	res, err := store.Collection("users").UpdateOne(ctx, docstore.Filter{"id": id}, docstore.Update{"$set": set})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return GetUser(ctx, store, id)
}

// newAPIKey draws 16 random bytes and returns them hex encoded.
func newAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
