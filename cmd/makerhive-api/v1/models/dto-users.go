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

package models

import "github.com/makerhive/makerhive/internal/docstore"

type RegisterUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Bio      string `json:"bio" binding:"max=500"`
}

type LoginRequest struct {
	// Username also accepts the account email.
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=32,alphanum"`
	Bio      *string `json:"bio" binding:"omitempty,max=500"`
}

// PublicUser strips credentials from a user document before it goes out on
// the wire. The document itself is not mutated.
func PublicUser(doc docstore.Document) docstore.Document {
	if doc == nil {
		return nil
	}
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		if k == "passwordHash" || k == "apiKey" {
			continue
		}
		out[k] = v
	}
	return out
}
