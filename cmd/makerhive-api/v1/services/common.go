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

// Package services holds the business logic behind the v1 REST surface.
// Every function takes the store handle explicitly; there is no package
// level database state.
package services

import (
	"errors"

	"github.com/makerhive/makerhive/internal/docstore"
)

var (
	// ErrNotFound means the addressed document does not exist.
	ErrNotFound = errors.New("services: not found")

	// ErrConflict means a uniqueness rule was violated.
	ErrConflict = errors.New("services: conflict")

	// ErrForbidden means the caller is authenticated but does not own the
	// addressed document.
	ErrForbidden = errors.New("services: forbidden")

	// ErrUnauthorized means the supplied credentials are wrong or missing.
	ErrUnauthorized = errors.New("services: unauthorized")
)

// listQuery applies the shared list options to a query: newest first, then
// skip and limit. A zero limit falls back to the default page size.
func listQuery(q docstore.Query, skip, limit int64) docstore.Query {
	if limit <= 0 {
		limit = 20
	}
	q = q.Sort("createdAt", docstore.Descending)
	if skip > 0 {
		q = q.Skip(skip)
	}
	return q.Limit(limit)
}
