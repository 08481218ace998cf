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

type CreateProjectRequest struct {
	Title       string   `json:"title" binding:"required,min=3,max=120"`
	Description string   `json:"description" binding:"max=5000"`
	Category    string   `json:"category" binding:"max=64"`
	Tags        []string `json:"tags" binding:"max=10,dive,max=32"`
}

type UpdateProjectRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=3,max=120"`
	Description *string   `json:"description" binding:"omitempty,max=5000"`
	Category    *string   `json:"category" binding:"omitempty,max=64"`
	Tags        *[]string `json:"tags" binding:"omitempty,max=10,dive,max=32"`
}

// ListOptions carries the pagination and filtering knobs shared by the list
// endpoints. Categories with more than one entry become an $in filter;
// Search becomes a case-insensitive $regex over title and description.
type ListOptions struct {
	Categories []string
	Search     string
	Skip       int64
	Limit      int64
}
