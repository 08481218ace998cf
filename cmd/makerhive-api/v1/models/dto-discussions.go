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

type CreateDiscussionRequest struct {
	Title    string `json:"title" binding:"required,min=3,max=200"`
	Content  string `json:"content" binding:"required,max=10000"`
	Category string `json:"category" binding:"max=64"`
}

type CreateReplyRequest struct {
	Content string `json:"content" binding:"required,max=10000"`
}
