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

type CreateLessonRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=200"`
	Description string `json:"description" binding:"max=5000"`
	Category    string `json:"category" binding:"max=64"`
	Level       string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	VideoUrl    string `json:"videoUrl" binding:"omitempty,url"`
	// Duration is in minutes.
	Duration int `json:"duration" binding:"omitempty,min=1,max=1440"`
}
