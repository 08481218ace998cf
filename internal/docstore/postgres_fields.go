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

package docstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// The relational half of the query translator. Every collection maps onto a
// fixed table; document field names translate to column names through a
// static, bidirectional table. Fields without an entry pass through
// unchanged (they are already lower_snake or single words).

type tableSchema struct {
	table string
	// toColumn maps document field -> column for the fields whose names
	// differ lexically. The reverse map is derived in init.
	toColumn map[string]string
	toField  map[string]string
	// columns lists every column in DDL order, used for SELECT and scans.
	columns []string
	// arrayColumns are TEXT[] and scan through pq.StringArray.
	arrayColumns map[string]bool
	// intColumns hold integer identities and counters. Callers routinely
	// pass ids as strings (URL path parameters); those coerce to int64
	// before hitting the driver.
	intColumns map[string]bool
}

// camelToSnake pairs shared by several tables.
var commonFieldColumns = map[string]string{
	"createdAt":    "created_at",
	"userId":       "user_id",
	"discussionId": "discussion_id",
	"passwordHash": "password_hash",
	"apiKey":       "api_key",
	"videoUrl":     "video_url",
	"createdBy":    "created_by",
}

var pgTables = map[string]*tableSchema{
	"users": {
		table:      "users",
		columns:    []string{"id", "username", "email", "password_hash", "api_key", "role", "bio", "created_at"},
		intColumns: map[string]bool{"id": true},
	},
	"projects": {
		table:        "projects",
		columns:      []string{"id", "user_id", "title", "description", "category", "tags", "likes", "created_at"},
		arrayColumns: map[string]bool{"tags": true},
		intColumns:   map[string]bool{"id": true, "user_id": true, "likes": true},
	},
	"discussions": {
		table:      "discussions",
		columns:    []string{"id", "user_id", "title", "content", "category", "created_at"},
		intColumns: map[string]bool{"id": true, "user_id": true},
	},
	"replies": {
		table:      "replies",
		columns:    []string{"id", "discussion_id", "user_id", "content", "created_at"},
		intColumns: map[string]bool{"id": true, "discussion_id": true, "user_id": true},
	},
	"lessons": {
		table:      "lessons",
		columns:    []string{"id", "title", "description", "category", "level", "video_url", "duration", "created_at"},
		intColumns: map[string]bool{"id": true, "duration": true},
	},
	"rooms": {
		table:        "rooms",
		columns:      []string{"id", "name", "description", "created_by", "members", "created_at"},
		arrayColumns: map[string]bool{"members": true},
		intColumns:   map[string]bool{"id": true, "created_by": true},
	},
}

func init() {
	for _, ts := range pgTables {
		ts.toColumn = make(map[string]string)
		ts.toField = make(map[string]string)
		for field, col := range commonFieldColumns {
			for _, c := range ts.columns {
				if c == col {
					ts.toColumn[field] = col
					ts.toField[col] = field
				}
			}
		}
	}
}

// fieldToColumn translates one logical field name. The identity aliases
// "id" and "_id" always land on the id column.
func (ts *tableSchema) fieldToColumn(field string) string {
	if field == "id" || field == "_id" {
		return "id"
	}
	if col, ok := ts.toColumn[field]; ok {
		return col
	}
	return field
}

func (ts *tableSchema) columnToField(col string) string {
	if field, ok := ts.toField[col]; ok {
		return field
	}
	return col
}

// whereClause translates a Filter into a conjunction of parameterized
// conditions. Positional placeholders start at argIdx. Filter keys are
// visited in sorted order so the produced SQL is deterministic.
func (ts *tableSchema) whereClause(filter Filter, argIdx int) (string, []any, error) {
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var conds []string
	var args []any
	for _, field := range fields {
		cond := filter[field]

		if strings.HasPrefix(field, "$") {
			if field != "$or" {
				return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, field)
			}
			subs, err := toFilterList(cond)
			if err != nil {
				return "", nil, err
			}
			var branches []string
			for _, sub := range subs {
				branch, branchArgs, err := ts.whereClause(sub, argIdx+len(args))
				if err != nil {
					return "", nil, err
				}
				if branch == "" {
					branch = "TRUE"
				}
				branches = append(branches, "("+branch+")")
				args = append(args, branchArgs...)
			}
			if len(branches) == 0 {
				// An empty $or matches nothing.
				conds = append(conds, "FALSE")
				continue
			}
			conds = append(conds, "("+strings.Join(branches, " OR ")+")")
			continue
		}

		col := ts.fieldToColumn(field)
		ops, isOp := operatorObject(cond)
		if !isOp {
			if cond == nil {
				conds = append(conds, col+" IS NULL")
				continue
			}
			args = append(args, ts.sqlArg(col, cond))
			conds = append(conds, fmt.Sprintf("%s = $%d", col, argIdx+len(args)-1))
			continue
		}

		for _, op := range sortedKeys(ops) {
			arg := ops[op]
			switch op {
			case "$in":
				members, err := toList(arg)
				if err != nil {
					return "", nil, fmt.Errorf("docstore: $in wants a list, got %T", arg)
				}
				if ts.intColumns[col] {
					args = append(args, pq.Array(intifyList(members)))
				} else {
					args = append(args, pq.Array(stringifyList(members)))
				}
				conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, argIdx+len(args)-1))
			case "$regex":
				operator := "~"
				if flags, _ := ops["$options"].(string); strings.Contains(flags, "i") {
					operator = "~*"
				}
				args = append(args, arg)
				conds = append(conds, fmt.Sprintf("%s %s $%d", col, operator, argIdx+len(args)-1))
			case "$options":
				// consumed by $regex
			default:
				return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
			}
		}
	}
	return strings.Join(conds, " AND "), args, nil
}

// setClause translates an Update into a SET clause. $set assignments come
// first, then $push, $pull and $inc, matching the in-memory order. The
// identity column is never assigned, even when present in the payload.
func (ts *tableSchema) setClause(update Update, argIdx int) (string, []any, error) {
	for op := range update {
		switch op {
		case "$set", "$push", "$pull", "$inc":
		default:
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}

	var assigns []string
	var args []any

	appendOp := func(op string, build func(col string, n int) string) error {
		fields, err := updateFields(update, op)
		if err != nil {
			return err
		}
		for _, field := range sortedKeys(fields) {
			if field == "id" || field == "_id" {
				continue
			}
			col := ts.fieldToColumn(field)
			args = append(args, ts.sqlArg(col, fields[field]))
			assigns = append(assigns, build(col, argIdx+len(args)-1))
		}
		return nil
	}

	if err := appendOp("$set", func(col string, n int) string {
		return fmt.Sprintf("%s = $%d", col, n)
	}); err != nil {
		return "", nil, err
	}
	if err := appendOp("$push", func(col string, n int) string {
		return fmt.Sprintf("%s = array_append(%s, $%d)", col, col, n)
	}); err != nil {
		return "", nil, err
	}
	if err := appendOp("$pull", func(col string, n int) string {
		return fmt.Sprintf("%s = array_remove(%s, $%d)", col, col, n)
	}); err != nil {
		return "", nil, err
	}
	if err := appendOp("$inc", func(col string, n int) string {
		return fmt.Sprintf("%s = %s + $%d", col, col, n)
	}); err != nil {
		return "", nil, err
	}

	if len(assigns) == 0 {
		return "", nil, fmt.Errorf("docstore: update contains no assignments")
	}
	return strings.Join(assigns, ", "), args, nil
}

// insertColumns translates a document into parallel column/value slices,
// omitting the identity column (the database generates it).
func (ts *tableSchema) insertColumns(doc Document) (cols []string, vals []any) {
	for _, field := range sortedKeys(doc) {
		if field == "id" || field == "_id" {
			continue
		}
		col := ts.fieldToColumn(field)
		cols = append(cols, col)
		vals = append(vals, ts.sqlArg(col, doc[field]))
	}
	return cols, vals
}

// sqlArg adapts one document value for the driver: lists travel as text[],
// and string-typed values aimed at integer columns parse to int64.
func (ts *tableSchema) sqlArg(col string, v any) any {
	if ts.intColumns[col] {
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		return v
	}
	if list, err := toListStrict(v); err == nil {
		return pq.Array(stringifyList(list))
	}
	return v
}

func stringifyList(list []any) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = stringValue(item)
	}
	return out
}

// intifyList coerces $in members aimed at an integer column. Entries that
// do not parse map to -1, which matches no generated identity.
func intifyList(list []any) []int64 {
	out := make([]int64, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case int64:
			out[i] = v
		case int:
			out[i] = int64(v)
		case float64:
			out[i] = int64(v)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				n = -1
			}
			out[i] = n
		default:
			out[i] = -1
		}
	}
	return out
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
