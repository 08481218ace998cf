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
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// This file is the in-memory half of the query translator: it compiles the
// filter/update algebra into predicate evaluation and document mutation for
// the file store. The relational half lives in postgres_fields.go.

// matchDocument reports whether doc satisfies filter. Top-level keys are
// conjunctive; "$or" is the only operator allowed at the top level.
func matchDocument(doc Document, filter Filter) (bool, error) {
	for field, cond := range filter {
		if strings.HasPrefix(field, "$") {
			if field != "$or" {
				return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, field)
			}
			ok, err := matchOr(doc, cond)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		ok, err := matchField(doc, field, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOr(doc Document, cond any) (bool, error) {
	subs, err := toFilterList(cond)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		ok, err := matchDocument(doc, sub)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchField(doc Document, field string, cond any) (bool, error) {
	value, present := lookupField(doc, field)

	ops, isOp := operatorObject(cond)
	if !isOp {
		// Literal equality. A missing field only matches a nil literal.
		if !present {
			return cond == nil, nil
		}
		return equalValues(value, cond), nil
	}

	for op, arg := range ops {
		switch op {
		case "$in":
			if !present {
				return false, nil
			}
			members, err := toList(arg)
			if err != nil {
				return false, fmt.Errorf("docstore: $in wants a list, got %T", arg)
			}
			if !containsValue(members, value) {
				return false, nil
			}
		case "$regex":
			if !present {
				return false, nil
			}
			pattern, _ := arg.(string)
			flags, _ := ops["$options"].(string)
			re, err := compileRegex(pattern, flags)
			if err != nil {
				return false, err
			}
			if !re.MatchString(stringValue(value)) {
				return false, nil
			}
		case "$options":
			// consumed together with $regex
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return true, nil
}

// applyUpdate mutates doc in place and reports whether anything changed.
// Operator order is fixed: $set, then $push, $pull, $inc. The identity
// field is never touched.
func applyUpdate(doc Document, update Update) (bool, error) {
	for op := range update {
		switch op {
		case "$set", "$push", "$pull", "$inc":
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}

	modified := false
	if fields, err := updateFields(update, "$set"); err != nil {
		return false, err
	} else {
		for field, v := range fields {
			if field == "id" || field == "_id" {
				continue
			}
			if cur, ok := doc[field]; !ok || !equalValues(cur, v) {
				doc[field] = v
				modified = true
			}
		}
	}

	if fields, err := updateFields(update, "$push"); err != nil {
		return false, err
	} else {
		for field, v := range fields {
			list, _ := toList(doc[field])
			doc[field] = append(list, v)
			modified = true
		}
	}

	if fields, err := updateFields(update, "$pull"); err != nil {
		return false, err
	} else {
		for field, v := range fields {
			list, err := toList(doc[field])
			if err != nil {
				continue
			}
			kept := make([]any, 0, len(list))
			for _, item := range list {
				if !equalValues(item, v) {
					kept = append(kept, item)
				}
			}
			if len(kept) != len(list) {
				doc[field] = kept
				modified = true
			}
		}
	}

	if fields, err := updateFields(update, "$inc"); err != nil {
		return false, err
	} else {
		for field, v := range fields {
			cur, _ := numericValue(doc[field])
			delta, ok := numericValue(v)
			if !ok {
				return false, fmt.Errorf("docstore: $inc wants a number for %s, got %T", field, v)
			}
			doc[field] = addNumbers(cur, delta, doc[field], v)
			modified = true
		}
	}

	return modified, nil
}

func updateFields(update Update, op string) (map[string]any, error) {
	raw, ok := update[op]
	if !ok {
		return nil, nil
	}
	switch m := raw.(type) {
	case map[string]any:
		return m, nil
	case Document:
		return m, nil
	case Filter:
		return m, nil
	}
	return nil, fmt.Errorf("docstore: %s wants a field map, got %T", op, raw)
}

// sortDocuments orders docs by one field. The sort is stable so that ties
// keep their current order and re-querying without writes is deterministic.
func sortDocuments(docs []Document, field string, direction SortDirection) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := lookupField(docs[i], field)
		b, _ := lookupField(docs[j], field)
		if direction == Descending {
			return compareValues(b, a) < 0
		}
		return compareValues(a, b) < 0
	})
}

// lookupField resolves a field with identity aliasing: "id" and "_id" both
// address whichever identity key the document carries.
func lookupField(doc Document, field string) (any, bool) {
	if field == "id" || field == "_id" {
		if v, ok := doc["id"]; ok {
			return v, true
		}
		v, ok := doc["_id"]
		return v, ok
	}
	v, ok := doc[field]
	return v, ok
}

// operatorObject reports whether cond is an operator object (a map whose
// keys start with "$") and returns it in map form.
func operatorObject(cond any) (map[string]any, bool) {
	var m map[string]any
	switch c := cond.(type) {
	case map[string]any:
		m = c
	case Filter:
		m = c
	case Document:
		m = c
	default:
		return nil, false
	}
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return m, true
		}
	}
	return nil, false
}

func toFilterList(cond any) ([]Filter, error) {
	switch list := cond.(type) {
	case []Filter:
		return list, nil
	case []map[string]any:
		out := make([]Filter, len(list))
		for i, m := range list {
			out[i] = Filter(m)
		}
		return out, nil
	case []any:
		out := make([]Filter, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				if f, isFilter := item.(Filter); isFilter {
					out = append(out, f)
					continue
				}
				return nil, fmt.Errorf("docstore: $or wants a list of filters, got %T", item)
			}
			out = append(out, Filter(m))
		}
		return out, nil
	}
	return nil, fmt.Errorf("docstore: $or wants a list of filters, got %T", cond)
}

func toList(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("docstore: expected a list, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

func compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("docstore: bad $regex %q: %w", pattern, err)
	}
	return re, nil
}

// equalValues is the deep equality of the algebra: numbers compare by value
// across int/int64/float64, lists compare element-wise, everything else via
// reflect.DeepEqual.
func equalValues(a, b any) bool {
	if an, ok := numericValue(a); ok {
		if bn, bok := numericValue(b); bok {
			return an == bn
		}
		return false
	}
	if at, ok := a.(time.Time); ok {
		if bt, bok := b.(time.Time); bok {
			return at.Equal(bt)
		}
	}
	al, aerr := toListStrict(a)
	bl, berr := toListStrict(b)
	if aerr == nil && berr == nil {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !equalValues(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toListStrict(v any) ([]any, error) {
	if v == nil {
		return nil, fmt.Errorf("not a list")
	}
	if _, ok := v.(string); ok {
		return nil, fmt.Errorf("not a list")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// compareValues orders two field values: nil first, then numbers, times,
// booleans and strings. Mixed types fall back to their string forms so a
// sort never panics on a heterogeneous collection.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if an, ok := numericValue(a); ok {
		if bn, bok := numericValue(b); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	if at, ok := timeValue(a); ok {
		if bt, bok := timeValue(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(stringValue(a), stringValue(b))
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// addNumbers keeps integer arithmetic integral; only a float operand makes
// the result a float.
func addNumbers(cur, delta float64, curRaw, deltaRaw any) any {
	if isFloat(curRaw) || isFloat(deltaRaw) {
		return cur + delta
	}
	return int64(cur) + int64(delta)
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// EqualIDs reports whether two identity values refer to the same document.
// Identities surface as strings from some backends and as int64 from others,
// so the comparison goes through their canonical string form.
func EqualIDs(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return stringValue(a) == stringValue(b)
}
