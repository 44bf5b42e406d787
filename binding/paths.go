// Copyright 2025 The Courier Authors
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

package binding

import (
	"fmt"
	"reflect"
	"strings"
)

// BracketPath converts a dotted access path to the bracket convention used
// for query keys: "a.b.c" becomes "a[b][c]". A path without dots is
// returned unchanged. The same convention is used for validation paths of
// class-typed query parameters and for URL generation, so the two always
// agree on key names.
func BracketPath(dotted string) string {
	parts := strings.Split(dotted, ".")
	if len(parts) == 1 {
		return dotted
	}

	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteByte('[')
		b.WriteString(p)
		b.WriteByte(']')
	}
	return b.String()
}

// JoinPath joins two dotted path fragments, tolerating empty prefixes.
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

// Lookup walks a nested field mapping along a dotted path. An empty path
// returns the mapping itself.
func Lookup(fields map[string]any, dotted string) (any, bool) {
	if dotted == "" {
		return fields, true
	}

	var current any = fields
	for part := range strings.SplitSeq(dotted, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// FlattenQuery walks value and emits one (key, stringValue) pair per defined
// leaf, using the dotted-to-bracket key convention. Undefined values (nil
// interfaces, nil pointers, nil map entries) are omitted entirely rather
// than serialized as empty. Struct fields are named by their json tag when
// present, otherwise by the field name.
func FlattenQuery(prefix string, value any, emit func(key, val string)) {
	flatten(prefix, reflect.ValueOf(value), emit)
}

func flatten(path string, v reflect.Value, emit func(key, val string)) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		flatten(path, v.Elem(), emit)

	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if f.PkgPath != "" { // unexported
				continue
			}
			flatten(JoinPath(path, fieldName(f)), v.Field(i), emit)
		}

	case reflect.Map:
		for _, k := range v.MapKeys() {
			flatten(JoinPath(path, fmt.Sprint(k.Interface())), v.MapIndex(k), emit)
		}

	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			flatten(path, v.Index(i), emit)
		}

	default:
		emit(BracketPath(path), fmt.Sprint(v.Interface()))
	}
}

// fieldName returns the query/body name of a struct field: the json tag
// name when present, else the field name as declared.
func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}
