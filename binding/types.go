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
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ConvertFunc turns a raw string value into a typed value. Conversion
// failures are reported as *FieldError so the dispatcher can attach the
// parameter path.
type ConvertFunc func(raw string) (any, error)

// ValidateFunc validates a converted value and appends structured errors to
// sink. path is the dotted path under which errors are reported.
type ValidateFunc func(value any, path string, sink *Errors)

// TypeSet is the type conversion and validation service consumed by the
// route parameter resolver. It holds per-type converters and validators,
// struct-tag validation via go-playground/validator, and optional JSON
// Schema validation per type.
//
// A TypeSet is safe for concurrent use after construction. Registering
// converters, validators, or schemas concurrently with dispatch is not
// supported; do it during startup.
type TypeSet struct {
	mu         sync.RWMutex
	converters map[reflect.Type]ConvertFunc
	validators map[reflect.Type]ValidateFunc
	schemas    map[reflect.Type]*schemaValidator

	tagOnce sync.Once
	tag     *validator.Validate
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
	stringsType  = reflect.TypeOf([]string(nil))
)

// timeLayouts are tried in order when converting time.Time parameters.
var timeLayouts = []string{time.RFC3339, time.DateOnly, time.DateTime}

// NewTypeSet returns a TypeSet with converters for the builtin parameter
// types: strings, booleans, all integer widths, floats, time.Time,
// time.Duration, uuid.UUID, []string, and passthrough for any.
func NewTypeSet() *TypeSet {
	ts := &TypeSet{
		converters: make(map[reflect.Type]ConvertFunc),
		validators: make(map[reflect.Type]ValidateFunc),
		schemas:    make(map[reflect.Type]*schemaValidator),
	}

	ts.converters[timeType] = convertTime
	ts.converters[durationType] = convertDuration
	ts.converters[uuidType] = convertUUID
	ts.converters[anyType] = func(raw string) (any, error) { return raw, nil }
	ts.converters[stringsType] = func(raw string) (any, error) {
		if raw == "" {
			return []string(nil), nil
		}
		return strings.Split(raw, ","), nil
	}

	return ts
}

// RegisterConverter installs fn as the converter for t, replacing any
// builtin or previously registered converter.
func (ts *TypeSet) RegisterConverter(t reflect.Type, fn ConvertFunc) {
	ts.mu.Lock()
	ts.converters[t] = fn
	ts.mu.Unlock()
}

// RegisterValidator installs fn as the validator for t. It runs after
// conversion, in addition to struct-tag and schema validation.
func (ts *TypeSet) RegisterValidator(t reflect.Type, fn ValidateFunc) {
	ts.mu.Lock()
	ts.validators[t] = fn
	ts.mu.Unlock()
}

// Converter returns the converter for t. Types without an explicit
// registration fall back to a kind-based converter; unsupported kinds get a
// converter that always fails with ErrUnsupportedType.
func (ts *TypeSet) Converter(t reflect.Type) ConvertFunc {
	ts.mu.RLock()
	fn, ok := ts.converters[t]
	ts.mu.RUnlock()
	if ok {
		return fn
	}

	elem := t
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		elem = t.Elem()
		ts.mu.RLock()
		fn, ok = ts.converters[elem]
		ts.mu.RUnlock()
		if ok {
			return fn
		}
	}

	kindFn := kindConverter(elem.Kind())
	if kindFn == nil {
		return func(string) (any, error) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
		}
	}
	return kindFn
}

// kindConverter returns a converter for primitive kinds, or nil.
func kindConverter(k reflect.Kind) ConvertFunc {
	switch k {
	case reflect.String:
		return func(raw string) (any, error) { return raw, nil }

	case reflect.Bool:
		return func(raw string) (any, error) {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, &FieldError{Code: "invalid_bool", Message: fmt.Sprintf("%q is not a valid boolean", raw)}
			}
			return b, nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(raw string) (any, error) {
			i, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, &FieldError{Code: "invalid_number", Message: fmt.Sprintf("%q is not a valid integer", raw)}
			}
			return coerceInt(k, i), nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(raw string) (any, error) {
			u, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, &FieldError{Code: "invalid_number", Message: fmt.Sprintf("%q is not a valid unsigned integer", raw)}
			}
			return coerceUint(k, u), nil
		}

	case reflect.Float32, reflect.Float64:
		return func(raw string) (any, error) {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &FieldError{Code: "invalid_number", Message: fmt.Sprintf("%q is not a valid number", raw)}
			}
			if k == reflect.Float32 {
				return float32(f), nil
			}
			return f, nil
		}

	case reflect.Interface:
		return func(raw string) (any, error) { return raw, nil }

	default:
		return nil
	}
}

func coerceInt(k reflect.Kind, i int64) any {
	switch k {
	case reflect.Int8:
		return int8(i)
	case reflect.Int16:
		return int16(i)
	case reflect.Int32:
		return int32(i)
	case reflect.Int64:
		return i
	default:
		return int(i)
	}
}

func coerceUint(k reflect.Kind, u uint64) any {
	switch k {
	case reflect.Uint8:
		return uint8(u)
	case reflect.Uint16:
		return uint16(u)
	case reflect.Uint32:
		return uint32(u)
	case reflect.Uint64:
		return u
	default:
		return uint(u)
	}
}

func convertTime(raw string) (any, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return nil, &FieldError{Code: "invalid_time", Message: fmt.Sprintf("%q is not a valid timestamp", raw)}
}

func convertDuration(raw string) (any, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, &FieldError{Code: "invalid_duration", Message: fmt.Sprintf("%q is not a valid duration", raw)}
	}
	return d, nil
}

func convertUUID(raw string) (any, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return nil, &FieldError{Code: "invalid_uuid", Message: fmt.Sprintf("%q is not a valid UUID", raw)}
	}
	return u, nil
}

// tagValidator lazily initializes the go-playground validator with json tag
// names so error paths match wire field names.
func (ts *TypeSet) tagValidator() *validator.Validate {
	ts.tagOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return fieldName(f)
		})
		ts.tag = v
	})
	return ts.tag
}

// Validator returns the composite validator for t: a registered per-type
// validator (if any), struct-tag validation for struct types, and JSON
// Schema validation when a schema was registered. A nil return means t has
// nothing to validate.
func (ts *TypeSet) Validator(t reflect.Type) ValidateFunc {
	ts.mu.RLock()
	custom := ts.validators[t]
	schema := ts.schemas[t]
	ts.mu.RUnlock()

	elem := t
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	structural := elem.Kind() == reflect.Struct && elem != timeType && elem != uuidType

	if custom == nil && schema == nil && !structural {
		return nil
	}

	return func(value any, path string, sink *Errors) {
		if value == nil {
			return
		}
		if structural {
			ts.validateTags(value, path, sink)
		}
		if schema != nil {
			schema.validate(value, path, sink)
		}
		if custom != nil {
			custom(value, path, sink)
		}
	}
}

// validateTags runs go-playground struct-tag validation and converts its
// errors to FieldError records with paths rooted at path.
func (ts *TypeSet) validateTags(value any, path string, sink *Errors) {
	err := ts.tagValidator().Struct(value)
	if err == nil {
		return
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		sink.Add(path, "invalid_value", err.Error(), nil)
		return
	}

	for _, e := range verrs {
		// Namespace is "Type.field.subfield" using registered tag names;
		// drop the leading type name.
		ns := e.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		} else {
			ns = ""
		}

		sink.Add(JoinPath(path, ns), "tag."+e.Tag(), tagMessage(e), map[string]any{
			"tag":   e.Tag(),
			"param": e.Param(),
		})
	}
}

// tagMessage renders a short human-readable message for a tag failure.
func tagMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of %s", e.Param())
	default:
		return fmt.Sprintf("failed %q validation", e.Tag())
	}
}

// DecodeBody decodes a parsed body payload (a field mapping or a narrowed
// sub-value of one) into a freshly allocated value of type t. Decoding goes
// through encoding/json so json tags and nested structures behave exactly
// like a JSON body would.
func (ts *TypeSet) DecodeBody(t reflect.Type, payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &FieldError{Code: "invalid_body", Message: err.Error()}
	}

	target := t
	for target.Kind() == reflect.Pointer {
		target = target.Elem()
	}

	out := reflect.New(target)
	if err := json.Unmarshal(raw, out.Interface()); err != nil {
		return nil, &FieldError{Code: "invalid_body", Message: err.Error()}
	}

	if t.Kind() == reflect.Pointer {
		return out.Interface(), nil
	}
	return out.Elem().Interface(), nil
}

// DecodeQueryStruct builds a value of struct type t from query values,
// looking each exported field up under the bracketed key derived from
// JoinPath(path, field). Struct-kinded fields recurse with the extended
// field path, mirroring how FlattenQuery emits keys, so "a.b.c" decodes
// from "a[b][c]". get returns the raw value for a key and whether it was
// present. Conversion failures are reported per field; missing fields are
// left at their zero value.
func (ts *TypeSet) DecodeQueryStruct(t reflect.Type, path string, get func(key string) (string, bool), sink *Errors) any {
	target := t
	for target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct {
		sink.Add(path, "invalid_value", ErrNotAStruct.Error(), nil)
		return nil
	}

	out, _ := ts.decodeStructFields(target, path, get, sink)

	if t.Kind() == reflect.Pointer {
		p := reflect.New(target)
		p.Elem().Set(out)
		return p.Interface()
	}
	return out.Interface()
}

// decodeStructFields fills one struct level, recursing into struct-kinded
// fields. It reports whether any key was present so nested structs with no
// keys stay at their zero value (nil for pointer fields).
func (ts *TypeSet) decodeStructFields(target reflect.Type, path string, get func(key string) (string, bool), sink *Errors) (reflect.Value, bool) {
	out := reflect.New(target).Elem()
	present := false

	for i := range target.NumField() {
		f := target.Field(i)
		if f.PkgPath != "" {
			continue
		}
		fieldPath := JoinPath(path, fieldName(f))

		if IsStructured(f.Type) {
			elem := f.Type
			for elem.Kind() == reflect.Pointer {
				elem = elem.Elem()
			}
			nested, ok := ts.decodeStructFields(elem, fieldPath, get, sink)
			if !ok {
				continue
			}
			present = true
			if f.Type.Kind() == reflect.Pointer {
				p := reflect.New(elem)
				p.Elem().Set(nested)
				out.Field(i).Set(p)
			} else {
				out.Field(i).Set(nested)
			}
			continue
		}

		raw, ok := get(BracketPath(fieldPath))
		if !ok {
			continue
		}
		present = true

		converted, err := ts.Converter(f.Type)(raw)
		if err != nil {
			sink.AddError(withPath(err, fieldPath))
			continue
		}
		setValue(out.Field(i), converted)
	}

	return out, present
}

// setValue assigns converted (possibly a pointee value for pointer fields).
func setValue(field reflect.Value, converted any) {
	v := reflect.ValueOf(converted)
	if !v.IsValid() {
		return
	}
	if field.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		p := reflect.New(field.Type().Elem())
		p.Elem().Set(v.Convert(field.Type().Elem()))
		field.Set(p)
		return
	}
	field.Set(v.Convert(field.Type()))
}

// withPath stamps path onto FieldError values that have none.
func withPath(err error, path string) error {
	switch e := err.(type) {
	case *FieldError:
		if e.Path == "" {
			e.Path = path
		}
		return e
	case FieldError:
		if e.Path == "" {
			e.Path = path
		}
		return e
	default:
		return &FieldError{Path: path, Code: "invalid_value", Message: err.Error()}
	}
}
