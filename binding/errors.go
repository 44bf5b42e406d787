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
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is a sentinel error for validation failures.
// Use errors.Is(err, ErrValidation) to check whether an error carries
// structured field errors.
var ErrValidation = errors.New("validation")

var (
	// ErrDuplicateErrorSink indicates more than one error-sink parameter on a route.
	ErrDuplicateErrorSink = errors.New("route declares more than one validation error sink")

	// ErrUnsupportedType indicates a parameter type without a registered converter.
	ErrUnsupportedType = errors.New("unsupported parameter type")

	// ErrNotAStruct indicates a schema or field expansion applied to a non-struct type.
	ErrNotAStruct = errors.New("not a struct type")
)

// FieldError is a single structured validation error.
//
// Example:
//
//	err := FieldError{
//	    Path:    "value.a",
//	    Code:    "invalid_number",
//	    Message: "must be a valid integer",
//	}
type FieldError struct {
	Path    string         `json:"path"`           // Dotted path (e.g. "value.a", "items.2.price")
	Code    string         `json:"code"`           // Stable code (e.g. "invalid_number", "tag.min")
	Message string         `json:"message"`        // Human-readable message
	Meta    map[string]any `json:"meta,omitempty"` // Additional metadata (tag, param, raw value)
}

// Error returns "path: message", or just the message when the path is empty.
func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Unwrap returns [ErrValidation] for errors.Is compatibility.
func (e FieldError) Unwrap() error { return ErrValidation }

// Errors collects the field errors of one dispatch. Errors implements error
// and is also the marker type for validation-error-sink parameters: a route
// parameter declared with type *Errors receives the accumulated path and
// query errors instead of failing the dispatch.
//
//nolint:recvcheck // error interface needs a value receiver, mutators a pointer
type Errors struct {
	Fields []FieldError `json:"errors"`
}

// Add appends a new [FieldError].
func (v *Errors) Add(path, code, message string, meta map[string]any) {
	v.Fields = append(v.Fields, FieldError{Path: path, Code: code, Message: message, Meta: meta})
}

// AddError appends err, flattening FieldError and *Errors values and
// wrapping anything else under a generic code.
func (v *Errors) AddError(err error) {
	switch e := err.(type) {
	case FieldError:
		v.Fields = append(v.Fields, e)
	case *FieldError:
		v.Fields = append(v.Fields, *e)
	case *Errors:
		v.Fields = append(v.Fields, e.Fields...)
	default:
		v.Fields = append(v.Fields, FieldError{Code: "error", Message: err.Error()})
	}
}

// AddAt appends err like [Errors.AddError], stamping path onto field errors
// that carry none.
func (v *Errors) AddAt(path string, err error) {
	v.AddError(withPath(err, path))
}

// Merge appends all fields of other.
func (v *Errors) Merge(other *Errors) {
	if other != nil {
		v.Fields = append(v.Fields, other.Fields...)
	}
}

// Empty reports whether no errors were collected.
func (v *Errors) Empty() bool { return v == nil || len(v.Fields) == 0 }

// Error returns a formatted message joining all field errors.
func (v Errors) Error() string {
	switch len(v.Fields) {
	case 0:
		return ""
	case 1:
		return v.Fields[0].Error()
	}

	msgs := make([]string, 0, len(v.Fields))
	for _, err := range v.Fields {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap returns [ErrValidation] for errors.Is compatibility.
func (v Errors) Unwrap() error { return ErrValidation }

// HTTPStatus maps validation failures to 422 Unprocessable Entity.
func (v Errors) HTTPStatus() int { return 422 }
