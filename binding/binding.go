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

// Package binding classifies declared handler parameters into bindings and
// builds the converter/validator pipeline each binding runs at dispatch
// time.
//
// Classification follows the declaration metadata supplied by the caller
// (typically a controller registration layer): a parameter whose type is
// *Errors becomes the route's validation error sink; an explicit body or
// query hint wins next; a name matching a path-template token binds to that
// capture; anything else is an injected dependency resolved from the
// capability provider.
package binding

import (
	"fmt"
	"reflect"
)

// Hint is the binding hint carried by controller metadata.
type Hint uint8

const (
	// HintNone lets classification fall through to path or injection.
	HintNone Hint = iota

	// HintQuery binds the parameter to the request query string.
	HintQuery

	// HintBody binds the parameter to the parsed request body.
	HintBody
)

// Kind is the resolved binding kind of a handler parameter.
type Kind uint8

const (
	// KindPath binds to a path-template capture.
	KindPath Kind = iota + 1

	// KindQuery binds to the query string.
	KindQuery

	// KindBody binds to the parsed request body.
	KindBody

	// KindInjected resolves from the capability provider by declared type.
	KindInjected

	// KindErrorSink receives the accumulated path/query validation errors.
	KindErrorSink
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindQuery:
		return "query"
	case KindBody:
		return "body"
	case KindInjected:
		return "injected"
	case KindErrorSink:
		return "errors"
	default:
		return "unknown"
	}
}

// Param describes one declared handler parameter, as supplied by controller
// metadata at route registration time.
type Param struct {
	// Name is the declared parameter name. For path binding it must match a
	// path-template token.
	Name string

	// Type is the declared value type, used for conversion and validation.
	// A nil Type means "any" (passthrough).
	Type reflect.Type

	// Hint is the binding hint from the registration metadata.
	Hint Hint

	// PathOverride replaces the dotted access path for query and body
	// bindings. The default is the parameter's own name for query bindings
	// and the whole payload for body bindings. For query bindings an
	// explicit empty override ("") means the whole query object; set
	// WholeQuery to distinguish that from "not overridden".
	PathOverride string

	// WholeQuery binds the parameter to the entire query object.
	WholeQuery bool

	// Optional marks the parameter optional regardless of what its type
	// says. Route metadata can relax a required parameter but never
	// tighten an optional one.
	Optional bool

	// Validate optionally adds a per-parameter validator on top of the
	// type's own validation.
	Validate ValidateFunc
}

// Binding is the resolved form of a Param: the classified kind plus the
// callables the dispatcher runs to materialize the argument.
type Binding struct {
	Kind     Kind
	Name     string
	Path     string // dotted access path for query/body bindings
	Index    int    // capture index for path bindings
	Optional bool
	Type     reflect.Type

	// Convert turns the raw extracted value into the declared type. Nil for
	// body, injected, and error-sink bindings.
	Convert ConvertFunc

	// Validate appends structured errors for the converted value. May be nil.
	Validate ValidateFunc
}

// errorsSinkType is the marker type for validation-error-sink parameters.
var errorsSinkType = reflect.TypeOf((*Errors)(nil))

// Resolve classifies params against the path-template token names and
// builds one Binding per parameter, in declaration order. It returns the
// bindings, whether any parameter requires body parsing, and whether a
// validation error sink is present. Declaring two error sinks is a
// configuration error.
func Resolve(params []Param, pathNames []string, types *TypeSet) (bindings []Binding, needsBody, hasSink bool, err error) {
	bindings = make([]Binding, 0, len(params))

	for _, p := range params {
		b := Binding{
			Name:     p.Name,
			Type:     p.Type,
			Optional: p.Optional || (p.Type != nil && p.Type.Kind() == reflect.Pointer),
		}

		switch {
		case p.Type == errorsSinkType:
			if hasSink {
				return nil, false, false, fmt.Errorf("%w: parameter %q", ErrDuplicateErrorSink, p.Name)
			}
			hasSink = true
			b.Kind = KindErrorSink

		case p.Hint == HintBody:
			needsBody = true
			b.Kind = KindBody
			b.Path = p.PathOverride
			b.Validate = composite(types.Validator(valueType(p.Type)), p.Validate)

		case p.Hint == HintQuery:
			b.Kind = KindQuery
			switch {
			case p.WholeQuery:
				b.Path = ""
			case p.PathOverride != "":
				b.Path = p.PathOverride
			default:
				b.Path = p.Name
			}
			b.Convert = types.Converter(valueType(p.Type))
			b.Validate = composite(types.Validator(valueType(p.Type)), p.Validate)

		default:
			if idx := indexOf(pathNames, p.Name); idx >= 0 {
				b.Kind = KindPath
				b.Index = idx
				b.Convert = types.Converter(valueType(p.Type))
				b.Validate = composite(types.Validator(valueType(p.Type)), p.Validate)
			} else {
				b.Kind = KindInjected
			}
		}

		bindings = append(bindings, b)
	}

	return bindings, needsBody, hasSink, nil
}

// valueType normalizes typeless ("any") parameters.
func valueType(t reflect.Type) reflect.Type {
	if t == nil {
		return anyType
	}
	return t
}

// composite chains the type validator and the per-parameter validator.
func composite(typeV, paramV ValidateFunc) ValidateFunc {
	switch {
	case typeV == nil:
		return paramV
	case paramV == nil:
		return typeV
	default:
		return func(value any, path string, sink *Errors) {
			typeV(value, path, sink)
			paramV(value, path, sink)
		}
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// IsStructured reports whether t expands field-by-field for query binding
// (a struct other than the builtin scalar struct types).
func IsStructured(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType && t != uuidType
}
