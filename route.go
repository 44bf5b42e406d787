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

package courier

import (
	"fmt"
	"strings"

	"github.com/courier-go/courier/binding"
)

// HandlerRef is an opaque reference to the handler a route dispatches to:
// a target (controller instance, struct, or function; courier never calls it)
// plus a method identifier. The transport layer invokes the handler with
// the materialized argument list.
type HandlerRef struct {
	Target any
	Method string
}

// RouteDefinition is the identity record of one route: name, HTTP method,
// path template (with :name segments), handler reference, declared handler
// parameters, per-parameter regex overrides, and free-form introspection
// metadata.
//
// Definitions are built fluently and become immutable once registered:
//
//	r := courier.NewRoute(http.MethodGet, "/users/:id").
//	    Named("userProfile").
//	    Handle(ctrl, "GetUser").
//	    WhereInt("id").
//	    Params(binding.Param{Name: "id", Type: reflect.TypeOf(0)}).
//	    Describe("Fetch a single user")
//
// Mutating a definition after AddRoute panics with ErrRouteSealed.
type RouteDefinition struct {
	name     string
	method   string
	path     string
	basePath string
	handler  HandlerRef
	where    map[string]string
	params   []binding.Param

	description string
	category    string
	tags        []string

	sealed bool
}

// NewRoute starts a route definition for the given HTTP method and path
// template.
func NewRoute(method, path string) *RouteDefinition {
	return &RouteDefinition{
		method: strings.ToUpper(method),
		path:   path,
		where:  map[string]string{},
	}
}

func (r *RouteDefinition) mutable() *RouteDefinition {
	if r.sealed {
		panic(fmt.Sprintf("courier: %v", ErrRouteSealed))
	}
	return r
}

// Named sets the route name used for URL resolution. Names are unique
// within a registry; registering a second route under the same name makes
// the newer route win name lookups.
func (r *RouteDefinition) Named(name string) *RouteDefinition {
	r.mutable().name = name
	return r
}

// Base sets an optional base path prefix joined with the template at
// compile time.
func (r *RouteDefinition) Base(prefix string) *RouteDefinition {
	r.mutable().basePath = prefix
	return r
}

// Handle sets the handler reference.
func (r *RouteDefinition) Handle(target any, method string) *RouteDefinition {
	r.mutable().handler = HandlerRef{Target: target, Method: method}
	return r
}

// Where overrides the regex fragment for one path parameter. The default
// fragment matches one path segment.
func (r *RouteDefinition) Where(param, regex string) *RouteDefinition {
	r.mutable().where[param] = regex
	return r
}

// WhereInt constrains a path parameter to decimal digits.
func (r *RouteDefinition) WhereInt(param string) *RouteDefinition {
	return r.Where(param, `\d+`)
}

// WhereUUID constrains a path parameter to the canonical UUID form.
func (r *RouteDefinition) WhereUUID(param string) *RouteDefinition {
	return r.Where(param, `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
}

// Params declares the handler parameters in call order.
func (r *RouteDefinition) Params(params ...binding.Param) *RouteDefinition {
	r.mutable().params = append(r.params, params...)
	return r
}

// Describe sets the free-form description carried for introspection only.
func (r *RouteDefinition) Describe(description string) *RouteDefinition {
	r.mutable().description = description
	return r
}

// CategoryName sets the introspection category.
func (r *RouteDefinition) CategoryName(category string) *RouteDefinition {
	r.mutable().category = category
	return r
}

// Tagged appends introspection tags.
func (r *RouteDefinition) Tagged(tags ...string) *RouteDefinition {
	r.mutable().tags = append(r.tags, tags...)
	return r
}

// seal marks the definition immutable. Called by Registry.AddRoute.
func (r *RouteDefinition) seal() { r.sealed = true }

// Name returns the route name, empty if unnamed.
func (r *RouteDefinition) Name() string { return r.name }

// Method returns the upper-cased HTTP method.
func (r *RouteDefinition) Method() string { return r.method }

// Path returns the path template as declared, without the base prefix.
func (r *RouteDefinition) Path() string { return r.path }

// FullPath returns the base prefix joined with the path template. A single
// slash is kept between the two regardless of how they were written.
func (r *RouteDefinition) FullPath() string {
	if r.basePath == "" {
		return r.path
	}
	return strings.TrimSuffix(r.basePath, "/") + "/" + strings.TrimPrefix(r.path, "/")
}

// Handler returns the opaque handler reference.
func (r *RouteDefinition) Handler() HandlerRef { return r.handler }

// Parameters returns the declared handler parameters in call order. The
// returned slice is a copy.
func (r *RouteDefinition) Parameters() []binding.Param {
	out := make([]binding.Param, len(r.params))
	copy(out, r.params)
	return out
}

// Description returns the introspection description.
func (r *RouteDefinition) Description() string { return r.description }

// Category returns the introspection category.
func (r *RouteDefinition) Category() string { return r.category }

// Tags returns a copy of the introspection tags.
func (r *RouteDefinition) Tags() []string {
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}

// String implements fmt.Stringer as "METHOD /path".
func (r *RouteDefinition) String() string {
	return r.method + " " + r.FullPath()
}
