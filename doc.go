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

// Package courier is a compiled HTTP route matching and dispatch library.
//
// Courier does not serve HTTP itself. A transport layer feeds it plain
// route definitions (method, path template, declared handler parameters)
// and incoming request lines; courier answers with either an unmatched
// result or a resolved invocation: the matched route plus a materializer
// that converts and validates every handler argument.
//
// Registration and matching:
//
//	reg := courier.NewRegistry()
//	err := reg.AddRoute(courier.NewRoute(http.MethodGet, "/users/:id").
//	    Named("userProfile").
//	    Params(binding.Param{Name: "id", Type: reflect.TypeOf(0)}))
//
//	d := courier.MustNew(reg)
//	inv, ok := d.ResolveRequest(http.MethodGet, "/users/42")
//	if !ok {
//	    // no route matched; the caller decides how to respond
//	}
//	args, err := inv.Materialize(ctx, courier.Invocation{})
//
// Routes are tried in registration order; the first route whose method and
// path match wins. Matching is an exact string comparison for static
// templates and a prefix-checked regular expression for parameterized ones.
// The ordered matcher is built lazily on first dispatch and republished
// atomically whenever a route is added, so registration during startup is
// cheap and dispatch never observes a half-built table.
//
// URL resolution reverses a named route back into a concrete URL:
//
//	u, err := reg.ResolveURL("userProfile", map[string]any{"id": 7, "tab": "posts"})
//	// "/users/7?tab=posts"
package courier
