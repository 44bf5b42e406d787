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

import "errors"

var (
	// ErrRouteNotFound indicates URL resolution by a name no route is registered under.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMissingRouteParameter indicates a required path parameter was not supplied
	// to URL resolution.
	ErrMissingRouteParameter = errors.New("missing required route parameter")

	// ErrNilRegistry indicates a dispatcher was constructed without a registry.
	ErrNilRegistry = errors.New("registry must not be nil")

	// ErrNilRoute indicates AddRoute was called with a nil definition.
	ErrNilRoute = errors.New("route definition must not be nil")

	// ErrMissingMethod indicates a route definition without an HTTP method.
	ErrMissingMethod = errors.New("route definition has no HTTP method")

	// ErrMissingPath indicates a route definition without a path template.
	ErrMissingPath = errors.New("route definition has no path template")

	// ErrRouteSealed indicates an attempt to mutate a route definition after
	// registration.
	ErrRouteSealed = errors.New("route definition is immutable after registration")

	// ErrNoBodyParser indicates a matched route requires body parsing but the
	// dispatcher was built without a parser.
	ErrNoBodyParser = errors.New("route requires body parsing but no body parser is configured")

	// ErrCapabilityUnresolved indicates an injected parameter type the
	// capability provider could not supply.
	ErrCapabilityUnresolved = errors.New("no capability registered for parameter type")
)
