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
	"sync"
	"sync/atomic"

	"github.com/courier-go/courier/binding"
	"github.com/courier-go/courier/pattern"
)

// compiledRoute is the derived, dispatch-ready form of one definition:
// the compiled path pattern plus one resolved binding per handler parameter.
type compiledRoute struct {
	def       *RouteDefinition
	pat       *pattern.Compiled
	bindings  []binding.Binding
	needsBody bool
	hasSink   bool
}

// Registry owns route definitions and their compiled derivatives.
//
// Each route is compiled when it is added, so malformed templates and
// binding conflicts fail registration instead of surfacing at request time.
// The ordered matcher consumed by dispatch is a snapshot slice built lazily
// on first use and published through an atomic pointer; adding a route
// invalidates it and the next dispatch rebuilds it. Readers never observe a
// half-built snapshot.
//
// Registration is expected during startup; it is safe to interleave with
// dispatch but not optimized for it.
type Registry struct {
	types *binding.TypeSet

	mu       sync.RWMutex
	routes   []*compiledRoute
	byName   map[string]*compiledRoute // last-registered wins
	snapshot atomic.Pointer[[]*compiledRoute]
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTypes sets the type conversion/validation service used to build
// parameter pipelines. Defaults to binding.NewTypeSet().
func WithTypes(types *binding.TypeSet) RegistryOption {
	return func(r *Registry) { r.types = types }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{byName: make(map[string]*compiledRoute)}
	for _, opt := range opts {
		opt(r)
	}
	if r.types == nil {
		r.types = binding.NewTypeSet()
	}
	return r
}

// Types returns the registry's type service, for registering converters,
// validators, and schemas.
func (r *Registry) Types() *binding.TypeSet { return r.types }

// AddRoute compiles def and appends it to the registry. Compilation errors
// (empty method or path, malformed template, duplicate token names, more
// than one error-sink parameter) reject the route and leave the registry
// unchanged. The definition is sealed on success.
func (r *Registry) AddRoute(def *RouteDefinition) error {
	if def == nil {
		return ErrNilRoute
	}
	if def.method == "" {
		return fmt.Errorf("%w: path %q", ErrMissingMethod, def.path)
	}
	if def.FullPath() == "" {
		return fmt.Errorf("%w: route %q", ErrMissingPath, def.name)
	}

	pat, err := pattern.Compile(def.FullPath(), def.where)
	if err != nil {
		return fmt.Errorf("compiling route %s: %w", def, err)
	}

	bindings, needsBody, hasSink, err := binding.Resolve(def.params, pat.Names(), r.types)
	if err != nil {
		return fmt.Errorf("resolving parameters of route %s: %w", def, err)
	}

	cr := &compiledRoute{
		def:       def,
		pat:       pat,
		bindings:  bindings,
		needsBody: needsBody,
		hasSink:   hasSink,
	}

	def.seal()

	r.mu.Lock()
	r.routes = append(r.routes, cr)
	if def.name != "" {
		r.byName[def.name] = cr
	}
	r.mu.Unlock()

	// Invalidate the published matcher; the next dispatch rebuilds it.
	r.snapshot.Store(nil)

	return nil
}

// MustAddRoute is like AddRoute but panics on error. Intended for routes
// known at program startup.
func (r *Registry) MustAddRoute(def *RouteDefinition) {
	if err := r.AddRoute(def); err != nil {
		panic(fmt.Sprintf("courier.MustAddRoute: %v", err))
	}
}

// Routes returns the registered definitions in registration order, which is
// also match precedence order.
func (r *Registry) Routes() []*RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RouteDefinition, 0, len(r.routes))
	for _, cr := range r.routes {
		out = append(out, cr.def)
	}
	return out
}

// Route returns the named route, honoring last-registered-wins for
// duplicate names.
func (r *Registry) Route(name string) (*RouteDefinition, bool) {
	r.mu.RLock()
	cr, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cr.def, true
}

// compiled returns the published matcher snapshot, building it when a
// route was added since the last build. Build-then-publish: the slice is
// fully assembled before the pointer is swapped.
func (r *Registry) compiled() []*compiledRoute {
	if snap := r.snapshot.Load(); snap != nil {
		return *snap
	}

	r.mu.RLock()
	snap := make([]*compiledRoute, len(r.routes))
	copy(snap, r.routes)
	r.mu.RUnlock()

	r.snapshot.Store(&snap)
	return snap
}

// named returns the compiled form of the named route.
func (r *Registry) named(name string) (*compiledRoute, bool) {
	r.mu.RLock()
	cr, ok := r.byName[name]
	r.mu.RUnlock()
	return cr, ok
}
