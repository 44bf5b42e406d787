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
	"net/url"
	"sort"
	"strings"

	"github.com/courier-go/courier/binding"
)

// ResolveURL reconstructs a URL for the named route. Every :name token is
// substituted with the string form of params[name], percent-encoded
// individually. Query-bound parameters with defined values are appended as
// a query string; undefined values are omitted entirely. Class-typed query
// values flatten field-by-field using the same dotted-to-bracket convention
// validation paths use, so "value.a" validates and "value[a]" serializes.
//
// Keys in params that are neither path tokens nor declared parameters are
// emitted as plain query keys, which keeps simple routes usable without
// declaring query parameters up front.
//
// When duplicate route names exist, the last-registered route wins.
// An unknown name fails with ErrRouteNotFound.
//
// Example:
//
//	u, err := reg.ResolveURL("userProfile", map[string]any{"id": 7, "tab": "posts"})
//	// "/users/7?tab=posts"
func (r *Registry) ResolveURL(name string, params map[string]any) (string, error) {
	cr, ok := r.named(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}

	used := make(map[string]bool, len(params))

	path, err := cr.pat.Build(func(token string) (string, bool) {
		v, ok := params[token]
		if !ok || v == nil {
			return "", false
		}
		used[token] = true
		return url.PathEscape(fmt.Sprint(v)), true
	})
	if err != nil {
		return "", fmt.Errorf("%w: route %q: %v", ErrMissingRouteParameter, name, err)
	}

	var pairs []string
	emit := func(key, val string) {
		pairs = append(pairs, key+"="+url.QueryEscape(val))
	}

	// Declared query parameters first, in declaration order.
	for _, b := range cr.bindings {
		if b.Kind != binding.KindQuery {
			continue
		}
		v, ok := params[b.Name]
		if !ok || v == nil {
			continue
		}
		used[b.Name] = true

		// FlattenQuery handles scalars, structs, and maps uniformly; an
		// empty access path means the value's own fields become top-level keys.
		binding.FlattenQuery(b.Path, v, emit)
	}

	// Leftover params become plain query keys, sorted for determinism.
	var rest []string
	for k, v := range params {
		if !used[k] && v != nil {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		binding.FlattenQuery(k, params[k], emit)
	}

	if len(pairs) == 0 {
		return path, nil
	}
	return path + "?" + strings.Join(pairs, "&"), nil
}

// MustResolveURL is like ResolveURL but panics on error.
func (r *Registry) MustResolveURL(name string, params map[string]any) string {
	u, err := r.ResolveURL(name, params)
	if err != nil {
		panic(fmt.Sprintf("courier.MustResolveURL: %v", err))
	}
	return u
}
