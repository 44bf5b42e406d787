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

import "reflect"

// CapabilityProvider resolves injected (non-request) handler parameters by
// their declared type. It stands in for whatever dependency container the
// surrounding framework uses; courier never inspects it beyond Provide.
type CapabilityProvider interface {
	Provide(t reflect.Type) (any, bool)
}

// Capabilities is a map-backed CapabilityProvider. Values are looked up by
// exact type first, then by interface satisfaction. When several values
// satisfy a requested interface, the one whose type name sorts first wins,
// so resolution is stable across dispatches.
type Capabilities map[reflect.Type]any

// NewCapabilities builds a Capabilities set keyed by the dynamic type of
// each value.
func NewCapabilities(values ...any) Capabilities {
	c := make(Capabilities, len(values))
	for _, v := range values {
		c[reflect.TypeOf(v)] = v
	}
	return c
}

// Provide implements CapabilityProvider.
func (c Capabilities) Provide(t reflect.Type) (any, bool) {
	if v, ok := c[t]; ok {
		return v, true
	}
	if t.Kind() == reflect.Interface {
		// Map iteration order is random; pick the candidate whose type
		// name sorts first so repeated dispatches resolve the same value.
		var match reflect.Type
		for vt := range c {
			if !vt.Implements(t) {
				continue
			}
			if match == nil || vt.String() < match.String() {
				match = vt
			}
		}
		if match != nil {
			return c[match], true
		}
	}
	return nil, false
}
