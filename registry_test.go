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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-go/courier/binding"
	"github.com/courier-go/courier/pattern"
)

func TestAddRoute_Validation(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.AddRoute(nil), ErrNilRoute)
	assert.ErrorIs(t, reg.AddRoute(NewRoute("", "/x")), ErrMissingMethod)
	assert.ErrorIs(t, reg.AddRoute(NewRoute("GET", "")), ErrMissingPath)

	// Registry is unchanged after rejected routes.
	assert.Empty(t, reg.Routes())
}

func TestAddRoute_TemplateErrors(t *testing.T) {
	reg := NewRegistry()

	err := reg.AddRoute(NewRoute("GET", "/users/:"))
	assert.ErrorIs(t, err, pattern.ErrEmptyParamName)

	err = reg.AddRoute(NewRoute("GET", "/a/:x/:x"))
	assert.ErrorIs(t, err, pattern.ErrDuplicateParamName)

	err = reg.AddRoute(NewRoute("GET", "/a/:x").Where("x", "("))
	assert.ErrorIs(t, err, pattern.ErrBadParamRegex)
}

func TestAddRoute_DuplicateErrorSink(t *testing.T) {
	reg := NewRegistry()

	err := reg.AddRoute(NewRoute("GET", "/x").Params(
		binding.Param{Name: "e1", Type: sinkType},
		binding.Param{Name: "e2", Type: sinkType},
	))
	assert.ErrorIs(t, err, binding.ErrDuplicateErrorSink)
}

func TestAddRoute_SealsDefinition(t *testing.T) {
	reg := NewRegistry()
	def := NewRoute("GET", "/x")
	require.NoError(t, reg.AddRoute(def))

	assert.Panics(t, func() { def.Named("later") })
	assert.Panics(t, func() { def.Where("y", `\d+`) })
}

func TestMustAddRoute_Panics(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() { reg.MustAddRoute(NewRoute("", "/x")) })
}

func TestRoutes_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.MustAddRoute(NewRoute("GET", "/a"))
	reg.MustAddRoute(NewRoute("GET", "/b"))
	reg.MustAddRoute(NewRoute("GET", "/c"))

	var paths []string
	for _, def := range reg.Routes() {
		paths = append(paths, def.Path())
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, paths)
}

func TestRoute_NameLookup(t *testing.T) {
	reg := NewRegistry()
	reg.MustAddRoute(NewRoute("GET", "/a").Named("first"))
	reg.MustAddRoute(NewRoute("GET", "/b").Named("dup"))
	reg.MustAddRoute(NewRoute("GET", "/c").Named("dup"))

	def, ok := reg.Route("first")
	require.True(t, ok)
	assert.Equal(t, "/a", def.Path())

	def, ok = reg.Route("dup")
	require.True(t, ok)
	assert.Equal(t, "/c", def.Path(), "last registration wins name lookups")

	_, ok = reg.Route("missing")
	assert.False(t, ok)
}

func TestRoute_BasePath(t *testing.T) {
	reg := NewRegistry()
	def := NewRoute("GET", "/users").Base("/api/")
	require.NoError(t, reg.AddRoute(def))

	assert.Equal(t, "/api/users", def.FullPath())
	assert.Equal(t, "/users", def.Path())

	d := MustNew(reg)
	_, ok := d.ResolveRequest("GET", "/api/users")
	assert.True(t, ok)
	_, ok = d.ResolveRequest("GET", "/users")
	assert.False(t, ok)
}

func TestRoute_IntrospectionMetadata(t *testing.T) {
	def := NewRoute("get", "/users/:id").
		Named("user").
		Describe("Fetch a single user").
		CategoryName("users").
		Tagged("public", "v1")

	assert.Equal(t, "GET", def.Method())
	assert.Equal(t, "Fetch a single user", def.Description())
	assert.Equal(t, "users", def.Category())
	assert.Equal(t, []string{"public", "v1"}, def.Tags())
	assert.Equal(t, "GET /users/:id", def.String())
}
