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
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct{}

// Classification order: error sink, body hint, query hint, path-name match,
// injected fallback.
func TestResolve_Classification(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	params := []Param{
		{Name: "errs", Type: reflect.TypeOf((*Errors)(nil))},
		{Name: "item", Type: reflect.TypeOf(payload{}), Hint: HintBody},
		{Name: "tab", Type: reflect.TypeOf(""), Hint: HintQuery},
		{Name: "id", Type: reflect.TypeOf(0)},
		{Name: "svc", Type: reflect.TypeOf(&fakeService{})},
	}

	bindings, needsBody, hasSink, err := Resolve(params, []string{"id"}, NewTypeSet())
	require.NoError(t, err)
	require.Len(t, bindings, 5)

	assert.True(t, needsBody)
	assert.True(t, hasSink)

	assert.Equal(t, KindErrorSink, bindings[0].Kind)
	assert.Equal(t, KindBody, bindings[1].Kind)
	assert.Equal(t, KindQuery, bindings[2].Kind)
	assert.Equal(t, "tab", bindings[2].Path, "query access path defaults to the parameter name")
	assert.Equal(t, KindPath, bindings[3].Kind)
	assert.Equal(t, 0, bindings[3].Index)
	assert.Equal(t, KindInjected, bindings[4].Kind)
}

func TestResolve_NoBody(t *testing.T) {
	bindings, needsBody, hasSink, err := Resolve([]Param{
		{Name: "id", Type: reflect.TypeOf(0)},
	}, []string{"id"}, NewTypeSet())
	require.NoError(t, err)

	assert.False(t, needsBody)
	assert.False(t, hasSink)
	require.Len(t, bindings, 1)
	assert.NotNil(t, bindings[0].Convert)
}

func TestResolve_DuplicateSink(t *testing.T) {
	_, _, _, err := Resolve([]Param{
		{Name: "a", Type: reflect.TypeOf((*Errors)(nil))},
		{Name: "b", Type: reflect.TypeOf((*Errors)(nil))},
	}, nil, NewTypeSet())
	assert.ErrorIs(t, err, ErrDuplicateErrorSink)
}

func TestResolve_QueryPathOverride(t *testing.T) {
	bindings, _, _, err := Resolve([]Param{
		{Name: "min", Type: reflect.TypeOf(0), Hint: HintQuery, PathOverride: "filter.min"},
		{Name: "all", Type: reflect.TypeOf(map[string]any(nil)), Hint: HintQuery, WholeQuery: true},
	}, nil, NewTypeSet())
	require.NoError(t, err)

	assert.Equal(t, "filter.min", bindings[0].Path)
	assert.Equal(t, "", bindings[1].Path, "whole-query binding has an empty access path")
}

// The optional flag in route metadata relaxes a required parameter; pointer
// types are optional by declaration.
func TestResolve_Optional(t *testing.T) {
	bindings, _, _, err := Resolve([]Param{
		{Name: "a", Type: reflect.TypeOf(0), Hint: HintQuery, Optional: true},
		{Name: "b", Type: reflect.TypeOf((*int)(nil)), Hint: HintQuery},
		{Name: "c", Type: reflect.TypeOf(0), Hint: HintQuery},
	}, nil, NewTypeSet())
	require.NoError(t, err)

	assert.True(t, bindings[0].Optional)
	assert.True(t, bindings[1].Optional)
	assert.False(t, bindings[2].Optional)
}

// A parameter whose name does not match a path token and carries no hint is
// injected, never implicitly path-bound.
func TestResolve_UnknownNameInjected(t *testing.T) {
	bindings, _, _, err := Resolve([]Param{
		{Name: "nope", Type: reflect.TypeOf("")},
	}, []string{"id"}, NewTypeSet())
	require.NoError(t, err)
	assert.Equal(t, KindInjected, bindings[0].Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "path", KindPath.String())
	assert.Equal(t, "query", KindQuery.String())
	assert.Equal(t, "body", KindBody.String())
	assert.Equal(t, "injected", KindInjected.String())
	assert.Equal(t, "errors", KindErrorSink.String())
}

func TestIsStructured(t *testing.T) {
	type s struct{ A int }
	assert.True(t, IsStructured(reflect.TypeOf(s{})))
	assert.True(t, IsStructured(reflect.TypeOf(&s{})))
	assert.False(t, IsStructured(reflect.TypeOf(0)))
	assert.False(t, IsStructured(nil))
	assert.False(t, IsStructured(timeType), "time.Time binds as a scalar")
}
