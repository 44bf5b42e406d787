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

package body

import (
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	p := NewFormParser()

	parsed, err := p.Parse(context.Background(), strings.NewReader(`{"name":"widget","count":3,"nested":{"a":1.5}}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, "widget", parsed.Fields["name"])
	assert.Equal(t, int64(3), parsed.Fields["count"], "whole numbers decode as int64")

	nested, ok := parsed.Fields["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.5, nested["a"])
}

func TestParse_JSONDefaultContentType(t *testing.T) {
	p := NewFormParser()
	parsed, err := p.Parse(context.Background(), strings.NewReader(`{"a":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), parsed.Fields["a"])
}

func TestParse_JSONTrailingValue(t *testing.T) {
	p := NewFormParser()
	_, err := p.Parse(context.Background(), strings.NewReader(`{"a":1}{"b":2}`), "application/json")
	assert.ErrorIs(t, err, ErrMultipleJSONValues)
}

func TestParse_URLEncoded(t *testing.T) {
	p := NewFormParser()

	parsed, err := p.Parse(context.Background(), strings.NewReader("name=widget&tag=a&tag=b"), "application/x-www-form-urlencoded")
	require.NoError(t, err)

	assert.Equal(t, "widget", parsed.Fields["name"])
	assert.Equal(t, []string{"a", "b"}, parsed.Fields["tag"], "repeated keys collect into a slice")
}

func TestParse_Multipart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "widget"))

	fw, err := w.CreateFormFile("upload", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	p := NewFormParser()
	parsed, err := p.Parse(context.Background(), &buf, w.FormDataContentType())
	require.NoError(t, err)

	assert.Equal(t, "widget", parsed.Fields["name"])
	require.Len(t, parsed.Files["upload"], 1)
	f := parsed.Files["upload"][0]
	assert.Equal(t, "notes.txt", f.Filename)
	assert.Equal(t, []byte("hello"), f.Content)
}

func TestParse_MultipartMissingBoundary(t *testing.T) {
	p := NewFormParser()
	_, err := p.Parse(context.Background(), strings.NewReader(""), "multipart/form-data")
	assert.ErrorIs(t, err, ErrMissingBoundary)
}

func TestParse_YAML(t *testing.T) {
	p := NewFormParser()
	parsed, err := p.Parse(context.Background(), strings.NewReader("name: widget\ncount: 3\n"), "application/yaml")
	require.NoError(t, err)

	assert.Equal(t, "widget", parsed.Fields["name"])
	assert.Equal(t, 3, parsed.Fields["count"])
}

func TestParse_TOML(t *testing.T) {
	p := NewFormParser()
	parsed, err := p.Parse(context.Background(), strings.NewReader("name = \"widget\"\ncount = 3\n"), "application/toml")
	require.NoError(t, err)

	assert.Equal(t, "widget", parsed.Fields["name"])
	assert.Equal(t, int64(3), parsed.Fields["count"])
}

func TestParse_UnsupportedContentType(t *testing.T) {
	p := NewFormParser()
	_, err := p.Parse(context.Background(), strings.NewReader("<xml/>"), "application/xml")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestParse_TooLarge(t *testing.T) {
	p := NewFormParser(WithMaxBytes(8))
	_, err := p.Parse(context.Background(), strings.NewReader(`{"a":"0123456789"}`), "application/json")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewFormParser()
	_, err := p.Parse(ctx, strings.NewReader(`{}`), "application/json")
	assert.ErrorIs(t, err, context.Canceled)
}
