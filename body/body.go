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

// Package body parses request bodies into a normalized field mapping.
//
// JSON, url-encoded forms, multipart forms, YAML, TOML, and MessagePack all
// normalize to the same map[string]any shape, so parameter binding never
// cares which wire format the client used. Uploaded files from multipart
// bodies are collected separately.
package body

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnsupportedContentType indicates a content type no decoder handles.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrBodyTooLarge indicates the body exceeded the configured size limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrMultipleJSONValues indicates trailing data after the first JSON value.
	ErrMultipleJSONValues = errors.New("request body must contain a single JSON value")

	// ErrMissingBoundary indicates a multipart content type without a boundary.
	ErrMissingBoundary = errors.New("multipart content type missing boundary")
)

// File is one uploaded file from a multipart body.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// Parsed is the normalized result of parsing a request body.
type Parsed struct {
	Fields map[string]any
	Files  map[string][]File
}

// Parser parses a raw request body into a field mapping. Parsing may block
// on I/O, so it takes a context; it is the only asynchronous step of a
// dispatch.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, contentType string) (*Parsed, error)
}

const (
	defaultMaxBytes       = 10 << 20 // 10 MiB
	defaultMultipartMem   = 8 << 20  // 8 MiB held in memory before spilling
	defaultMaxUploadFiles = 64
)

// FormParser is the default Parser. All supported formats are decoded
// eagerly into memory, capped by the configured size limit.
type FormParser struct {
	maxBytes     int64
	multipartMem int64
	maxFiles     int
}

// ParserOption configures a FormParser.
type ParserOption func(*FormParser)

// WithMaxBytes caps the number of body bytes read before parsing fails with
// ErrBodyTooLarge. Default 10 MiB.
func WithMaxBytes(n int64) ParserOption {
	return func(p *FormParser) { p.maxBytes = n }
}

// WithMultipartMemory sets the in-memory buffer budget for multipart
// parsing; larger parts spill to temporary files. Default 8 MiB.
func WithMultipartMemory(n int64) ParserOption {
	return func(p *FormParser) { p.multipartMem = n }
}

// WithMaxFiles caps the number of uploaded files accepted per request.
// Default 64.
func WithMaxFiles(n int) ParserOption {
	return func(p *FormParser) { p.maxFiles = n }
}

// NewFormParser returns a FormParser with the given options applied.
func NewFormParser(opts ...ParserOption) *FormParser {
	p := &FormParser{
		maxBytes:     defaultMaxBytes,
		multipartMem: defaultMultipartMem,
		maxFiles:     defaultMaxUploadFiles,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes the body according to contentType. It returns
// ErrUnsupportedContentType for formats it does not handle.
func (p *FormParser) Parse(ctx context.Context, r io.Reader, contentType string) (*Parsed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// An absent content type defaults to JSON, the dominant API format.
		if contentType == "" {
			mediaType = "application/json"
		} else {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
		}
	}

	if mediaType == "multipart/form-data" {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, ErrMissingBoundary
		}
		return p.parseMultipart(r, boundary)
	}

	raw, err := p.readAll(r)
	if err != nil {
		return nil, err
	}

	switch mediaType {
	case "application/json", "text/json":
		return parseJSON(raw)
	case "application/x-www-form-urlencoded":
		return parseURLEncoded(raw)
	case "application/yaml", "application/x-yaml", "text/yaml":
		return parseYAML(raw)
	case "application/toml", "text/toml":
		return parseTOML(raw)
	case "application/msgpack", "application/x-msgpack":
		return parseMsgpack(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
	}
}

// readAll reads the body up to the size limit.
func (p *FormParser) readAll(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, p.maxBytes)
	}
	return raw, nil
}

func parseJSON(raw []byte) (*Parsed, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding JSON body: %w", err)
	}
	// Reject trailing values: "{}{}" is a malformed body, not two bodies.
	if dec.More() {
		return nil, ErrMultipleJSONValues
	}

	return &Parsed{Fields: normalizeMap(fields)}, nil
}

func parseURLEncoded(raw []byte) (*Parsed, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding form body: %w", err)
	}

	fields := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			fields[key] = vals[0]
		} else {
			fields[key] = vals
		}
	}
	return &Parsed{Fields: fields}, nil
}

func parseYAML(raw []byte) (*Parsed, error) {
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding YAML body: %w", err)
	}
	return &Parsed{Fields: fields}, nil
}

func parseTOML(raw []byte) (*Parsed, error) {
	var fields map[string]any
	if err := toml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding TOML body: %w", err)
	}
	return &Parsed{Fields: fields}, nil
}

func parseMsgpack(raw []byte) (*Parsed, error) {
	var fields map[string]any
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding MessagePack body: %w", err)
	}
	return &Parsed{Fields: fields}, nil
}

// parseMultipart reads every part, splitting form values from file uploads.
func (p *FormParser) parseMultipart(r io.Reader, boundary string) (*Parsed, error) {
	mr := multipart.NewReader(io.LimitReader(r, p.maxBytes), boundary)
	form, err := mr.ReadForm(p.multipartMem)
	if err != nil {
		return nil, fmt.Errorf("decoding multipart body: %w", err)
	}
	defer form.RemoveAll() //nolint:errcheck

	fields := make(map[string]any, len(form.Value))
	for key, vals := range form.Value {
		if len(vals) == 1 {
			fields[key] = vals[0]
		} else {
			fields[key] = vals
		}
	}

	files := make(map[string][]File)
	count := 0
	for key, headers := range form.File {
		for _, fh := range headers {
			count++
			if count > p.maxFiles {
				return nil, fmt.Errorf("too many uploaded files: limit %d", p.maxFiles)
			}

			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("opening uploaded file %q: %w", fh.Filename, err)
			}
			content, err := io.ReadAll(f)
			f.Close() //nolint:errcheck,gosec
			if err != nil {
				return nil, fmt.Errorf("reading uploaded file %q: %w", fh.Filename, err)
			}

			files[key] = append(files[key], File{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Content:     content,
			})
		}
	}

	return &Parsed{Fields: fields, Files: files}, nil
}

// normalizeMap converts json.Number leaves back to plain float64/int64 so
// downstream decoding treats all formats uniformly.
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return normalizeMap(t)
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	default:
		return v
	}
}
