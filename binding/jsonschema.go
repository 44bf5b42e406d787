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
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaValidator wraps a compiled JSON Schema for one parameter type.
type schemaValidator struct {
	schema *jsonschema.Schema
}

// Schema registers a JSON Schema for values of type t. The schema runs as
// part of Validator(t) after struct-tag validation, reporting failures as
// FieldError records with "schema."-prefixed codes.
//
// Example:
//
//	types.Schema(reflect.TypeOf(CreateItem{}), []byte(`{
//	    "type": "object",
//	    "properties": {"name": {"type": "string", "minLength": 3}},
//	    "required": ["name"]
//	}`))
func (ts *TypeSet) Schema(t reflect.Type, schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return fmt.Errorf("invalid schema JSON for %s: %w", t, err)
	}

	const url = "schema.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("adding schema resource for %s: %w", t, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", t, err)
	}

	ts.mu.Lock()
	ts.schemas[t] = &schemaValidator{schema: schema}
	ts.mu.Unlock()

	return nil
}

// validate round-trips value through JSON (schema validation operates on
// decoded JSON data) and flattens the validation error tree into sink.
func (sv *schemaValidator) validate(value any, path string, sink *Errors) {
	raw, err := json.Marshal(value)
	if err != nil {
		sink.Add(path, "marshal_error", err.Error(), nil)
		return
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		sink.Add(path, "unmarshal_error", err.Error(), nil)
		return
	}

	err = sv.schema.Validate(data)
	if err == nil {
		return
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		sink.Add(path, "schema_validation_error", err.Error(), nil)
		return
	}
	collectSchemaErrors(verr, path, sink)
}

// collectSchemaErrors walks the error tree, adding one FieldError per leaf.
func collectSchemaErrors(verr *jsonschema.ValidationError, path string, sink *Errors) {
	if verr == nil {
		return
	}

	if len(verr.Causes) == 0 {
		field := strings.Join(verr.InstanceLocation, ".")
		kind := fmt.Sprintf("%v", verr.ErrorKind)
		sink.Add(JoinPath(path, field), "schema."+kind, verr.Error(), map[string]any{
			"schema_url": verr.SchemaURL,
		})
		return
	}

	for _, cause := range verr.Causes {
		collectSchemaErrors(cause, path, sink)
	}
}
