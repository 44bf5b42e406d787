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
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courier-go/courier/binding"
	"github.com/courier-go/courier/body"
)

// noopLogger is a singleton no-op logger used when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NoopLogger returns the singleton no-op logger.
func NoopLogger() *slog.Logger { return noopLogger }

// Dispatcher matches incoming requests against a registry's compiled routes
// and produces resolved invocations.
//
// Matching walks routes in registration order: the first route whose HTTP
// method (case-insensitive) and path match wins. Overlapping routes are the
// registrant's responsibility; the dispatcher does no specificity scoring.
// An unmatched request is a defined "no result" outcome, not an error.
type Dispatcher struct {
	registry *Registry
	parser   body.Parser
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  MetricsRecorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBodyParser sets the parser used for routes that bind body parameters.
// When no parser is configured, materializing such a route fails with
// ErrNoBodyParser. Form-parsing limits (size, multipart memory) belong to
// the parser and are set at its construction.
func WithBodyParser(p body.Parser) Option {
	return func(d *Dispatcher) { d.parser = p }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTracer enables a span around parameter materialization.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// WithMetrics sets the dispatch metrics recorder. See NewPrometheusMetrics
// for the provided implementation.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher for the given registry.
//
// Example:
//
//	d, err := courier.New(reg,
//	    courier.WithBodyParser(body.NewFormParser(body.WithMaxBytes(1<<20))),
//	    courier.WithLogger(slog.Default()),
//	)
func New(registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	d := &Dispatcher{
		registry: registry,
		parser:   body.NewFormParser(),
		logger:   noopLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustNew is like New but panics on error.
func MustNew(registry *Registry, opts ...Option) *Dispatcher {
	d, err := New(registry, opts...)
	if err != nil {
		panic(fmt.Sprintf("courier.MustNew: %v", err))
	}
	return d
}

// Invocation carries the per-request inputs a materializer may need: the
// raw body (read only for routes that bind body parameters) and the
// capability provider for injected parameters.
type Invocation struct {
	Body         io.Reader
	ContentType  string
	Capabilities CapabilityProvider
}

// ResolvedInvocation is the output of a successful match: the route plus a
// materializer that yields the ordered handler argument list.
type ResolvedInvocation struct {
	dispatcher *Dispatcher
	route      *compiledRoute
	captures   []string
	query      url.Values
}

// Route returns the matched route definition.
func (ri *ResolvedInvocation) Route() *RouteDefinition { return ri.route.def }

// Async reports whether materialization suspends on I/O. It is true
// exactly when the route binds a body parameter; everything else reads
// already-available request state.
func (ri *ResolvedInvocation) Async() bool { return ri.route.needsBody }

// PathValues returns the raw captured path segment values in token order.
func (ri *ResolvedInvocation) PathValues() []string {
	out := make([]string, len(ri.captures))
	copy(out, ri.captures)
	return out
}

// ResolveRequest matches method and rawURL against the compiled routes in
// registration order. It returns (nil, false) when no route matches; the
// caller decides how to respond.
func (d *Dispatcher) ResolveRequest(method, rawURL string) (*ResolvedInvocation, bool) {
	start := time.Now()

	u, err := url.Parse(rawURL)
	if err != nil {
		d.logger.Debug("unparseable request URL", "url", rawURL, "error", err)
		d.record(method, "", outcomeUnmatched, time.Since(start))
		return nil, false
	}

	for _, cr := range d.registry.compiled() {
		if !strings.EqualFold(cr.def.method, method) {
			continue
		}
		captures, ok := cr.pat.Match(u.Path)
		if !ok {
			continue
		}

		d.logger.Debug("route matched",
			"method", cr.def.method,
			"route", cr.def.FullPath(),
			"name", cr.def.name,
		)
		d.record(method, cr.def.FullPath(), outcomeMatched, time.Since(start))

		return &ResolvedInvocation{
			dispatcher: d,
			route:      cr,
			captures:   captures,
			query:      u.Query(),
		}, true
	}

	d.logger.Debug("no route matched", "method", method, "path", u.Path)
	d.record(method, "", outcomeUnmatched, time.Since(start))

	return nil, false
}

// record forwards to the metrics recorder when one is configured.
func (d *Dispatcher) record(method, route, outcome string, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordDispatch(method, route, outcome, elapsed)
	}
}

// Materialize builds the ordered argument list for the handler call.
//
// For each binding, in declaration order, the converter runs before the
// validator. All validation errors are accumulated rather than
// short-circuiting; body errors are kept apart from path/query errors so an
// error-sink parameter can consume the latter. When a sink is declared the
// accumulated path/query errors become the sink's value and do not fail the
// call; body errors always fail. The returned error is *binding.Errors for
// validation failures and a plain error for infrastructure problems
// (missing body parser, unresolvable capability).
//
// Body parsing is the only step that suspends on I/O, and only for routes
// whose Async flag is set.
func (ri *ResolvedInvocation) Materialize(ctx context.Context, inv Invocation) ([]any, error) {
	d := ri.dispatcher

	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.Start(ctx, "courier.materialize", trace.WithAttributes(
			attribute.String("http.route", ri.route.def.FullPath()),
			attribute.String("http.method", ri.route.def.method),
		))
		defer span.End()

		args, err := ri.materialize(ctx, inv)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return args, err
	}

	return ri.materialize(ctx, inv)
}

func (ri *ResolvedInvocation) materialize(ctx context.Context, inv Invocation) ([]any, error) {
	d := ri.dispatcher
	cr := ri.route

	var (
		pathQueryErrs = &binding.Errors{}
		bodyErrs      = &binding.Errors{}
		parsed        *body.Parsed
	)

	if cr.needsBody {
		if d.parser == nil {
			return nil, ErrNoBodyParser
		}
		if inv.Body == nil {
			bodyErrs.Add("", "invalid_body", "missing request body", nil)
		} else {
			var err error
			parsed, err = d.parser.Parse(ctx, inv.Body, inv.ContentType)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				bodyErrs.Add("", "invalid_body", err.Error(), nil)
			}
		}
	}

	args := make([]any, len(cr.bindings))
	sink := -1

	for i, b := range cr.bindings {
		switch b.Kind {
		case binding.KindErrorSink:
			sink = i

		case binding.KindPath:
			args[i] = ri.materializeScalar(b, b.Name, ri.captures[b.Index], pathQueryErrs)

		case binding.KindQuery:
			args[i] = ri.materializeQuery(b, pathQueryErrs)

		case binding.KindBody:
			if parsed != nil {
				args[i] = ri.materializeBody(b, parsed, bodyErrs)
			}

		case binding.KindInjected:
			if inv.Capabilities == nil {
				if !b.Optional {
					return nil, fmt.Errorf("%w: %s (no capability provider)", ErrCapabilityUnresolved, b.Type)
				}
				continue
			}
			v, ok := inv.Capabilities.Provide(b.Type)
			if !ok {
				if !b.Optional {
					return nil, fmt.Errorf("%w: %s", ErrCapabilityUnresolved, b.Type)
				}
				continue
			}
			args[i] = v
		}
	}

	// A sink consumes path/query errors as data; body errors always fail.
	failure := &binding.Errors{}
	if sink >= 0 {
		args[sink] = pathQueryErrs
	} else {
		failure.Merge(pathQueryErrs)
	}
	failure.Merge(bodyErrs)

	if !failure.Empty() {
		d.logger.Debug("parameter validation failed",
			"route", cr.def.FullPath(),
			"errors", len(failure.Fields),
		)
		d.record(cr.def.method, cr.def.FullPath(), outcomeInvalid, 0)
		return nil, failure
	}

	return args, nil
}

// materializeScalar converts and validates one raw string value, reporting
// errors under path.
func (ri *ResolvedInvocation) materializeScalar(b binding.Binding, path, raw string, sink *binding.Errors) any {
	v, err := b.Convert(raw)
	if err != nil {
		sink.AddAt(path, err)
		return nil
	}
	if b.Validate != nil {
		b.Validate(v, path, sink)
	}
	return v
}

// materializeQuery extracts one query-bound parameter. Class-typed
// parameters expand field-by-field under the dotted-to-bracket convention;
// an empty access path binds the whole query object.
func (ri *ResolvedInvocation) materializeQuery(b binding.Binding, sink *binding.Errors) any {
	types := ri.dispatcher.registry.types

	get := func(key string) (string, bool) {
		vals, ok := ri.query[key]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	}

	if binding.IsStructured(b.Type) {
		v := types.DecodeQueryStruct(b.Type, b.Path, get, sink)
		if v != nil && b.Validate != nil {
			b.Validate(v, b.Path, sink)
		}
		return v
	}

	if b.Path == "" {
		// Whole query object.
		m := make(map[string]any, len(ri.query))
		for k, vals := range ri.query {
			if len(vals) == 1 {
				m[k] = vals[0]
			} else {
				m[k] = vals
			}
		}
		if b.Validate != nil {
			// The whole-query access path is empty by definition; errors
			// report under the parameter name so they stay addressable.
			b.Validate(m, b.Name, sink)
		}
		return m
	}

	key := binding.BracketPath(b.Path)
	vals, present := ri.query[key]
	if !present || len(vals) == 0 {
		if !b.Optional {
			sink.Add(b.Path, "required", "is required", nil)
		}
		return nil
	}

	// Repeated keys bind whole to slice-typed parameters.
	raw := vals[0]
	if len(vals) > 1 {
		raw = strings.Join(vals, ",")
	}

	return ri.materializeScalar(b, b.Path, raw, sink)
}

// materializeBody decodes the parsed body payload, narrowed to the
// binding's sub-path when one is set, into the declared type and runs its
// validators. Body error paths are relative to the payload, not prefixed
// with the parameter name.
func (ri *ResolvedInvocation) materializeBody(b binding.Binding, parsed *body.Parsed, sink *binding.Errors) any {
	types := ri.dispatcher.registry.types

	payload, ok := binding.Lookup(parsed.Fields, b.Path)
	if !ok {
		if !b.Optional {
			sink.Add(b.Path, "required", "is required", nil)
		}
		return nil
	}

	if b.Type == nil {
		if b.Validate != nil {
			b.Validate(payload, b.Path, sink)
		}
		return payload
	}

	v, err := types.DecodeBody(b.Type, payload)
	if err != nil {
		sink.AddAt(b.Path, err)
		return nil
	}
	if b.Validate != nil {
		b.Validate(v, b.Path, sink)
	}
	return v
}
