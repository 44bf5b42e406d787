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

// Package pattern compiles path templates into matchers.
//
// A template is a URL path whose segments may contain named tokens of the
// form ":name". A template without tokens compiles to an exact string
// comparison; a template with tokens compiles to a literal prefix plus an
// anchored regular expression with one capture group per token, numbered
// left to right.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyParamName indicates a ":" token with no name following it.
	ErrEmptyParamName = errors.New("empty path parameter name")

	// ErrInvalidParamName indicates a token name with characters outside [A-Za-z0-9_].
	ErrInvalidParamName = errors.New("invalid path parameter name")

	// ErrDuplicateParamName indicates the same token name appears twice in one template.
	ErrDuplicateParamName = errors.New("duplicate path parameter name")

	// ErrBadParamRegex indicates a per-parameter regex override that does not compile.
	ErrBadParamRegex = errors.New("invalid path parameter regex")
)

// defaultFragment matches one path segment: one or more non-slash characters.
const defaultFragment = `[^/]+`

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiled is the matchable form of a path template.
//
// For static templates only the exact string is kept and matching is a plain
// string comparison. For parameterized templates the literal prefix before
// the first token is kept separately so a cheap prefix check can reject most
// non-matching paths before the regex runs.
type Compiled struct {
	template string
	exact    string         // non-empty iff the template has no tokens
	prefix   string         // literal prefix before the first token
	re       *regexp.Regexp // anchored, one capture group per token
	names    []string       // token names in capture order
	parts    []part         // alternating layout for URL reconstruction
}

// part is one piece of the template: a literal run or a named token.
type part struct {
	literal string
	name    string // non-empty for token parts
}

// Compile parses template and returns its compiled form.
//
// overrides maps token names to regular-expression fragments that replace
// the default one-segment fragment. Override names that do not appear in the
// template are ignored. Fragments must not contain capturing groups (use
// (?:...) for grouping) so each token keeps exactly one capture index.
// Malformed templates (empty, invalid, or duplicate token names) and
// non-compiling overrides are configuration errors.
func Compile(template string, overrides map[string]string) (*Compiled, error) {
	c := &Compiled{template: template}

	var (
		re    strings.Builder
		seen  = map[string]struct{}{}
		first = -1
	)
	re.WriteString("^")

	for i := 0; i < len(template); {
		colon := strings.IndexByte(template[i:], ':')
		if colon < 0 {
			re.WriteString(regexp.QuoteMeta(template[i:]))
			c.parts = append(c.parts, part{literal: template[i:]})
			break
		}
		colon += i

		literal := template[i:colon]
		re.WriteString(regexp.QuoteMeta(literal))
		if literal != "" {
			c.parts = append(c.parts, part{literal: literal})
		}

		end := strings.IndexByte(template[colon:], '/')
		if end < 0 {
			end = len(template)
		} else {
			end += colon
		}
		name := template[colon+1 : end]
		if name == "" {
			return nil, fmt.Errorf("%w: template %q", ErrEmptyParamName, template)
		}
		if !nameRe.MatchString(name) {
			return nil, fmt.Errorf("%w: %q in template %q", ErrInvalidParamName, name, template)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q in template %q", ErrDuplicateParamName, name, template)
		}
		seen[name] = struct{}{}

		if first == -1 {
			first = colon
		}

		fragment := defaultFragment
		if ov, ok := overrides[name]; ok && ov != "" {
			frx, err := regexp.Compile(ov)
			if err != nil {
				return nil, fmt.Errorf("%w: %q for parameter %q: %v", ErrBadParamRegex, ov, name, err)
			}
			// A capturing group inside a fragment would shift the capture
			// index of every later token. Tokens must own exactly one
			// capture each; grouping inside a fragment needs (?:...).
			if frx.NumSubexp() > 0 {
				return nil, fmt.Errorf("%w: %q for parameter %q: capture groups are not allowed, use (?:...)", ErrBadParamRegex, ov, name)
			}
			fragment = ov
		}
		re.WriteString("(")
		re.WriteString(fragment)
		re.WriteString(")")

		c.names = append(c.names, name)
		c.parts = append(c.parts, part{name: name})
		i = end
	}

	if len(c.names) == 0 {
		c.exact = template
		return c, nil
	}

	re.WriteString("$")
	rx, err := regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("%w: template %q: %v", ErrBadParamRegex, template, err)
	}
	c.re = rx
	c.prefix = template[:first]

	return c, nil
}

// MustCompile is like Compile but panics on error. Intended for templates
// known at program startup.
func MustCompile(template string, overrides map[string]string) *Compiled {
	c, err := Compile(template, overrides)
	if err != nil {
		panic(fmt.Sprintf("pattern.MustCompile: %v", err))
	}
	return c
}

// Match reports whether path matches the compiled template. For
// parameterized templates the returned slice holds the captured values in
// token order; it is nil for static templates.
func (c *Compiled) Match(path string) ([]string, bool) {
	if c.re == nil {
		return nil, path == c.exact
	}

	// Cheap reject before the full pattern runs.
	if !strings.HasPrefix(path, c.prefix) {
		return nil, false
	}

	m := c.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// Names returns the token names in capture order. The returned slice is
// shared; callers must not modify it.
func (c *Compiled) Names() []string { return c.names }

// Index returns the capture position of the named token, or -1.
func (c *Compiled) Index(name string) int {
	for i, n := range c.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Build reconstructs a concrete path from the template, substituting each
// token with the value returned by lookup. Values are substituted verbatim;
// escaping is the caller's concern. Build fails when lookup has no value
// for a token.
func (c *Compiled) Build(lookup func(name string) (string, bool)) (string, error) {
	var b strings.Builder
	for _, p := range c.parts {
		if p.name == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := lookup(p.name)
		if !ok {
			return "", fmt.Errorf("no value for path parameter %q in template %q", p.name, c.template)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Static reports whether the template has no tokens and matches by exact
// string comparison.
func (c *Compiled) Static() bool { return c.re == nil }

// Template returns the original template string.
func (c *Compiled) Template() string { return c.template }

// String implements fmt.Stringer.
func (c *Compiled) String() string { return c.template }
