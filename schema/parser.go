// Copyright 2024 The TabuLua-sub005 Authors
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

package schema

import "github.com/skunkiferous/TabuLua-sub005/diag"

// Context selects how a value-parser interprets its raw input.
type Context int

const (
	// CtxTSV: raw is a string (or nil, meaning an empty cell).
	CtxTSV Context = iota
	// CtxParsed: raw is an already-materialised value; only structural
	// invariants are validated.
	CtxParsed
)

// Parser is the value-parser contract, expressed as an interface rather
// than a closure so composite parsers (array/tuple/map/record/union/enum)
// can hold and introspect their children without a side-table.
type Parser interface {
	// Parse validates and canonicalises raw. On success ok is true, value is
	// the parsed value and canon round-trips through this same Parser. On
	// failure ok is false, value is nil, canon is a best-effort string, and
	// at least one diagnostic has been logged to sink. The array, tuple, map
	// and record parsers take only an already-materialised []interface{} or
	// map[string]interface{} (or nil in CtxTSV), in either Context; they do
	// not parse a string, so their canon does not parse back through them.
	Parse(sink *diag.Sink, raw interface{}, ctx Context) (value interface{}, canon string, ok bool)
	// Spec is the canonical spec string this Parser is installed under.
	Spec() string
}

// Comparator imposes a total order over the values one Parser accepts,
// composed structurally from child comparators.
type Comparator func(a, b interface{}) int

// funcParser adapts a plain function to Parser; used for built-in scalar
// types which have no child parsers to introspect.
type funcParser struct {
	spec string
	fn   func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool)
}

func (p *funcParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	return p.fn(sink, raw, ctx)
}
func (p *funcParser) Spec() string { return p.spec }

func newFuncParser(spec string, fn func(*diag.Sink, interface{}, Context) (interface{}, string, bool)) *funcParser {
	return &funcParser{spec: spec, fn: fn}
}
