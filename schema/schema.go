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

// Package schema is the type-spec registry, type constructor, restriction
// API, built-in value parsers and subtyping relation.
//
// Every registration table lives on a *Schema value the caller constructs
// and threads explicitly rather than behind package globals. Build-up
// (NewSchema, Restrict*, RegisterAlias, RegisterTypesFromSpec) holds the
// write lock for the whole of
// one type's construction; once installed, a Parser never mutates the
// Schema, so concurrent validation of independent rows needs only read
// access.
package schema

import (
	"regexp"
	"sync"

	"github.com/cockroachdb/apd/v2"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

// SafeIntegerBound is ±2^53, the largest interval on which an IEEE-754
// double exactly represents every integer.
const SafeIntegerBound = 1 << 53

// ExpressionCompiler is the external "compile(source) → callable" collaborator
// the core consumes for restrict_with_expression and the validate predicate
// family. It is deliberately minimal: the core never inspects
// how an expression is evaluated.
type ExpressionCompiler interface {
	// Compile compiles source under an operation quota. The returned
	// CompiledExpr must itself enforce that quota on every Eval call.
	Compile(source string, quota int) (CompiledExpr, error)
}

// CompiledExpr is a compiled, quota-bounded expression.
type CompiledExpr interface {
	// Eval evaluates the expression with `value` bound in its environment.
	// ok is false if the quota was exhausted or the expression raised a
	// runtime error; the sink has already been told why.
	Eval(sink *diag.Sink, value interface{}) (result interface{}, ok bool)
}

// numberLimit is the number-range restriction table's value type.
type numberLimit struct {
	min, max apd.Decimal
}

// strRestriction bundles the three string_* tables for one spec, since they
// are always consulted together.
type strRestriction struct {
	hasMinLen bool
	minLen    int
	hasMaxLen bool
	maxLen    int
	regex     *regexp.Regexp
}

// Options configures a Schema at construction.
type Options struct {
	// CompileQuota defaults to 100 but is not read: RestrictWithExpression
	// passes EvalQuota to Compile, so EvalQuota also bounds the compile-time
	// check.
	CompileQuota int
	// EvalQuota bounds per-cell expression evaluation. Default 1000.
	EvalQuota int
	// Sandbox is the expression compiler used by restrict_with_expression.
	// If nil, restrict_with_expression always fails with ExpressionCompile.
	Sandbox ExpressionCompiler
}

func (o Options) withDefaults() Options {
	if o.CompileQuota <= 0 {
		o.CompileQuota = 100
	}
	if o.EvalQuota <= 0 {
		o.EvalQuota = 1000
	}
	return o
}

// Schema is the explicitly-threaded type registry: parsers, aliases,
// restriction metadata and the subtyping tables all live here.
type Schema struct {
	mu sync.RWMutex

	opts Options

	parsers    map[string]Parser
	aliases    map[string]string
	extends    map[string]string
	comparators map[string]Comparator
	neverTable map[string]bool
	optional   map[string]bool
	nilUnions  map[Parser]bool
	unknownTypes map[string]bool
	numberLimits map[string]numberLimit
	strRestrictions map[string]strRestriction
	tagMembers map[string]map[string]bool
	tagAncestor map[string]string
	unionFirstType map[string]string
	forceReformattedAsString map[string]bool
	builtIn map[string]bool

	// typeNameProducing marks specs whose parsed values are themselves
	// type-name strings: `type`, `type_spec`, `name`, any bare-extends
	// spec, and registered tags.
	typeNameProducing map[string]bool
	// bareExtendsTarget records, for a bare-extends spec {extends,X}, the
	// ancestor X — used to resolve a self-ref's "ancestor".
	bareExtendsTarget map[string]string

	// settingUp is true only while built-ins are being installed.
	settingUp bool
	// deprecatedBareNumberWarned dedupes the "bare number" deprecation
	// warning per source name.
	deprecatedBareNumberWarned map[string]bool
}

// NewSchema constructs a Schema with the built-in types already installed.
func NewSchema(opts Options) *Schema {
	s := &Schema{
		opts:            opts.withDefaults(),
		parsers:         map[string]Parser{},
		aliases:         map[string]string{},
		extends:         map[string]string{},
		comparators:     map[string]Comparator{},
		neverTable:      map[string]bool{},
		optional:        map[string]bool{},
		nilUnions:       map[Parser]bool{},
		unknownTypes:    map[string]bool{},
		numberLimits:    map[string]numberLimit{},
		strRestrictions: map[string]strRestriction{},
		tagMembers:      map[string]map[string]bool{},
		tagAncestor:     map[string]string{},
		unionFirstType:  map[string]string{},
		forceReformattedAsString: map[string]bool{},
		builtIn:         map[string]bool{},
		typeNameProducing: map[string]bool{},
		bareExtendsTarget: map[string]string{},

		deprecatedBareNumberWarned: map[string]bool{},
	}
	s.settingUp = true
	registerBuiltins(s)
	s.settingUp = false
	for spec := range s.parsers {
		s.builtIn[spec] = true
	}
	return s
}

// resolveAlias follows the aliases table to a fixed point, guarding against a
// pathological alias cycle (which RegisterAlias's idempotence check should
// never allow to form).
func (s *Schema) resolveAlias(name string) string {
	seen := map[string]bool{}
	for {
		next, ok := s.aliases[name]
		if !ok || seen[next] {
			return name
		}
		seen[name] = true
		name = next
	}
}

// keywords and reserved names may never be used as a user-chosen type, field
// or enum-label name.
var keywords = map[string]bool{
	"nil": true, "true": true, "false": true, "self": true,
	"extends": true, "enum": true,
}

func isReservedName(name string) bool {
	if keywords[name] {
		return true
	}
	if len(name) >= 2 && name[0] == '_' {
		allDigits := true
		for _, c := range name[1:] {
			if c < '0' || c > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return true // tuple-slot form "_N"
		}
	}
	return false
}
