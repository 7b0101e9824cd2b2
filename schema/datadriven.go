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

import (
	"github.com/cockroachdb/apd/v2"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

// TypeDef is one entry of a declarative type-registration batch.
// At most one of the constraint families (Min/Max, MinLen/MaxLen/Pattern,
// Values, Validate, Ancestor) may be set; none of them set means a plain
// alias from Name to Parent.
type TypeDef struct {
	Name   string
	Parent string

	Min, Max       *apd.Decimal
	MinLen, MaxLen *int
	Pattern        string
	Values         []string
	Validate       string
	Ancestor       string
}

func (t TypeDef) families() int {
	n := 0
	if t.Min != nil || t.Max != nil {
		n++
	}
	if t.MinLen != nil || t.MaxLen != nil || t.Pattern != "" {
		n++
	}
	if t.Values != nil {
		n++
	}
	if t.Validate != "" {
		n++
	}
	if t.Ancestor != "" {
		n++
	}
	return n
}

// RegisterTypesFromSpec applies a batch of declarative type definitions.
// A failing entry is logged and skipped; the whole batch is attempted
// regardless, and the return value is the conjunction of every entry's
// success.
func (s *Schema) RegisterTypesFromSpec(sink *diag.Sink, specs []TypeDef) bool {
	all := true
	for _, def := range specs {
		if !s.registerOneTypeDef(sink, def) {
			all = false
		}
	}
	return all
}

func (s *Schema) registerOneTypeDef(sink *diag.Sink, def TypeDef) bool {
	if def.families() > 1 {
		sink.Errorf(diag.Parse, "type %q: at most one constraint family may be set", def.Name)
		return false
	}

	switch {
	case def.Min != nil || def.Max != nil:
		_, ok := s.RestrictNumber(sink, def.Parent, def.Min, def.Max, def.Name)
		return ok

	case def.MinLen != nil || def.MaxLen != nil || def.Pattern != "":
		_, ok := s.RestrictString(sink, def.Parent, def.MinLen, def.MaxLen, def.Pattern, def.Name)
		return ok

	case def.Values != nil:
		return s.registerValuesConstraint(sink, def)

	case def.Validate != "":
		_, ok := s.RestrictWithExpression(sink, def.Parent, def.Name, def.Validate)
		return ok

	case def.Ancestor != "":
		_, ok := s.RestrictToTypeExtending(sink, def.Parent, def.Name, def.Ancestor)
		return ok

	default:
		return s.RegisterAlias(sink, def.Name, def.Parent)
	}
}

// registerValuesConstraint dispatches `values` to restrict_enum or
// restrict_union depending on what kind of type Parent resolves to.
func (s *Schema) registerValuesConstraint(sink *diag.Sink, def TypeDef) bool {
	s.mu.RLock()
	resolved := s.resolveAlias(def.Parent)
	parent, ok := s.parsers[resolved]
	s.mu.RUnlock()
	if !ok {
		sink.Errorf(diag.UnknownType, "type %q: unknown parent %q", def.Name, def.Parent)
		return false
	}
	switch parent.(type) {
	case *enumParser:
		_, ok := s.RestrictEnum(sink, def.Parent, def.Values, def.Name)
		return ok
	case *unionParser:
		_, ok := s.RestrictUnion(sink, def.Parent, def.Values, def.Name)
		return ok
	default:
		sink.Errorf(diag.Parse, "type %q: 'values' requires an enum or union parent", def.Name)
		return false
	}
}
