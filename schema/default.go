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
	"sort"

	"github.com/cockroachdb/apd/v2"
)

// CreateDefaultValue synthesises a zero value for spec, recursing through
// composite structure and following the recorded first member for unions.
// It returns nil, false for an unknown spec.
func (s *Schema) CreateDefaultValue(spec string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultValueLocked(s.resolveAlias(spec), map[string]bool{})
}

func (s *Schema) defaultValueLocked(spec string, seen map[string]bool) (interface{}, bool) {
	if seen[spec] {
		return nil, false
	}
	seen[spec] = true
	defer delete(seen, spec)

	p, ok := s.parsers[spec]
	if !ok {
		return nil, false
	}

	switch t := p.(type) {
	case *arrayParser:
		return []interface{}{}, true
	case *tupleParser:
		out := make([]interface{}, len(t.slots))
		for i, slot := range t.slots {
			v, ok := s.defaultValueLocked(slot.spec, seen)
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	case *mapParser:
		return map[string]interface{}{}, true
	case *recordParser:
		out := map[string]interface{}{}
		for _, f := range t.fields {
			if s.optional[f.spec] {
				continue
			}
			v, ok := s.defaultValueLocked(f.spec, seen)
			if !ok {
				return nil, false
			}
			out[f.name] = v
		}
		return out, true
	case *unionParser:
		first, ok := s.unionFirstType[spec]
		if !ok {
			return nil, false
		}
		return s.defaultValueLocked(first, seen)
	case *enumParser:
		labels := make([]string, 0, len(t.orig))
		for _, v := range t.orig {
			labels = append(labels, v)
		}
		sort.Strings(labels)
		if len(labels) == 0 {
			return nil, false
		}
		return labels[0], true
	}

	// Aliases such as byte resolve to generated range specs that extend a
	// numeric built-in.
	if s.extendsLocked(spec, "number", map[string]bool{}) {
		return apd.New(0, 0), true
	}

	switch spec {
	case "nil":
		return nil, true
	case "boolean":
		return false, true
	case "number", "integer", "long", "float", "byte", "ubyte", "short", "ushort", "int", "uint", "percent":
		return apd.New(0, 0), true
	case "table", "any":
		return map[string]interface{}{}, true
	default:
		// Every other leaf built-in (string, ascii, name, identifier, http,
		// hexbytes, base64bytes, type, type_spec, version, cmp_version,
		// ratio, quantity) defaults to the empty string, its own tsv-context
		// zero value.
		return "", true
	}
}
