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

	"github.com/mpvl/unique"
)

// ExtendsOrRestrict is the single source of truth for subtyping.
// It is strict: ExtendsOrRestrict(T, T) is always false.
func (s *Schema) ExtendsOrRestrict(child, parent string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extendsLocked(s.resolveAlias(child), s.resolveAlias(parent), map[string]bool{})
}

func (s *Schema) extendsLocked(child, parent string, seen map[string]bool) bool {
	if child == parent {
		return false
	}
	if seen[child] {
		return false
	}
	seen[child] = true

	// 1. extends[] transitive closure.
	for cur := child; ; {
		next, ok := s.extends[cur]
		if !ok {
			break
		}
		if next == parent {
			return true
		}
		if seen[next] {
			break
		}
		seen[next] = true
		cur = next
	}

	// 2. transitive tag membership.
	if members, isTag := s.tagMembers[parent]; isTag {
		if members[child] {
			return true
		}
		for m := range members {
			if s.tagMembers[m] != nil && s.extendsLocked(child, m, map[string]bool{}) {
				return true
			}
		}
	}

	childP, childOK := s.parsers[child]
	parentP, parentOK := s.parsers[parent]
	if !childOK || !parentOK {
		return false
	}

	// 3. records.
	if cr, ok := childP.(*recordParser); ok {
		if pr, ok := parentP.(*recordParser); ok {
			return s.recordExtendsLocked(cr, pr, seen)
		}
	}

	// 4. tuples.
	if ct, ok := childP.(*tupleParser); ok {
		if pt, ok := parentP.(*tupleParser); ok {
			if len(ct.slots) < len(pt.slots) {
				return false
			}
			for i, ps := range pt.slots {
				cs := ct.slots[i]
				if cs.spec == ps.spec {
					continue
				}
				if !s.extendsLocked(cs.spec, ps.spec, map[string]bool{}) {
					return false
				}
			}
			return true
		}
	}

	// 5. enums.
	if ce, ok := childP.(*enumParser); ok {
		if pe, ok := parentP.(*enumParser); ok {
			for label := range ce.orig {
				if _, in := pe.orig[label]; !in {
					return false
				}
			}
			return true
		}
	}

	// 6. unions.
	if cu, ok := childP.(*unionParser); ok {
		for _, m := range cu.members {
			if !s.extendsLocked(m.Spec(), parent, map[string]bool{}) {
				return false
			}
		}
		return true
	}
	if pu, ok := parentP.(*unionParser); ok {
		for _, m := range pu.members {
			if s.extendsLocked(child, m.Spec(), map[string]bool{}) {
				return true
			}
		}
		return false
	}

	return false
}

func (s *Schema) recordExtendsLocked(child, parent *recordParser, seen map[string]bool) bool {
	childFields := map[string]recordField{}
	for _, f := range child.fields {
		childFields[f.name] = f
	}
	for _, pf := range parent.fields {
		cf, ok := childFields[pf.name]
		if !ok {
			return false
		}
		if cf.spec == pf.spec {
			continue
		}
		if !s.extendsLocked(cf.spec, pf.spec, seen) {
			return false
		}
	}
	return true
}

// --- introspection -----------------------------------------

// GetTypeKind classifies a canonical spec.
func (s *Schema) GetTypeKind(spec string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parsers[s.resolveAlias(spec)]
	if !ok {
		return ""
	}
	switch p.(type) {
	case *arrayParser:
		return "array"
	case *tupleParser:
		return "tuple"
	case *mapParser:
		return "map"
	case *recordParser:
		return "record"
	case *unionParser:
		return "union"
	case *enumParser:
		return "enum"
	}
	if spec == "table" {
		return "table"
	}
	return "name"
}

// TypeParent returns extends[spec] and whether it was set.
func (s *Schema) TypeParent(spec string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.extends[spec]
	return p, ok
}

// IsNeverTable reports whether spec is marked never_table.
func (s *Schema) IsNeverTable(spec string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.neverTable[spec]
}

// IsBuiltInType reports whether spec was installed during initialisation.
func (s *Schema) IsBuiltInType(spec string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builtIn[s.resolveAlias(spec)]
}

// GetComparator returns the installed total-order callable for spec, if any.
func (s *Schema) GetComparator(spec string) (Comparator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comparators[s.resolveAlias(spec)]
	return c, ok
}

// RecordFieldNames returns a record type's field names, sorted.
func (s *Schema) RecordFieldNames(spec string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.parsers[s.resolveAlias(spec)].(*recordParser)
	if !ok {
		return nil
	}
	names := make([]string, len(rp.fields))
	for i, f := range rp.fields {
		names[i] = f.name
	}
	sort.Strings(names)
	return names
}

// RecordFieldTypes returns a record type's field→canonical-spec map.
func (s *Schema) RecordFieldTypes(spec string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.parsers[s.resolveAlias(spec)].(*recordParser)
	if !ok {
		return nil
	}
	out := map[string]string{}
	for _, f := range rp.fields {
		out[f.name] = f.spec
	}
	return out
}

// RecordOptionalFieldNames returns the names of fields whose declared type is
// nilable (a union ending in `nil`, tracked in the optional table).
func (s *Schema) RecordOptionalFieldNames(spec string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.parsers[s.resolveAlias(spec)].(*recordParser)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range rp.fields {
		if s.optional[f.spec] {
			out = append(out, f.name)
		}
	}
	return out
}

// TupleFieldTypes returns a tuple type's slot specs, in order.
func (s *Schema) TupleFieldTypes(spec string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tp, ok := s.parsers[s.resolveAlias(spec)].(*tupleParser)
	if !ok {
		return nil
	}
	out := make([]string, len(tp.slots))
	for i, sl := range tp.slots {
		out[i] = sl.spec
	}
	return out
}

// ArrayElementType returns an array type's element spec.
func (s *Schema) ArrayElementType(spec string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ap, ok := s.parsers[s.resolveAlias(spec)].(*arrayParser)
	if !ok {
		return "", false
	}
	return ap.elem.Spec(), true
}

// MapKVType returns a map type's key and value specs.
func (s *Schema) MapKVType(spec string) (key, value string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mp, isMap := s.parsers[s.resolveAlias(spec)].(*mapParser)
	if !isMap {
		return "", "", false
	}
	return mp.key.Spec(), mp.value.Spec(), true
}

// EnumLabels returns an enum type's original-case labels, sorted.
func (s *Schema) EnumLabels(spec string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.parsers[s.resolveAlias(spec)].(*enumParser)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ep.orig))
	for _, v := range ep.orig {
		out = append(out, v)
	}
	return sortedStrings(out)
}

// UnionTypes returns a union type's member specs, in declared order.
func (s *Schema) UnionTypes(spec string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.parsers[s.resolveAlias(spec)].(*unionParser)
	if !ok {
		return nil
	}
	out := make([]string, len(up.members))
	for i, m := range up.members {
		out[i] = m.Spec()
	}
	return out
}

// ListMembersOfTag returns the members of a registered type tag, sorted and
// de-duplicated the same way enum labels are (mpvl/unique.Sort).
func (s *Schema) ListMembersOfTag(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.tagMembers[tag]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	unique.Sort(unique.StringSlice{P: &out})
	return out
}

// IsMemberOfTag reports whether spec is a (possibly transitive) member of
// tag.
func (s *Schema) IsMemberOfTag(spec, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extendsLocked(spec, tag, map[string]bool{})
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
