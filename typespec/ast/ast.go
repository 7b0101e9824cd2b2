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

// Package ast defines the type-spec grammar's AST: a closed
// sum of eight node kinds plus the canonical-string serialisation rules that
// make a parsed spec the registry's primary key.
package ast

import (
	"sort"
	"strings"

	"github.com/mpvl/unique"
)

// Kind tags a Node with a small closed enum switched on everywhere instead
// of a type assertion cascade.
type Kind int

const (
	KindName Kind = iota
	KindTable
	KindArray
	KindTuple
	KindMap
	KindRecord
	KindUnion
	KindSelfRef
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindMap:
		return "map"
	case KindRecord:
		return "record"
	case KindUnion:
		return "union"
	case KindSelfRef:
		return "self-ref"
	}
	return "invalid"
}

// Node is the AST sum type. Canon returns the canonical spec string;
// it is pure and does not consult a registry.
type Node interface {
	Kind() Kind
	Canon() string
}

// Name is a dotted identifier, e.g. "integer" or "foo.Bar".
type Name struct{ Value string }

func (n *Name) Kind() Kind   { return KindName }
func (n *Name) Canon() string { return n.Value }

// Table is the bare "{}" spec — an alias for "table".
type Table struct{}

func (t *Table) Kind() Kind   { return KindTable }
func (t *Table) Canon() string { return "table" }

// Array is "{Elem}" — a single-element brace list.
type Array struct{ Elem Node }

func (a *Array) Kind() Kind   { return KindArray }
func (a *Array) Canon() string { return "{" + a.Elem.Canon() + "}" }

// Tuple is "{E1,E2,...}" — a 2+-element brace list, order preserved.
type Tuple struct{ Elems []Node }

func (t *Tuple) Kind() Kind { return KindTuple }
func (t *Tuple) Canon() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Canon()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Map is "{K:V}" — exactly one KV pair.
type Map struct{ Key, Value Node }

func (m *Map) Kind() Kind { return KindMap }
func (m *Map) Canon() string {
	return "{" + m.Key.Canon() + ":" + m.Value.Canon() + "}"
}

// Field is one record field (key order as written in source; Canon sorts).
type Field struct {
	Name string
	Type Node
}

// Record is "{f1:T1,f2:T2,...}" with two or more KV pairs (a single pair
// parses as a Map).
type Record struct{ Fields []Field }

func (r *Record) Kind() Kind { return KindRecord }
func (r *Record) Canon() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + ":" + f.Type.Canon()
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

// FieldType returns the type of field name, or nil if absent.
func (r *Record) FieldType(name string) Node {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// Union is "M1|M2|...", order preserved.
type Union struct{ Members []Node }

func (u *Union) Kind() Kind { return KindUnion }
func (u *Union) Canon() string {
	// Members are joined as written. The folded, de-duplicated and sorted
	// form of an {enum:A|B|C} spec comes from CanonEnum, not from here.
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.Canon()
	}
	return strings.Join(parts, "|")
}

// SelfRef is "self._N" (tuple slot) or "self.fieldName" (record field).
// Target holds the part after "self.".
type SelfRef struct{ Target string }

func (s *SelfRef) Kind() Kind   { return KindSelfRef }
func (s *SelfRef) Canon() string { return "self." + s.Target }

// IsEnumSpec reports whether n is the {enum:...} convention: a Map
// whose key is the bare name "enum".
func IsEnumSpec(n Node) (labels []string, ok bool) {
	m, isMap := n.(*Map)
	if !isMap {
		return nil, false
	}
	key, isName := m.Key.(*Name)
	if !isName || key.Value != "enum" {
		return nil, false
	}
	u, isUnion := m.Value.(*Union)
	if !isUnion {
		if name, ok2 := m.Value.(*Name); ok2 {
			return []string{name.Value}, true
		}
		return nil, false
	}
	labels = make([]string, 0, len(u.Members))
	for _, mem := range u.Members {
		name, ok2 := mem.(*Name)
		if !ok2 {
			return nil, false
		}
		labels = append(labels, name.Value)
	}
	return labels, true
}

// CanonEnum produces the canonical "{enum:a|b|c}" form for a label set:
// lower case, de-duplicated, sorted. mpvl/unique.Sort both sorts and
// collapses adjacent duplicates in place in one pass.
func CanonEnum(labels []string) string {
	folded := make([]string, len(labels))
	for i, l := range labels {
		folded[i] = strings.ToLower(l)
	}
	s := unique.StringSlice{P: &folded}
	unique.Sort(s)
	return "{enum:" + strings.Join(folded, "|") + "}"
}

// IsBareExtends reports whether n is the {extends,T} (tuple-form, a 2-element
// Tuple) or {extends:T} (record-form, which the grammar parses as a single-KV
// Map — see "map if exactly one" rule) convention.
func IsBareExtends(n Node) (target Node, ok bool) {
	switch v := n.(type) {
	case *Tuple:
		if len(v.Elems) == 2 {
			if name, isName := v.Elems[0].(*Name); isName && name.Value == "extends" {
				return v.Elems[1], true
			}
		}
	case *Map:
		if name, isName := v.Key.(*Name); isName && name.Value == "extends" {
			return v.Value, true
		}
	}
	return nil, false
}

// IsRecordExtends reports whether r declares record inheritance: a
// field literally named "extends".
func IsRecordExtends(r *Record) (parent Node, rest []Field, ok bool) {
	for i, f := range r.Fields {
		if f.Name == "extends" {
			rest = make([]Field, 0, len(r.Fields)-1)
			rest = append(rest, r.Fields[:i]...)
			rest = append(rest, r.Fields[i+1:]...)
			return f.Type, rest, true
		}
	}
	return nil, nil, false
}

// IsTupleExtends reports whether t declares tuple inheritance: first
// element is the bare name "extends" and len(t.Elems) >= 3.
func IsTupleExtends(t *Tuple) (parent Node, rest []Node, ok bool) {
	if len(t.Elems) < 3 {
		return nil, nil, false
	}
	name, isName := t.Elems[0].(*Name)
	if !isName || name.Value != "extends" {
		return nil, nil, false
	}
	return t.Elems[1], t.Elems[2:], true
}
