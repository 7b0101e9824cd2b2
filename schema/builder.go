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
	"strconv"
	"strings"

	"github.com/skunkiferous/TabuLua-sub005/diag"
	"github.com/skunkiferous/TabuLua-sub005/typespec/ast"
	"github.com/skunkiferous/TabuLua-sub005/typespec/parser"
)

// ParseType parses specStr and builds its Parser.
func (s *Schema) ParseType(sink *diag.Sink, specStr string) (Parser, string) {
	node, err := parser.ParseFull(specStr)
	if err != nil {
		sink.Errorf(diag.Parse, "%s", err)
		return nil, specStr
	}
	return s.Build(sink, node)
}

// Build turns an AST node into an installed Parser, memoising it under its
// canonical spec string.
func (s *Schema) Build(sink *diag.Sink, node ast.Node) (Parser, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.buildLocked(sink, node)
	if !ok {
		return nil, node.Canon()
	}
	return p, p.Spec()
}

func (s *Schema) buildLocked(sink *diag.Sink, node ast.Node) (Parser, bool) {
	if _, isSelf := node.(*ast.SelfRef); isSelf {
		sink.Errorf(diag.SelfRef, "self-ref can only appear inside a tuple or record")
		return nil, false
	}

	spec := node.Canon()
	resolved := s.resolveAlias(spec)
	if p, ok := s.parsers[resolved]; ok {
		if resolved == "number" && !s.settingUp {
			s.warnBareNumber(sink)
		}
		return p, true
	}
	if s.unknownTypes[spec] {
		return nil, false
	}

	p, ok := s.dispatch(sink, node, spec)
	if !ok {
		s.unknownTypes[spec] = true
		return nil, false
	}
	s.parsers[spec] = p
	if canon := p.Spec(); canon != spec {
		s.parsers[canon] = p
	}
	return p, true
}

func (s *Schema) warnBareNumber(sink *diag.Sink) {
	src := sink.SourceName()
	if s.deprecatedBareNumberWarned[src] {
		return
	}
	s.deprecatedBareNumberWarned[src] = true
	sink.Warnf(diag.Internal, "bare 'number' type is deprecated; use 'integer', 'long' or 'float'")
}

func (s *Schema) dispatch(sink *diag.Sink, node ast.Node, spec string) (Parser, bool) {
	switch n := node.(type) {
	case *ast.Name:
		sink.Errorf(diag.UnknownType, "unknown or bad type %q", n.Value)
		return nil, false
	case *ast.Table:
		return s.buildLocked(sink, &ast.Name{Value: "table"})
	case *ast.Array:
		return s.buildArray(sink, spec, n)
	case *ast.Tuple:
		return s.buildTupleNode(sink, spec, n)
	case *ast.Map:
		return s.buildMapNode(sink, spec, n)
	case *ast.Record:
		return s.buildRecordNode(sink, spec, n)
	case *ast.Union:
		return s.buildUnion(sink, spec, n)
	}
	sink.Errorf(diag.Internal, "unhandled AST node kind")
	return nil, false
}

// --- array --------------------------------------------------------------

func (s *Schema) buildArray(sink *diag.Sink, spec string, n *ast.Array) (Parser, bool) {
	elem, ok := s.buildLocked(sink, n.Elem)
	if !ok {
		return nil, false
	}
	p := &arrayParser{schema: s, spec: spec, elem: elem}
	s.comparators[spec] = sequenceComparator(s.comparatorFor(elem))
	return p, true
}

// --- tuple ----------------------------------------------------------------

func (s *Schema) buildTupleNode(sink *diag.Sink, spec string, n *ast.Tuple) (Parser, bool) {
	if target, ok := ast.IsBareExtends(n); ok {
		return s.buildBareExtends(sink, spec, target)
	}
	if parentNode, restElems, ok := ast.IsTupleExtends(n); ok {
		parentParser, pok := s.buildLocked(sink, parentNode)
		if !pok {
			return nil, false
		}
		pt, isTuple := parentParser.(*tupleParser)
		if !isTuple {
			sink.Errorf(diag.Parse, "tuple 'extends' parent must itself be a tuple type")
			return nil, false
		}
		return s.buildTupleFromSlots(sink, spec, pt.slots, restElems)
	}
	return s.buildTuple(sink, spec, n.Elems)
}

func (s *Schema) buildTuple(sink *diag.Sink, spec string, elems []ast.Node) (Parser, bool) {
	return s.buildTupleFromSlots(sink, spec, nil, elems)
}

// buildTupleFromSlots builds a tuple type whose first len(parentSlots) slots
// are inherited verbatim from a parent tuple and whose
// remaining slots come from newElems.
func (s *Schema) buildTupleFromSlots(sink *diag.Sink, spec string, parentSlots []tupleSlot, newElems []ast.Node) (Parser, bool) {
	slots := make([]tupleSlot, 0, len(parentSlots)+len(newElems))
	slots = append(slots, parentSlots...)

	type pending struct {
		idx    int
		target int
	}
	var selfRefs []pending
	ok := true
	for _, e := range newElems {
		if sr, isSelf := e.(*ast.SelfRef); isSelf {
			idx, good := tupleSlotIndex(sr.Target)
			if !good {
				sink.Errorf(diag.SelfRef, "invalid tuple self-ref %q", sr.Target)
				ok = false
				continue
			}
			selfRefs = append(selfRefs, pending{idx: len(slots), target: idx})
			slots = append(slots, tupleSlot{selfRefOf: -2}) // placeholder
			continue
		}
		p, good := s.buildLocked(sink, e)
		if !good {
			ok = false
			continue
		}
		slots = append(slots, tupleSlot{spec: p.Spec(), parser: p, selfRefOf: -1})
	}
	if !ok {
		return nil, false
	}
	for _, pr := range selfRefs {
		if pr.target == pr.idx {
			sink.Errorf(diag.SelfRef, "self-ref may not reference itself")
			return nil, false
		}
		if pr.target < 0 || pr.target >= len(slots) {
			sink.Errorf(diag.SelfRef, "self-ref target slot %d does not exist", pr.target)
			return nil, false
		}
		target := slots[pr.target]
		if target.selfRefOf != -1 {
			sink.Errorf(diag.SelfRef, "self-ref may not reference another self-ref")
			return nil, false
		}
		if !s.typeNameProducing[target.spec] {
			sink.Errorf(diag.SelfRef, "self-ref target slot %d (%s) does not produce type-name strings", pr.target, target.spec)
			return nil, false
		}
		slots[pr.idx] = tupleSlot{spec: target.spec, selfRefOf: pr.target}
		if ancestor, hasAncestor := s.bareExtendsTarget[target.spec]; hasAncestor {
			s.comparators[spec+".slot"+strconv.Itoa(pr.idx)] = s.comparators[ancestor]
		}
	}
	return &tupleParser{schema: s, spec: spec, slots: slots}, true
}

func tupleSlotIndex(target string) (int, bool) {
	if len(target) < 2 || target[0] != '_' {
		return 0, false
	}
	n, err := strconv.Atoi(target[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func (s *Schema) buildBareExtends(sink *diag.Sink, spec string, targetNode ast.Node) (Parser, bool) {
	targetParser, ok := s.buildLocked(sink, targetNode)
	if !ok {
		return nil, false
	}
	target := targetParser.Spec()
	p := newFuncParser(spec, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		name, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a string type-name for %s", spec)
			return nil, "", false
		}
		s.mu.RLock()
		resolvedName := s.resolveAlias(name)
		candidate, exists := s.parsers[resolvedName]
		s.mu.RUnlock()
		if !exists {
			sink.Errorf(diag.UnknownType, "unknown type %q", name)
			return nil, "", false
		}
		if resolvedName != target && !s.ExtendsOrRestrict(resolvedName, target) {
			sink.Errorf(diag.UnionMember, "%q does not extend %q", name, target)
			return nil, "", false
		}
		return name, name, true
	})
	s.neverTable[spec] = true
	s.bareExtendsTarget[spec] = target
	s.typeNameProducing[spec] = true
	s.comparators[spec] = func(a, b interface{}) int { return strings.Compare(a.(string), b.(string)) }
	return p, true
}

// --- map / enum / record-extends(map-form) --------------------------------

func (s *Schema) buildMapNode(sink *diag.Sink, spec string, n *ast.Map) (Parser, bool) {
	if labels, ok := ast.IsEnumSpec(n); ok {
		return s.buildEnum(sink, labels)
	}
	if target, ok := ast.IsBareExtends(n); ok {
		return s.buildBareExtends(sink, spec, target)
	}
	keyParser, ok := s.buildLocked(sink, n.Key)
	if !ok {
		return nil, false
	}
	if !s.neverTable[keyParser.Spec()] {
		sink.Errorf(diag.Parse, "map key type %q may not be a table type", keyParser.Spec())
		return nil, false
	}
	if n.Key.Kind() == ast.KindSelfRef || n.Value.Kind() == ast.KindSelfRef {
		sink.Errorf(diag.SelfRef, "map key/value may not be a self-ref")
		return nil, false
	}
	valueParser, ok := s.buildLocked(sink, n.Value)
	if !ok {
		return nil, false
	}
	p := &mapParser{schema: s, spec: spec, key: keyParser, value: valueParser}
	s.comparators[spec] = tableComparator(s.comparatorFor(keyParser), s.comparatorFor(valueParser))
	return p, true
}

func (s *Schema) buildEnum(sink *diag.Sink, labels []string) (Parser, bool) {
	for _, l := range labels {
		if isReservedName(l) || tupleSlotLike(l) {
			sink.Errorf(diag.EnumLabel, "%q is a reserved name and cannot be an enum label", l)
			return nil, false
		}
	}
	orig := map[string]string{}
	for _, l := range labels {
		folded := strings.ToLower(l)
		if prev, dup := orig[folded]; dup && prev != l {
			sink.Errorf(diag.DuplicateName, "enum labels %q and %q differ only by case", prev, l)
			return nil, false
		}
		orig[folded] = l
	}
	spec := ast.CanonEnum(labels)
	p := &enumParser{spec: spec, orig: orig}
	s.neverTable[spec] = true
	s.comparators[spec] = func(a, b interface{}) int { return strings.Compare(a.(string), b.(string)) }
	return p, true
}

func tupleSlotLike(name string) bool {
	if len(name) < 2 || name[0] != '_' {
		return false
	}
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// --- record ---------------------------------------------------------------

func (s *Schema) buildRecordNode(sink *diag.Sink, spec string, n *ast.Record) (Parser, bool) {
	parentNode, childFields, isExtends := ast.IsRecordExtends(n)
	var parentRec *recordParser
	if isExtends {
		parentParser, ok := s.buildLocked(sink, parentNode)
		if !ok {
			return nil, false
		}
		pr, isRec := parentParser.(*recordParser)
		if !isRec {
			sink.Errorf(diag.Parse, "record 'extends' parent must itself be a record type")
			return nil, false
		}
		parentRec = pr
	} else {
		childFields = n.Fields
	}

	childByName := map[string]ast.Field{}
	for _, f := range childFields {
		if isReservedName(f.Name) || tupleSlotLike(f.Name) {
			sink.Errorf(diag.Parse, "field name %q is reserved", f.Name)
			return nil, false
		}
		childByName[f.Name] = f
	}

	var fields []recordField
	ok := true

	if parentRec != nil {
		for _, pf := range parentRec.fields {
			cf, redefined := childByName[pf.name]
			if !redefined {
				fields = append(fields, pf)
				continue
			}
			delete(childByName, pf.name)
			if pf.selfRefOf != "" {
				sink.Errorf(diag.IncompatibleRedefinition, "field %q: a self-ref parent field may not be redefined", pf.name)
				ok = false
				continue
			}
			if isLiteralNil(cf.Type) {
				// An extending record redefining a field as nil
				// suppresses the inherited optional field.
				continue
			}
			newParser, good := s.buildLocked(sink, cf.Type)
			if !good {
				ok = false
				continue
			}
			if newParser.Spec() != pf.spec && !s.extendsLocked(newParser.Spec(), pf.spec, map[string]bool{}) {
				sink.Errorf(diag.IncompatibleRedefinition, "field %q: %s does not narrow parent's %s", pf.name, newParser.Spec(), pf.spec)
				ok = false
				continue
			}
			fields = append(fields, recordField{name: pf.name, spec: newParser.Spec(), parser: newParser})
		}
	}

	// Remaining child-only fields, in source order.
	for _, f := range childFields {
		cf, stillPending := childByName[f.Name]
		if !stillPending {
			continue
		}
		delete(childByName, f.Name)
		if sr, isSelf := cf.Type.(*ast.SelfRef); isSelf {
			fields = append(fields, recordField{name: cf.Name, selfRefOf: sr.Target})
			continue
		}
		if isLiteralNil(cf.Type) && parentRec == nil {
			sink.Warnf(diag.Internal, "field %q is typed nil and can never hold a value", cf.Name)
		}
		p, good := s.buildLocked(sink, cf.Type)
		if !good {
			ok = false
			continue
		}
		fields = append(fields, recordField{name: cf.Name, spec: p.Spec(), parser: p})
	}
	if !ok {
		return nil, false
	}

	// Resolve self-refs now that every field's declared spec is known.
	byName := map[string]*recordField{}
	for i := range fields {
		byName[fields[i].name] = &fields[i]
	}
	for i, f := range fields {
		if f.selfRefOf == "" {
			continue
		}
		if f.selfRefOf == f.name {
			sink.Errorf(diag.SelfRef, "self-ref may not reference itself")
			return nil, false
		}
		target, exists := byName[f.selfRefOf]
		if !exists {
			sink.Errorf(diag.SelfRef, "self-ref target field %q does not exist", f.selfRefOf)
			return nil, false
		}
		if target.selfRefOf != "" {
			sink.Errorf(diag.SelfRef, "self-ref may not reference another self-ref")
			return nil, false
		}
		if !s.typeNameProducing[target.spec] {
			sink.Errorf(diag.SelfRef, "self-ref target field %q (%s) does not produce type-name strings", f.selfRefOf, target.spec)
			return nil, false
		}
		fields[i].spec = target.spec
	}

	return &recordParser{schema: s, spec: spec, fields: fields}, true
}

func isLiteralNil(n ast.Node) bool {
	name, ok := n.(*ast.Name)
	return ok && name.Value == "nil"
}

// --- union ------------------------------------------------------------

func (s *Schema) buildUnion(sink *diag.Sink, spec string, n *ast.Union) (Parser, bool) {
	members := make([]Parser, 0, len(n.Members))
	ok := true
	allNeverTable := true
	for _, m := range n.Members {
		p, good := s.buildLocked(sink, m)
		if !good {
			ok = false
			continue
		}
		members = append(members, p)
		if !s.neverTable[p.Spec()] {
			allNeverTable = false
		}
	}
	if !ok {
		return nil, false
	}

	// nil must be last; string must be the last non-nil member. Violations
	// are logged but do not block construction.
	for i, m := range members {
		if m.Spec() == "nil" && i != len(members)-1 {
			sink.Warnf(diag.Parse, "'nil' must be the last union member in %s", spec)
		}
		if m.Spec() == "string" {
			lastNonNil := len(members) - 1
			if members[lastNonNil].Spec() == "nil" {
				lastNonNil--
			}
			if i != lastNonNil {
				sink.Warnf(diag.Parse, "'string' must be the last non-nil union member in %s", spec)
			}
		}
	}

	p := &unionParser{schema: s, spec: spec, members: members}
	if len(members) > 0 {
		s.unionFirstType[spec] = members[0].Spec()
	}
	if allNeverTable {
		s.neverTable[spec] = true
	}
	if len(members) > 0 && members[len(members)-1].Spec() == "nil" {
		s.optional[spec] = true
		s.nilUnions[p] = true
		if len(members) == 2 {
			other := members[0]
			s.comparators[spec] = nilAwareComparator(s.comparatorFor(other))
		} else {
			s.comparators[spec] = genericComparator
		}
	} else {
		s.comparators[spec] = genericComparator
	}
	return p, true
}
