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
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/apd/v2"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

// RegisterAlias installs aliases[name] = resolve(spec). Re-
// registering the same name to the same resolved spec is idempotent;
// registering it to a different spec fails.
func (s *Schema) RegisterAlias(sink *diag.Sink, name, spec string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerAliasLocked(sink, name, spec)
}

func (s *Schema) registerAliasLocked(sink *diag.Sink, name, target string) bool {
	if isReservedName(name) || tupleSlotLike(name) {
		sink.Errorf(diag.DuplicateName, "%q is a reserved name", name)
		return false
	}
	resolved := s.resolveAlias(target)
	if existing, ok := s.aliases[name]; ok {
		if existing == resolved {
			return true
		}
		sink.Errorf(diag.DuplicateName, "alias %q already registered to a different type", name)
		return false
	}
	if _, ok := s.parsers[name]; ok {
		sink.Errorf(diag.DuplicateName, "type %q is already registered", name)
		return false
	}
	if _, ok := s.parsers[resolved]; !ok {
		sink.Errorf(diag.UnknownType, "alias %q: unknown target type %q", name, target)
		return false
	}
	s.aliases[name] = resolved
	return true
}

// RegisterEnumParser builds and optionally names an enum type from a bare
// label list.
func (s *Schema) RegisterEnumParser(sink *diag.Sink, labels []string, optionalName string) (Parser, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.buildEnum(sink, labels)
	if !ok {
		return nil, "", false
	}
	s.parsers[p.Spec()] = p
	if optionalName != "" && !s.registerAliasLocked(sink, optionalName, p.Spec()) {
		return nil, "", false
	}
	return p, p.Spec(), true
}

// checkNewTypeNameLocked rejects a caller-supplied type name that is reserved
// or already registered. registerAliasLocked applies the same guard to every
// alias name; the restrict ops below key the registry directly under the
// caller's name (they have no generated canonical spec of their own to alias
// instead) and so must apply it themselves before writing.
func (s *Schema) checkNewTypeNameLocked(sink *diag.Sink, name string) bool {
	if isReservedName(name) || tupleSlotLike(name) {
		sink.Errorf(diag.DuplicateName, "%q is a reserved name", name)
		return false
	}
	if _, ok := s.parsers[name]; ok {
		sink.Errorf(diag.DuplicateName, "type %q is already registered", name)
		return false
	}
	if _, ok := s.aliases[name]; ok {
		sink.Errorf(diag.DuplicateName, "type %q is already registered", name)
		return false
	}
	return true
}

// RestrictWithValidator installs a type that accepts whatever parent accepts
// and additionally must satisfy predicate.
// Unlike RestrictWithExpression, predicate is a native Go function, not a
// sandboxed expression — used internally to build ascii-derived built-ins
// such as `identifier` and `http`.
func (s *Schema) RestrictWithValidator(sink *diag.Sink, parentSpec, newName string, predicate func(value interface{}) (bool, string)) Parser {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parent, ok := s.parsers[parentResolved]
	if !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil
	}
	if !s.checkNewTypeNameLocked(sink, newName) {
		return nil
	}
	p := newFuncParser(newName, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		if good, reason := predicate(v); !good {
			sink.Errorf(diag.PatternMismatch, "%s: %s", newName, reason)
			return nil, c, false
		}
		return v, c, true
	})
	s.parsers[newName] = p
	s.extends[newName] = parentResolved
	s.comparators[newName] = s.comparatorFor(parent)
	return p
}

// ExtendParser installs a type that reuses parent's parse but post-processes
// the (parsed, reformatted) pair through fn.
func (s *Schema) ExtendParser(sink *diag.Sink, parentSpec, newName string, fn func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool)) Parser {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parent, ok := s.parsers[parentResolved]
	if !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil
	}
	if !s.checkNewTypeNameLocked(sink, newName) {
		return nil
	}
	p := newFuncParser(newName, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		return fn(sink, v, c, ctx)
	})
	s.parsers[newName] = p
	s.extends[newName] = parentResolved
	return p
}

// rangeID names a numeric restriction.
func rangeID(min, max *apd.Decimal) string {
	return fmt.Sprintf("range(%s,%s)", min.String(), max.String())
}

func (s *Schema) isNumberTypeLocked(spec string) bool {
	return spec == "number" || s.extendsLocked(spec, "number", map[string]bool{})
}

func (s *Schema) isIntegerTypeLocked(spec string) bool {
	return spec == "integer" || s.extendsLocked(spec, "integer", map[string]bool{})
}

// RestrictNumber derives a range-bounded numeric type.
func (s *Schema) RestrictNumber(sink *diag.Sink, parentSpec string, min, max *apd.Decimal, alias string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	if _, ok := s.parsers[parentResolved]; !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil, false
	}
	if !s.isNumberTypeLocked(parentResolved) {
		sink.Errorf(diag.Parse, "restrict_number: parent %q is not a number type", parentSpec)
		return nil, false
	}
	if s.isIntegerTypeLocked(parentResolved) {
		if min == nil {
			min = negSafeIntBound
		}
		if max == nil {
			max = safeIntBound
		}
		if !isIntegral(min) || !isIntegral(max) {
			sink.Errorf(diag.OutOfRange, "restrict_number: integer parent requires integer-valued bounds")
			return nil, false
		}
	}
	if min == nil || max == nil {
		sink.Errorf(diag.Parse, "restrict_number: min and max are required")
		return nil, false
	}
	if min.Cmp(max) > 0 {
		sink.Errorf(diag.OutOfRange, "restrict_number: min must be <= max")
		return nil, false
	}
	if anc, ok := s.numberLimits[parentResolved]; ok {
		if min.Cmp(&anc.min) < 0 {
			sink.Errorf(diag.OutOfRange, "restrict_number: min %s is outside parent bound %s", min, &anc.min)
			return nil, false
		}
		if max.Cmp(&anc.max) > 0 {
			sink.Errorf(diag.OutOfRange, "restrict_number: max %s is outside parent bound %s", max, &anc.max)
			return nil, false
		}
	}

	generated := parentResolved + "." + rangeID(min, max)
	if existing, ok := s.parsers[generated]; ok {
		if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
			return nil, false
		}
		return existing, true
	}

	parent := s.parsers[parentResolved]
	minCopy, maxCopy := *min, *max
	p := newFuncParser(generated, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		d, isNum := v.(*apd.Decimal)
		if !isNum {
			sink.Errorf(diag.Internal, "restrict_number: parent did not produce a number")
			return nil, c, false
		}
		if !withinRange(d, &minCopy, &maxCopy) {
			sink.Errorf(diag.OutOfRange, "%s is outside [%s,%s]", d, &minCopy, &maxCopy)
			return nil, c, false
		}
		return v, c, true
	})
	s.parsers[generated] = p
	s.numberLimits[generated] = numberLimit{min: minCopy, max: maxCopy}
	s.extends[generated] = parentResolved
	s.neverTable[generated] = true
	s.comparators[generated] = s.comparatorFor(parent)
	if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
		return nil, false
	}
	return p, true
}

// RestrictString derives a length/regex-restricted string type.
func (s *Schema) RestrictString(sink *diag.Sink, parentSpec string, minLen, maxLen *int, regexSrc string, alias string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parent, ok := s.parsers[parentResolved]
	if !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil, false
	}
	if parentResolved != "string" && !s.extendsLocked(parentResolved, "string", map[string]bool{}) {
		sink.Errorf(diag.Parse, "restrict_string: parent %q is not a string type", parentSpec)
		return nil, false
	}
	if minLen == nil && maxLen == nil && regexSrc == "" {
		sink.Errorf(diag.Parse, "restrict_string: at least one of minLen/maxLen/pattern is required")
		return nil, false
	}
	if minLen != nil && *minLen < 0 {
		sink.Errorf(diag.OutOfRange, "restrict_string: minLen must be non-negative")
		return nil, false
	}
	if maxLen != nil && *maxLen < 0 {
		sink.Errorf(diag.OutOfRange, "restrict_string: maxLen must be non-negative")
		return nil, false
	}
	if minLen != nil && maxLen != nil && *minLen > *maxLen {
		sink.Errorf(diag.OutOfRange, "restrict_string: minLen must be <= maxLen")
		return nil, false
	}
	if anc, ok := s.strRestrictions[parentResolved]; ok {
		if anc.hasMinLen && (minLen == nil || *minLen < anc.minLen) {
			v := anc.minLen
			minLen = &v
		}
		if anc.hasMaxLen && (maxLen == nil || *maxLen > anc.maxLen) {
			v := anc.maxLen
			maxLen = &v
		}
	}
	var re *regexp.Regexp
	if regexSrc != "" {
		var err error
		re, err = regexp.Compile(regexSrc)
		if err != nil {
			sink.Errorf(diag.Parse, "restrict_string: invalid regex %q: %s", regexSrc, err)
			return nil, false
		}
	}

	lenID := "_RS"
	if minLen != nil {
		lenID += fmt.Sprintf("%d", *minLen)
	}
	lenID += "_"
	if maxLen != nil {
		lenID += fmt.Sprintf("%d", *maxLen)
	}
	regexID := "none"
	if re != nil {
		regexID = fmt.Sprintf("%x", len(regexSrc)) + strings.ReplaceAll(regexSrc, "/", "_")
	}
	generated := parentResolved + "." + lenID + "_RE_" + regexID

	if existing, ok := s.parsers[generated]; ok {
		if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
			return nil, false
		}
		return existing, true
	}

	restriction := strRestriction{regex: re}
	if minLen != nil {
		restriction.hasMinLen, restriction.minLen = true, *minLen
	}
	if maxLen != nil {
		restriction.hasMaxLen, restriction.maxLen = true, *maxLen
	}

	p := newFuncParser(generated, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		str, isStr := v.(string)
		if !isStr {
			sink.Errorf(diag.Internal, "restrict_string: parent did not produce a string")
			return nil, c, false
		}
		if restriction.hasMinLen && len(str) < restriction.minLen {
			sink.Errorf(diag.OutOfRange, "%q is shorter than %d", str, restriction.minLen)
			return nil, c, false
		}
		if restriction.hasMaxLen && len(str) > restriction.maxLen {
			sink.Errorf(diag.OutOfRange, "%q is longer than %d", str, restriction.maxLen)
			return nil, c, false
		}
		if restriction.regex != nil && !restriction.regex.MatchString(str) {
			sink.Errorf(diag.PatternMismatch, "%q does not match pattern %q", str, regexSrc)
			return nil, c, false
		}
		return v, c, true
	})
	s.parsers[generated] = p
	s.strRestrictions[generated] = restriction
	s.extends[generated] = parentResolved
	s.neverTable[generated] = true
	s.comparators[generated] = s.comparatorFor(parent)
	if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
		return nil, false
	}
	return p, true
}

// RestrictEnum derives an enum type whose labels are a subset of parent's
//.
func (s *Schema) RestrictEnum(sink *diag.Sink, parentSpec string, labels []string, alias string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parentParser, ok := s.parsers[parentResolved].(*enumParser)
	if !ok {
		sink.Errorf(diag.Parse, "restrict_enum: parent %q is not an enum type", parentSpec)
		return nil, false
	}
	for _, l := range labels {
		if _, in := parentParser.orig[strings.ToLower(l)]; !in {
			sink.Errorf(diag.EnumLabel, "restrict_enum: %q is not a label of %q", l, parentSpec)
			return nil, false
		}
	}
	p, ok := s.buildEnum(sink, labels)
	if !ok {
		return nil, false
	}
	if existing, has := s.parsers[p.Spec()]; has {
		p = existing
	} else {
		s.parsers[p.Spec()] = p
	}
	s.extends[p.Spec()] = parentResolved
	if alias != "" && !s.registerAliasLocked(sink, alias, p.Spec()) {
		return nil, false
	}
	return p, true
}

// RestrictUnion derives a union type whose members are a subset of parent's
//.
func (s *Schema) RestrictUnion(sink *diag.Sink, parentSpec string, allowed []string, alias string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parentUnion, ok := s.parsers[parentResolved].(*unionParser)
	if !ok {
		sink.Errorf(diag.Parse, "restrict_union: parent %q is not a union type", parentSpec)
		return nil, false
	}
	parentMembers := map[string]Parser{}
	for _, m := range parentUnion.members {
		parentMembers[m.Spec()] = m
	}
	kept := make([]Parser, 0, len(allowed))
	for _, a := range allowed {
		resolvedA := s.resolveAlias(a)
		m, in := parentMembers[resolvedA]
		if !in {
			sink.Errorf(diag.UnionMember, "restrict_union: %q is not a member of %q", a, parentSpec)
			return nil, false
		}
		kept = append(kept, m)
	}
	// keep `nil` last, as every union canonical form requires.
	for i, m := range kept {
		if m.Spec() == "nil" && i != len(kept)-1 {
			kept[i], kept[len(kept)-1] = kept[len(kept)-1], kept[i]
		}
	}
	parts := make([]string, len(kept))
	for i, m := range kept {
		parts[i] = m.Spec()
	}
	generated := strings.Join(parts, "|")
	if existing, ok := s.parsers[generated]; ok {
		if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
			return nil, false
		}
		return existing, true
	}
	p := &unionParser{schema: s, spec: generated, members: kept}
	s.parsers[generated] = p
	s.extends[generated] = parentResolved
	if len(kept) > 0 {
		s.unionFirstType[generated] = kept[0].Spec()
	}
	allNeverTable := true
	for _, m := range kept {
		if !s.neverTable[m.Spec()] {
			allNeverTable = false
			break
		}
	}
	if allNeverTable {
		s.neverTable[generated] = true
	}
	if len(kept) > 0 && kept[len(kept)-1].Spec() == "nil" {
		s.optional[generated] = true
		s.nilUnions[p] = true
		if len(kept) == 2 {
			s.comparators[generated] = nilAwareComparator(s.comparatorFor(kept[0]))
		} else {
			s.comparators[generated] = genericComparator
		}
	} else {
		s.comparators[generated] = genericComparator
	}
	if alias != "" && !s.registerAliasLocked(sink, alias, generated) {
		return nil, false
	}
	return p, true
}

// RestrictWithExpression derives a type whose values must additionally
// satisfy a sandboxed expression. The ABI's compile(source,quota)
// carries a single quota channel; per the ExpressionCompiler contract that
// quota is enforced on every subsequent Eval, so EvalQuota governs both the
// compile-time smoke test and every later cell evaluation of this
// expression (CompileQuota goes unused here — see DESIGN.md).
func (s *Schema) RestrictWithExpression(sink *diag.Sink, parentSpec, name, source string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parent, ok := s.parsers[parentResolved]
	if !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil, false
	}
	if !s.checkNewTypeNameLocked(sink, name) {
		return nil, false
	}
	if s.opts.Sandbox == nil {
		sink.Errorf(diag.ExpressionCompile, "no expression sandbox configured")
		return nil, false
	}
	compiled, err := s.opts.Sandbox.Compile(source, s.opts.EvalQuota)
	if err != nil {
		sink.Errorf(diag.ExpressionCompile, "%s: %s", name, err)
		return nil, false
	}
	p := newFuncParser(name, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		result, evalOK := compiled.Eval(sink, v)
		if !evalOK {
			return nil, c, false
		}
		switch r := result.(type) {
		case bool:
			if !r {
				sink.Errorf(diag.ExpressionRuntime, "%s: validation failed", name)
				return nil, c, false
			}
		case string:
			if r != "" {
				sink.Errorf(diag.ExpressionRuntime, "%s: %s", name, r)
				return nil, c, false
			}
		case nil:
			sink.Errorf(diag.ExpressionRuntime, "%s: validation failed", name)
			return nil, c, false
		default:
			sink.Errorf(diag.ExpressionRuntime, "%s: %v", name, r)
			return nil, c, false
		}
		return v, c, true
	})
	s.parsers[name] = p
	s.extends[name] = parentResolved
	s.comparators[name] = s.comparatorFor(parent)
	return p, true
}

// RestrictToTypeExtending derives a string type whose values must name a
// registered type that equals or structurally extends ancestor.
func (s *Schema) RestrictToTypeExtending(sink *diag.Sink, parentSpec, name, ancestorSpec string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentResolved := s.resolveAlias(parentSpec)
	parent, ok := s.parsers[parentResolved]
	if !ok {
		sink.Errorf(diag.UnknownType, "unknown parent type %q", parentSpec)
		return nil, false
	}
	if parentResolved != "string" && !s.extendsLocked(parentResolved, "string", map[string]bool{}) {
		sink.Errorf(diag.Parse, "restrict_to_type_extending: parent %q is not a string type", parentSpec)
		return nil, false
	}
	ancestorResolved := s.resolveAlias(ancestorSpec)
	if _, ok := s.parsers[ancestorResolved]; !ok {
		sink.Errorf(diag.UnknownType, "unknown ancestor type %q", ancestorSpec)
		return nil, false
	}
	if !s.checkNewTypeNameLocked(sink, name) {
		return nil, false
	}
	p := newFuncParser(name, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		v, c, ok := parent.Parse(sink, raw, ctx)
		if !ok {
			return nil, c, false
		}
		str := v.(string)
		resolvedName := s.resolveAlias(str)
		if _, exists := s.parsers[resolvedName]; !exists {
			sink.Errorf(diag.UnknownType, "%s: %q is not a registered type", name, str)
			return nil, c, false
		}
		if resolvedName != ancestorResolved && !s.ExtendsOrRestrict(resolvedName, ancestorResolved) {
			sink.Errorf(diag.UnionMember, "%s: %q does not extend %q", name, str, ancestorSpec)
			return nil, c, false
		}
		return v, c, true
	})
	s.parsers[name] = p
	s.extends[name] = parentResolved
	s.neverTable[name] = true
	s.bareExtendsTarget[name] = ancestorResolved
	s.typeNameProducing[name] = true
	s.comparators[name] = s.comparatorFor(parent)
	return p, true
}

// RegisterTypeTag installs a named set of member types (a type tag):
// populates tag_members/tag_ancestor and installs a string type-name parser
// under tagName itself, so a tag can be used anywhere a type name is
// expected — as a self-ref target, a bare-extends target, or the ancestor
// argument of restrict_to_type_extending. Membership is transitive: tagging
// another tag as a member makes every member of that nested tag a member of
// this one too, handled by extends_or_restrict's own tag-membership rule.
func (s *Schema) RegisterTypeTag(sink *diag.Sink, tagName string, members []string, ancestorSpec string) (Parser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkNewTypeNameLocked(sink, tagName) {
		return nil, false
	}
	memberSet := map[string]bool{}
	for _, m := range members {
		resolved := s.resolveAlias(m)
		if _, ok := s.parsers[resolved]; !ok {
			sink.Errorf(diag.UnknownType, "type tag %q: unknown member type %q", tagName, m)
			return nil, false
		}
		memberSet[resolved] = true
	}
	var ancestorResolved string
	if ancestorSpec != "" {
		ancestorResolved = s.resolveAlias(ancestorSpec)
		if _, ok := s.parsers[ancestorResolved]; !ok {
			sink.Errorf(diag.UnknownType, "type tag %q: unknown ancestor type %q", tagName, ancestorSpec)
			return nil, false
		}
	}

	p := newFuncParser(tagName, func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		name, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a string type-name for %s", tagName)
			return nil, "", false
		}
		s.mu.RLock()
		resolvedName := s.resolveAlias(name)
		_, exists := s.parsers[resolvedName]
		s.mu.RUnlock()
		if !exists {
			sink.Errorf(diag.UnknownType, "unknown type %q", name)
			return nil, "", false
		}
		if resolvedName != tagName && !s.ExtendsOrRestrict(resolvedName, tagName) {
			sink.Errorf(diag.UnionMember, "%q is not a member of tag %q", name, tagName)
			return nil, "", false
		}
		return name, name, true
	})
	s.parsers[tagName] = p
	s.tagMembers[tagName] = memberSet
	if ancestorResolved != "" {
		s.tagAncestor[tagName] = ancestorResolved
	}
	s.neverTable[tagName] = true
	s.typeNameProducing[tagName] = true
	s.comparators[tagName] = func(a, b interface{}) int { return strings.Compare(a.(string), b.(string)) }
	return p, true
}
