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
	"strings"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

// --- array ------------------------------------------------------------

type arrayParser struct {
	schema *Schema
	spec   string
	elem   Parser
}

func (p *arrayParser) Spec() string { return p.spec }

func (p *arrayParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	items, ok := asSlice(raw, ctx)
	if !ok {
		sink.Errorf(diag.Parse, "expected an array value for %s", p.spec)
		return nil, "{}", false
	}
	out := make([]interface{}, len(items))
	canons := make([]string, len(items))
	ok = true
	for i, it := range items {
		v, c, good := p.elem.Parse(sink, it, CtxParsed)
		out[i], canons[i] = v, c
		if !good {
			ok = false
		}
	}
	canon := "[" + strings.Join(canons, ",") + "]"
	if !ok {
		return nil, canon, false
	}
	return out, canon, true
}

// --- tuple --------------------------------------------------------------

type tupleSlot struct {
	spec      string
	parser    Parser // nil if selfRefOf >= 0
	selfRefOf int    // index of referenced slot, or -1
}

type tupleParser struct {
	schema *Schema
	spec   string
	slots  []tupleSlot
}

func (p *tupleParser) Spec() string { return p.spec }

func (p *tupleParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	items, ok := asSlice(raw, ctx)
	if !ok || len(items) < len(p.slots) {
		sink.Errorf(diag.Parse, "expected a %d-element tuple for %s", len(p.slots), p.spec)
		return nil, "{}", false
	}
	parsed := make([]interface{}, len(p.slots))
	canons := make([]string, len(p.slots))
	ok = true
	for i, slot := range p.slots {
		parser := slot.parser
		if slot.selfRefOf >= 0 {
			name, isStr := parsed[slot.selfRefOf].(string)
			if !isStr {
				sink.Errorf(diag.SelfRef, "self-ref slot %d: referenced slot did not produce a type name", i)
				ok = false
				continue
			}
			resolved := p.schema.resolveAlias(name)
			rp, exists := p.schema.parsers[resolved]
			if !exists {
				sink.Errorf(diag.UnknownType, "self-ref slot %d: unknown type %q", i, name)
				ok = false
				continue
			}
			parser = rp
		}
		v, c, good := parser.Parse(sink, items[i], CtxParsed)
		parsed[i], canons[i] = v, c
		if !good {
			ok = false
		}
	}
	canon := "{" + strings.Join(canons, ",") + "}"
	if !ok {
		return nil, canon, false
	}
	return parsed, canon, true
}

// --- map ------------------------------------------------------------------

type mapParser struct {
	schema     *Schema
	spec       string
	key, value Parser
}

func (p *mapParser) Spec() string { return p.spec }

func (p *mapParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	m, ok := asMap(raw, ctx)
	if !ok {
		sink.Errorf(diag.Parse, "expected a map value for %s", p.spec)
		return nil, "{}", false
	}
	out := map[string]interface{}{}
	canonKeys := make([]string, 0, len(m))
	canonOf := map[string]string{}
	ok = true
	for k, v := range m {
		_, kc, kok := p.key.Parse(sink, k, CtxTSV)
		vv, vc, vok := p.value.Parse(sink, v, CtxParsed)
		if !kok || !vok {
			ok = false
			continue
		}
		out[kc] = vv
		canonKeys = append(canonKeys, kc)
		canonOf[kc] = kc + ":" + vc
	}
	sort.Strings(canonKeys)
	parts := make([]string, len(canonKeys))
	for i, k := range canonKeys {
		parts[i] = canonOf[k]
	}
	canon := "{" + strings.Join(parts, ",") + "}"
	if !ok {
		return nil, canon, false
	}
	return out, canon, true
}

// --- record -----------------------------------------------------------

type recordField struct {
	name      string
	spec      string
	parser    Parser // nil if selfRefOf != ""
	selfRefOf string // referenced field name, or ""
}

type recordParser struct {
	schema *Schema
	spec   string
	fields []recordField
}

func (p *recordParser) Spec() string { return p.spec }

func (p *recordParser) fieldNames() map[string]bool {
	m := make(map[string]bool, len(p.fields))
	for _, f := range p.fields {
		m[f.name] = true
	}
	return m
}

func (p *recordParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	m, ok := asMap(raw, ctx)
	if !ok {
		sink.Errorf(diag.Parse, "expected a record value for %s", p.spec)
		return nil, "{}", false
	}
	known := p.fieldNames()
	for k := range m {
		if !known[k] {
			sink.Errorf(diag.Parse, "unknown field %q", k)
			ok = false
		}
	}
	out := map[string]interface{}{}
	parsedByName := map[string]interface{}{}
	canonParts := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		raw, present := m[f.name]
		if !present {
			continue
		}
		parser := f.parser
		if f.selfRefOf != "" {
			name, isStr := parsedByName[f.selfRefOf].(string)
			if !isStr {
				sink.Errorf(diag.SelfRef, "self-ref field %q: referenced field did not produce a type name", f.name)
				ok = false
				continue
			}
			resolved := p.schema.resolveAlias(name)
			rp, exists := p.schema.parsers[resolved]
			if !exists {
				sink.Errorf(diag.UnknownType, "self-ref field %q: unknown type %q", f.name, name)
				ok = false
				continue
			}
			parser = rp
		}
		if parser == nil {
			continue
		}
		v, c, good := parser.Parse(sink, raw, CtxParsed)
		if !good {
			ok = false
			continue
		}
		out[f.name] = v
		parsedByName[f.name] = v
		canonParts = append(canonParts, f.name+":"+c)
	}
	sort.Strings(canonParts)
	canon := "{" + strings.Join(canonParts, ",") + "}"
	if !ok {
		return nil, canon, false
	}
	return out, canon, true
}

// --- union ------------------------------------------------------------

type unionParser struct {
	schema  *Schema
	spec    string
	members []Parser
}

func (p *unionParser) Spec() string { return p.spec }

func (p *unionParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	if raw == nil || raw == "" {
		for _, m := range p.members {
			if m.Spec() == "nil" {
				return m.Parse(sink, raw, ctx)
			}
		}
	}
	// Union-member disambiguation: try each member on a null sink so a
	// failed trial does not pollute the caller's diagnostics.
	for _, m := range p.members {
		trial := diag.Null()
		v, c, ok := m.Parse(trial, raw, ctx)
		if ok {
			return v, c, true
		}
	}
	sink.Errorf(diag.UnionMember, "value does not match any member of %s", p.spec)
	return nil, "", false
}

// --- enum ---------------------------------------------------------------

type enumParser struct {
	spec   string
	labels []string
	orig   map[string]string // canonical (lower-cased) -> original case
}

func (p *enumParser) Spec() string { return p.spec }

func (p *enumParser) Parse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	s, ok := raw.(string)
	if !ok {
		sink.Errorf(diag.EnumLabel, "expected a string label for %s", p.spec)
		return nil, "", false
	}
	folded := strings.ToLower(strings.TrimSpace(s))
	orig, ok := p.orig[folded]
	if !ok {
		sink.Errorf(diag.EnumLabel, "%q is not a member of %s", s, p.spec)
		return nil, "", false
	}
	return orig, orig, true
}

// --- helpers ---------------------------------------------------------

func asSlice(raw interface{}, ctx Context) ([]interface{}, bool) {
	switch v := raw.(type) {
	case []interface{}:
		return v, true
	case nil:
		return nil, ctx == CtxTSV
	}
	return nil, false
}

func asMap(raw interface{}, ctx Context) (map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, true
	case nil:
		if ctx == CtxTSV {
			return map[string]interface{}{}, true
		}
	}
	return nil, false
}
