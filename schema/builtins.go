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
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/skunkiferous/TabuLua-sub005/diag"
	"github.com/skunkiferous/TabuLua-sub005/typespec/parser"
)

// registerBuiltins installs every primitive type into a freshly
// constructed Schema. Called exactly once, with settingUp true and before the
// Schema is visible to any other goroutine. Leaf types are written to s's
// tables directly; derived ones go through the locking public API
// (ExtendParser, RestrictWithValidator, RestrictNumber).
func registerBuiltins(s *Schema) {
	sink := diag.NewSink("builtin", nil)

	registerLeaf(s, "nil", nilParse)
	s.neverTable["nil"] = true
	s.comparators["nil"] = genericComparator

	registerLeaf(s, "boolean", booleanParse)
	s.neverTable["boolean"] = true
	s.comparators["boolean"] = func(a, b interface{}) int {
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}

	registerLeaf(s, "string", stringParse)
	s.neverTable["string"] = true
	s.comparators["string"] = func(a, b interface{}) int { return strings.Compare(a.(string), b.(string)) }

	registerLeaf(s, "table", tableParse)
	s.comparators["table"] = genericComparator

	registerAsciiFamily(s)
	registerNumberTower(s, sink)
	registerTypeNameFamily(s)
	registerVersionFamily(s)
	registerPercentRatioQuantity(s, sink)
	registerAny(s)

	if sink.Errors > 0 {
		panic(fmt.Sprintf("registerBuiltins: %d internal error(s) registering built-in types", sink.Errors))
	}
}

func registerLeaf(s *Schema, name string, fn func(*diag.Sink, interface{}, Context) (interface{}, string, bool)) {
	s.parsers[name] = newFuncParser(name, fn)
}

func nilParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	if raw == nil {
		return nil, "", true
	}
	if str, ok := raw.(string); ok && str == "" {
		return nil, "", true
	}
	sink.Errorf(diag.Parse, "expected nil or an empty value")
	return nil, "", false
}

func booleanParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	switch ctx {
	case CtxTSV:
		str, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a string for boolean")
			return nil, "", false
		}
		b, ok := formatBoolInput(str)
		if !ok {
			sink.Errorf(diag.Parse, "%q is not a recognised boolean", str)
			return nil, "", false
		}
		return b, strconv.FormatBool(b), true
	default:
		b, ok := raw.(bool)
		if !ok {
			sink.Errorf(diag.Parse, "expected an already-parsed boolean")
			return nil, "", false
		}
		return b, strconv.FormatBool(b), true
	}
}

func stringParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	str, ok := raw.(string)
	if !ok {
		if raw == nil && ctx == CtxTSV {
			str = ""
		} else {
			sink.Errorf(diag.Parse, "expected a string value")
			return nil, "", false
		}
	}
	if !utf8.ValidString(str) {
		sink.Errorf(diag.Parse, "value is not valid UTF-8")
		return nil, "", false
	}
	// Normalise to NFC so two byte-distinct spellings of the same text
	// (e.g. a precomposed vs. combining accent) compare and hash equal.
	canon := norm.NFC.String(str)
	return canon, canon, true
}

func tableParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		if raw == nil && ctx == CtxTSV {
			m = map[string]interface{}{}
		} else {
			sink.Errorf(diag.Parse, "expected a table (mapping) value")
			return nil, "{}", false
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + fmt.Sprint(m[k])
	}
	return m, "{" + strings.Join(parts, ",") + "}", true
}

// --- ascii-derived string family -------------------------------

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
var hexBytesRE = regexp.MustCompile(`^[0-9A-Fa-f]*$`)

func registerAsciiFamily(s *Schema) {
	sink := diag.NewSink("builtin", nil)

	s.ExtendParser(sink, "string", "ascii", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		str := parsed.(string)
		for i := 0; i < len(str); i++ {
			if str[i] > 127 {
				sink.Errorf(diag.Parse, "%q contains a non-ASCII byte", str)
				return nil, canon, false
			}
		}
		return str, str, true
	})
	s.neverTable["ascii"] = true

	s.RestrictWithValidator(sink, "ascii", "identifier", func(v interface{}) (bool, string) {
		str := v.(string)
		if !identifierRE.MatchString(str) {
			return false, fmt.Sprintf("%q is not a valid identifier", str)
		}
		return true, ""
	})
	s.neverTable["identifier"] = true

	s.RestrictWithValidator(sink, "ascii", "name", func(v interface{}) (bool, string) {
		str := v.(string)
		if !nameRE.MatchString(str) {
			return false, fmt.Sprintf("%q is not a dotted name", str)
		}
		return true, ""
	})
	s.neverTable["name"] = true
	s.typeNameProducing["name"] = true

	s.RestrictWithValidator(sink, "ascii", "http", func(v interface{}) (bool, string) {
		str := v.(string)
		u, err := url.ParseRequestURI(str)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false, fmt.Sprintf("%q is not a valid URL", str)
		}
		return true, ""
	})
	s.neverTable["http"] = true

	s.ExtendParser(sink, "ascii", "hexbytes", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		str := parsed.(string)
		if len(str)%2 != 0 || !hexBytesRE.MatchString(str) {
			sink.Errorf(diag.PatternMismatch, "%q is not an even-length hex string", str)
			return nil, canon, false
		}
		up := strings.ToUpper(str)
		return up, up, true
	})
	s.neverTable["hexbytes"] = true

	s.ExtendParser(sink, "ascii", "base64bytes", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		str := parsed.(string)
		decoded, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			sink.Errorf(diag.PatternMismatch, "%q is not valid base64", str)
			return nil, canon, false
		}
		reencoded := base64.StdEncoding.EncodeToString(decoded)
		return decoded, reencoded, true
	})
	s.neverTable["base64bytes"] = true

	if sink.Errors > 0 {
		panic("registerBuiltins: ascii family registration failed")
	}
}

// --- number tower ----------------------------------------------

func registerNumberTower(s *Schema, sink *diag.Sink) {
	registerLeaf(s, "number", numberParse)
	s.neverTable["number"] = true
	s.comparators["number"] = func(a, b interface{}) int { return a.(*apd.Decimal).Cmp(b.(*apd.Decimal)) }

	s.ExtendParser(sink, "number", "integer", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		d := parsed.(*apd.Decimal)
		if !isIntegral(d) {
			sink.Errorf(diag.OutOfRange, "%s is not an integer", d)
			return nil, canon, false
		}
		if !withinRange(d, negSafeIntBound, safeIntBound) {
			sink.Errorf(diag.OutOfRange, "%s is outside the safe integer range", d)
			return nil, canon, false
		}
		n, _ := decimalToInt64(d)
		return d, strconv.FormatInt(n, 10), true
	})
	s.neverTable["integer"] = true
	s.comparators["integer"] = s.comparators["number"]

	s.ExtendParser(sink, "number", "long", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		d := parsed.(*apd.Decimal)
		if !isIntegral(d) {
			sink.Errorf(diag.OutOfRange, "%s is not an integer", d)
			return nil, canon, false
		}
		if !withinRange(d, negSafeIntBound, safeIntBound) {
			// This host represents numbers as IEEE-754 doubles; values
			// outside the safe range cannot round-trip.
			sink.Errorf(diag.PrecisionLoss, "%s exceeds the safe integer range on this host", d)
			return nil, canon, false
		}
		n, _ := decimalToInt64(d)
		return d, strconv.FormatInt(n, 10), true
	})
	s.neverTable["long"] = true
	s.comparators["long"] = s.comparators["number"]

	s.ExtendParser(sink, "number", "float", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		d := parsed.(*apd.Decimal)
		return d, floatCanon(d), true
	})
	s.neverTable["float"] = true
	s.comparators["float"] = s.comparators["number"]

	ranged := func(name string, min, max int64) {
		minD, maxD := apd.New(min, 0), apd.New(max, 0)
		if _, ok := s.RestrictNumber(sink, "integer", minD, maxD, name); !ok {
			panic(fmt.Sprintf("registerBuiltins: failed to register %s", name))
		}
	}
	ranged("byte", -128, 127)
	ranged("ubyte", 0, 255)
	ranged("short", -32768, 32767)
	ranged("ushort", 0, 65535)
	ranged("int", -2147483648, 2147483647)
	ranged("uint", 0, 4294967295)

	if sink.Errors > 0 {
		panic("registerBuiltins: number tower registration failed")
	}
}

func numberParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	switch v := raw.(type) {
	case string:
		d, ok := parseDecimal(v)
		if !ok {
			sink.Errorf(diag.Parse, "%q is not a number", v)
			return nil, "", false
		}
		return d, d.String(), true
	case *apd.Decimal:
		return v, v.String(), true
	case nil:
		sink.Errorf(diag.Parse, "expected a number")
		return nil, "", false
	default:
		sink.Errorf(diag.Parse, "expected a number, found %T", raw)
		return nil, "", false
	}
}

// --- type / type_spec ------------------------------------

func registerTypeNameFamily(s *Schema) {
	sink := diag.NewSink("builtin", nil)

	s.RestrictWithValidator(sink, "ascii", "type", func(v interface{}) (bool, string) {
		str := v.(string)
		resolved := s.resolveAlias(str)
		if _, ok := s.parsers[resolved]; !ok {
			return false, fmt.Sprintf("%q is not a registered type", str)
		}
		return true, ""
	})
	s.neverTable["type"] = true
	s.typeNameProducing["type"] = true

	registerLeaf(s, "type_spec", typeSpecParser(s))
	s.neverTable["type_spec"] = true
	s.typeNameProducing["type_spec"] = true
	s.comparators["type_spec"] = func(a, b interface{}) int { return strings.Compare(a.(string), b.(string)) }

	if sink.Errors > 0 {
		panic("registerBuiltins: type-name family registration failed")
	}
}

// typeSpecParser accepts any syntactically valid type-spec string, building
// and registering it on demand so a later self-ref naming it resolves.
func typeSpecParser(s *Schema) func(*diag.Sink, interface{}, Context) (interface{}, string, bool) {
	return func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		str, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a type-spec string")
			return nil, "", false
		}
		node, err := parser.ParseFull(str)
		if err != nil {
			sink.Errorf(diag.Parse, "%q is not a valid type spec: %s", str, err)
			return nil, "", false
		}
		// Registering a type on the fly is a registry write, unlike every
		// other built-in's parse step.
		s.mu.Lock()
		p, ok := s.buildLocked(sink, node)
		s.mu.Unlock()
		if !ok {
			return nil, "", false
		}
		return p.Spec(), p.Spec(), true
	}
}

// --- version / cmp_version -------------------------------------

type semver struct{ major, minor, patch int }

func (v semver) String() string { return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch) }

var semverRE = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)$`)

func parseSemver(raw string) (semver, bool) {
	m := semverRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return semver{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return semver{major, minor, patch}, true
}

type versionCmp struct {
	op string
	v  semver
}

func (c versionCmp) String() string { return c.op + c.v.String() }

var cmpVersionRE = regexp.MustCompile(`^(==|=|>=|<=|>|<|~|\^)(.+)$`)

func registerVersionFamily(s *Schema) {
	registerLeaf(s, "version", func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		str, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a version string")
			return nil, "", false
		}
		v, ok := parseSemver(str)
		if !ok {
			sink.Errorf(diag.Parse, "%q is not a MAJOR.MINOR.PATCH version", str)
			return nil, "", false
		}
		return v, v.String(), true
	})
	s.neverTable["version"] = true
	s.comparators["version"] = func(a, b interface{}) int {
		av, bv := a.(semver), b.(semver)
		for _, d := range [][2]int{{av.major, bv.major}, {av.minor, bv.minor}, {av.patch, bv.patch}} {
			if d[0] != d[1] {
				return d[0] - d[1]
			}
		}
		return 0
	}

	registerLeaf(s, "cmp_version", func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		str, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a comparison-version string")
			return nil, "", false
		}
		m := cmpVersionRE.FindStringSubmatch(strings.TrimSpace(str))
		if m == nil {
			sink.Errorf(diag.Parse, "%q is not a valid comparison version", str)
			return nil, "", false
		}
		op := m[1]
		if op == "==" {
			op = "="
		}
		v, ok := parseSemver(m[2])
		if !ok {
			sink.Errorf(diag.Parse, "%q is not a valid version", m[2])
			return nil, "", false
		}
		c := versionCmp{op: op, v: v}
		return c, c.String(), true
	})
	s.neverTable["cmp_version"] = true
	s.comparators["cmp_version"] = genericComparator
}

// --- percent / ratio / quantity --------------------------------

var hundred = apd.New(100, 0)

func registerPercentRatioQuantity(s *Schema, outerSink *diag.Sink) {
	registerLeaf(s, "percent", percentParse)
	s.neverTable["percent"] = true
	s.comparators["percent"] = func(a, b interface{}) int { return a.(*apd.Decimal).Cmp(b.(*apd.Decimal)) }

	registerLeaf(s, "ratio", ratioParse)

	registerLeaf(s, "quantity", quantityParse(s))
}

func percentParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	str, ok := raw.(string)
	if !ok {
		sink.Errorf(diag.Parse, "expected a percent string")
		return nil, "", false
	}
	str = strings.TrimSpace(str)
	switch {
	case strings.HasSuffix(str, "%"):
		n, ok := parseDecimal(strings.TrimSuffix(str, "%"))
		if !ok {
			sink.Errorf(diag.Parse, "%q is not a valid percent", str)
			return nil, "", false
		}
		var frac apd.Decimal
		BaseCtx.Quo(&frac, n, hundred)
		return &frac, n.String() + "%", true
	case strings.Contains(str, "/"):
		parts := strings.SplitN(str, "/", 2)
		p, okP := parseDecimal(parts[0])
		q, okQ := parseDecimal(parts[1])
		if !okP || !okQ || q.IsZero() {
			sink.Errorf(diag.Parse, "%q is not a valid fraction", str)
			return nil, "", false
		}
		var frac apd.Decimal
		BaseCtx.Quo(&frac, p, q)
		return &frac, p.String() + "/" + q.String(), true
	}
	sink.Errorf(diag.Parse, "%q is neither N%% nor P/Q", str)
	return nil, "", false
}

func ratioParse(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		sink.Errorf(diag.Parse, "expected a {name:percent} mapping")
		return nil, "{}", false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := map[string]interface{}{}
	sum := apd.New(0, 0)
	parts := make([]string, 0, len(keys))
	ok2 := true
	for _, k := range keys {
		v, c, good := percentParse(sink, m[k], CtxTSV)
		if !good {
			ok2 = false
			continue
		}
		d := v.(*apd.Decimal)
		BaseCtx.Add(sum, sum, d)
		out[k] = d
		parts = append(parts, k+":"+c)
	}
	if !ok2 {
		return nil, "{" + strings.Join(parts, ",") + "}", false
	}
	one := apd.New(1, 0)
	var diff apd.Decimal
	BaseCtx.Sub(&diff, sum, one)
	diff.Abs(&diff)
	tolerance := apd.New(1, -4)
	if diff.Cmp(tolerance) > 0 {
		sink.Errorf(diag.OutOfRange, "ratio values sum to %s, not 1.0", sum)
		return nil, "{" + strings.Join(parts, ",") + "}", false
	}
	return out, "{" + strings.Join(parts, ",") + "}", true
}

var quantityRE = regexp.MustCompile(`^(-?[0-9]+(?:\.[0-9]+)?)([A-Za-z_][A-Za-z0-9_]*)$`)

type quantityValue struct {
	typeName string
	value    interface{}
}

func quantityParse(s *Schema) func(*diag.Sink, interface{}, Context) (interface{}, string, bool) {
	return func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		str, ok := raw.(string)
		if !ok {
			sink.Errorf(diag.Parse, "expected a quantity string")
			return nil, "", false
		}
		m := quantityRE.FindStringSubmatch(strings.TrimSpace(str))
		if m == nil {
			sink.Errorf(diag.Parse, "%q is not <number><type>", str)
			return nil, "", false
		}
		numStr, typeName := m[1], m[2]
		resolved := s.resolveAlias(typeName)
		parser, exists := s.parsers[resolved]
		if !exists {
			sink.Errorf(diag.UnknownType, "quantity: unknown number type %q", typeName)
			return nil, "", false
		}
		v, c, good := parser.Parse(sink, numStr, CtxTSV)
		if !good {
			return nil, "", false
		}
		qv := quantityValue{typeName: resolved, value: v}
		return qv, c + resolved, true
	}
}

// --- any --------------------------------------------------------

func registerAny(s *Schema) {
	p := newFuncParser("any", func(sink *diag.Sink, raw interface{}, ctx Context) (interface{}, string, bool) {
		items, ok := raw.([]interface{})
		if !ok || len(items) != 2 {
			sink.Errorf(diag.Parse, "expected a (type, value) pair for any")
			return nil, "{}", false
		}
		typeName, ok := items[0].(string)
		if !ok {
			sink.Errorf(diag.Parse, "any: tag must be a type name string")
			return nil, "{}", false
		}
		resolved := s.resolveAlias(typeName)
		parser, exists := s.parsers[resolved]
		if !exists {
			sink.Errorf(diag.UnknownType, "any: unknown type %q", typeName)
			return nil, "{}", false
		}
		v, c, good := parser.Parse(sink, items[1], ctx)
		if !good {
			return nil, "{}", false
		}
		switch v.(type) {
		case bool, *apd.Decimal, string, map[string]interface{}, nil:
		default:
			sink.Errorf(diag.Parse, "any: %q's parsed value kind is not permitted inside any", typeName)
			return nil, "{}", false
		}
		return []interface{}{resolved, v}, "{" + resolved + ":" + c + "}", true
	})
	s.parsers["any"] = p
	s.comparators["any"] = genericComparator
}
