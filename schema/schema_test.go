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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

func newTestSchema(t *testing.T) *Schema {
	t.Helper()
	return NewSchema(Options{})
}

func TestNewSchemaInstallsBuiltins(t *testing.T) {
	s := newTestSchema(t)
	for _, name := range []string{"nil", "boolean", "string", "table", "integer", "long", "float", "any"} {
		require.True(t, s.IsBuiltInType(name), name)
	}
}

func TestParseTypeValueRoundTrip(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	p, spec := s.ParseType(sink, "integer")
	require.Zero(t, sink.Errors)
	require.Equal(t, "integer", spec)

	value, canon, ok := p.Parse(sink, "42", CtxTSV)
	require.True(t, ok)
	require.Equal(t, "42", canon)

	value2, canon2, ok2 := p.Parse(sink, canon, CtxTSV)
	require.True(t, ok2)
	require.Equal(t, canon, canon2)
	require.Equal(t, value.(interface{ String() string }).String(), value2.(interface{ String() string }).String())
}

func TestParseTypeMemoisesUnderCanonicalSpec(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	p1, _ := s.ParseType(sink, "{a:integer,b:string}")
	p2, _ := s.ParseType(sink, "{a:integer,b:string}")
	require.Same(t, p1, p2)
}

func TestRecordFieldIntrospection(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{id:integer,label:string}")
	require.Zero(t, sink.Errors)

	names := s.RecordFieldNames(spec)
	sortedNames := append([]string(nil), names...)
	require.ElementsMatch(t, []string{"id", "label"}, sortedNames)

	types := s.RecordFieldTypes(spec)
	require.Equal(t, map[string]string{"id": "integer", "label": "string"}, types)
}

func TestRecordExtensionMonotonicity(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, base := s.ParseType(sink, "{id:integer,code:string}")
	require.Zero(t, sink.Errors)

	_, extended := s.ParseType(sink, "{extends:"+base+",label:string}")
	require.Zero(t, sink.Errors)

	require.True(t, s.ExtendsOrRestrict(extended, base))
	require.False(t, s.ExtendsOrRestrict(base, extended))
	require.False(t, s.ExtendsOrRestrict(base, base))
}

func TestTupleSelfRefTargetsTypeNameSlot(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{type,self._1}")
	require.Zero(t, sink.Errors)
	require.Equal(t, []string{"type", "type"}, s.TupleFieldTypes(spec))
}

func TestTupleSelfRefRejectsNonTypeNameSlot(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, _ = s.ParseType(sink, "{integer,self._1}")
	require.NotZero(t, sink.Errors)
}

func TestUnionOptionalFieldTracksTrailingNil(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{id:integer,nickname:string|nil}")
	require.Zero(t, sink.Errors)
	require.Equal(t, []string{"nickname"}, s.RecordOptionalFieldNames(spec))
}

func TestArrayAndMapIntrospection(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)

	_, arrSpec := s.ParseType(sink, "{integer}")
	require.Zero(t, sink.Errors)
	elem, ok := s.ArrayElementType(arrSpec)
	require.True(t, ok)
	require.Equal(t, "integer", elem)

	_, mapSpec := s.ParseType(sink, "{string:integer}")
	require.Zero(t, sink.Errors)
	key, value, ok := s.MapKVType(mapSpec)
	require.True(t, ok)
	require.Equal(t, "string", key)
	require.Equal(t, "integer", value)
}

func TestMapKeyRejectsTableTypes(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.ParseType(sink, "{table:integer}")
	_ = ok
	require.NotZero(t, sink.Errors)
}

func TestEnumLabelsFoldedAndSorted(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{enum:Red|green|BLUE}")
	require.Zero(t, sink.Errors)
	// The canonical spec folds and sorts the labels; EnumLabels keeps each
	// label's original case.
	require.Equal(t, "{enum:blue|green|red}", spec)
	labels := s.EnumLabels(spec)
	require.ElementsMatch(t, []string{"Red", "green", "BLUE"}, labels)
}

func TestEnumRejectsCaseOnlyDuplicate(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, _ = s.ParseType(sink, "{enum:Red|red}")
	require.NotZero(t, sink.Errors)
}

func TestUnionTypesOrderPreserved(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "integer|string|nil")
	require.Zero(t, sink.Errors)
	require.Equal(t, []string{"integer", "string", "nil"}, s.UnionTypes(spec))
}

func TestSubtypeReflexivityIsFalse(t *testing.T) {
	s := newTestSchema(t)
	require.False(t, s.ExtendsOrRestrict("integer", "integer"))
}

func TestSubtypeTransitivityThroughRestriction(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.RestrictNumber(sink, "integer", nil, nil, "percentage_unused")
	require.True(t, ok)
	require.Zero(t, sink.Errors)
	require.True(t, s.ExtendsOrRestrict("percentage_unused", "integer"))
	require.True(t, s.ExtendsOrRestrict("percentage_unused", "number"))
}

func TestGetSchemaModelIsStableSnapshot(t *testing.T) {
	s := newTestSchema(t)
	rows1 := s.GetSchemaModel()
	rows2 := s.GetSchemaModel()
	if diff := cmp.Diff(rows1, rows2); diff != "" {
		t.Fatalf("GetSchemaModel is not deterministic across calls: %s", diff)
	}
	require.NotEmpty(t, rows1)
}

func TestCreateDefaultValueForRecord(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{id:integer,label:string}")
	require.Zero(t, sink.Errors)

	def, ok := s.CreateDefaultValue(spec)
	require.True(t, ok)
	m, isMap := def.(map[string]interface{})
	require.True(t, isMap)
	require.Contains(t, m, "id")
	require.Contains(t, m, "label")
}

func TestCreateDefaultValueSkipsOptionalFields(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, spec := s.ParseType(sink, "{id:integer,nickname:string|nil}")
	require.Zero(t, sink.Errors)

	def, ok := s.CreateDefaultValue(spec)
	require.True(t, ok)
	m := def.(map[string]interface{})
	require.NotContains(t, m, "nickname")
}

func TestRestrictWithValidatorRejectsNameCollisionWithBuiltin(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	p := s.RestrictWithValidator(sink, "ascii", "integer", func(interface{}) (bool, string) { return true, "" })
	require.Nil(t, p)
	require.NotZero(t, sink.Errors)
}

func TestExtendParserRejectsReservedName(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	p := s.ExtendParser(sink, "string", "self", func(sink *diag.Sink, parsed interface{}, canon string, ctx Context) (interface{}, string, bool) {
		return parsed, canon, true
	})
	require.Nil(t, p)
	require.NotZero(t, sink.Errors)
}

func TestRestrictToTypeExtendingRejectsDuplicateRegistration(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.RestrictToTypeExtending(sink, "ascii", "type", "table")
	require.False(t, ok)
	require.NotZero(t, sink.Errors)
}

func TestRegisterTypeTagPopulatesMembersAndAncestor(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.RegisterTypeTag(sink, "numeric_kind", []string{"integer", "float"}, "number")
	require.True(t, ok)
	require.Zero(t, sink.Errors)

	require.ElementsMatch(t, []string{"float", "integer"}, s.ListMembersOfTag("numeric_kind"))
	require.True(t, s.IsMemberOfTag("integer", "numeric_kind"))
	require.True(t, s.IsMemberOfTag("float", "numeric_kind"))
	require.False(t, s.IsMemberOfTag("string", "numeric_kind"))
}

func TestTypeTagParticipatesInSubtyping(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.RegisterTypeTag(sink, "numeric_kind", []string{"integer", "float"}, "")
	require.True(t, ok)
	require.True(t, s.ExtendsOrRestrict("integer", "numeric_kind"))
}

func TestRegisterTypeTagRejectsUnknownMember(t *testing.T) {
	s := newTestSchema(t)
	sink := diag.NewSink("test", nil)
	_, ok := s.RegisterTypeTag(sink, "bogus_tag", []string{"not_a_real_type"}, "")
	require.False(t, ok)
	require.NotZero(t, sink.Errors)
}

func TestGetComparatorReturnsInstalledOrderingFunction(t *testing.T) {
	s := newTestSchema(t)
	cmpFn, ok := s.GetComparator("integer")
	require.True(t, ok)
	require.NotNil(t, cmpFn)
}

func TestGetComparatorMissingForUnregisteredSpec(t *testing.T) {
	s := newTestSchema(t)
	_, ok := s.GetComparator("no_such_type")
	require.False(t, ok)
}
