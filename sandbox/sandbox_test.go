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

package sandbox

import (
	"testing"

	"github.com/cockroachdb/apd/v2"
	"github.com/stretchr/testify/require"

	"github.com/skunkiferous/TabuLua-sub005/diag"
)

func TestCompileAndEvalBooleanExpression(t *testing.T) {
	c := &LuaCompiler{}
	expr, err := c.Compile("return value > 10", 1000)
	require.NoError(t, err)

	sink := diag.NewSink("test", nil)
	d := apd.New(42, 0)
	result, ok := expr.Eval(sink, d)
	require.True(t, ok)
	require.Equal(t, true, result)
	require.Zero(t, sink.Errors)
}

func TestCompileRejectsSyntaxError(t *testing.T) {
	c := &LuaCompiler{}
	_, err := c.Compile("return value >", 1000)
	require.Error(t, err)
}

func TestCompileSmokeTestsAgainstNilValue(t *testing.T) {
	c := &LuaCompiler{}
	// value is nil during the compile-time smoke test; indexing it raises a
	// Lua runtime error there, which is not a quota overrun, so Compile
	// accepts the expression.
	_, err := c.Compile("return value.nope", 1000)
	require.NoError(t, err)
}

func TestCompileRejectsExpressionThatBlowsItsQuota(t *testing.T) {
	c := &LuaCompiler{}
	// An infinite loop exceeds the quota during Compile's own smoke test,
	// since that test runs under the same quota passed by the caller.
	_, err := c.Compile("local i = 0 while true do i = i + 1 end return i", 1)
	require.Error(t, err)
}

func TestSandboxHasNoFileOrProcessAccess(t *testing.T) {
	c := &LuaCompiler{}
	for _, src := range []string{"return io", "return os", "return dofile", "return loadfile", "return load"} {
		expr, err := c.Compile(src, 1000)
		require.NoError(t, err, src)
		sink := diag.NewSink("test", nil)
		result, ok := expr.Eval(sink, nil)
		require.True(t, ok, src)
		require.Nil(t, result, src)
	}
}

func TestEqualsComparesTablesDeeply(t *testing.T) {
	c := &LuaCompiler{}
	expr, err := c.Compile("return equals({1,2,3}, {1,2,3})", 1000)
	require.NoError(t, err)
	sink := diag.NewSink("test", nil)
	result, ok := expr.Eval(sink, nil)
	require.True(t, ok)
	require.Equal(t, true, result)
}

func TestEqualsRejectsDifferentTables(t *testing.T) {
	c := &LuaCompiler{}
	expr, err := c.Compile("return equals({1,2,3}, {1,2,4})", 1000)
	require.NoError(t, err)
	sink := diag.NewSink("test", nil)
	result, ok := expr.Eval(sink, nil)
	require.True(t, ok)
	require.Equal(t, false, result)
}

func TestInterfaceToLuaValueRoundTripsArraysAndMaps(t *testing.T) {
	arr := []interface{}{"a", "b", float64(1)}
	m := map[string]interface{}{"x": float64(1), "y": "z"}

	c := &LuaCompiler{}
	expr, err := c.Compile("return #value", 1000)
	require.NoError(t, err)
	sink := diag.NewSink("test", nil)
	n, ok := expr.Eval(sink, arr)
	require.True(t, ok)
	require.Equal(t, float64(3), n)

	expr2, err := c.Compile("return value.x", 1000)
	require.NoError(t, err)
	xv, ok := expr2.Eval(sink, m)
	require.True(t, ok)
	require.Equal(t, float64(1), xv)
}

func TestDecimalValueConvertsToLuaNumber(t *testing.T) {
	c := &LuaCompiler{}
	expr, err := c.Compile("return value * 2", 1000)
	require.NoError(t, err)
	sink := diag.NewSink("test", nil)
	d := apd.New(21, 0)
	result, ok := expr.Eval(sink, d)
	require.True(t, ok)
	require.Equal(t, float64(42), result)
}

func TestRuntimeErrorReportsExpressionRuntimeDiagnostic(t *testing.T) {
	c := &LuaCompiler{}
	expr, err := c.Compile("return value()", 1000)
	require.NoError(t, err)
	sink := diag.NewSink("test", nil)
	_, ok := expr.Eval(sink, "not callable")
	require.False(t, ok)
	require.Equal(t, 1, sink.Errors)
}
