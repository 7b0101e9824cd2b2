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

// Package sandbox is the quota-bounded Lua expression evaluator the core
// consumes through schema.ExpressionCompiler — the "compile(source) →
// callable" collaborator restrict_with_expression is built on.
// It deliberately exposes only pure math, string and table helpers plus
// `equals` and the bound `value`, never file or network access.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/skunkiferous/TabuLua-sub005/diag"
	"github.com/skunkiferous/TabuLua-sub005/schema"
)

// quotaUnit is how long one "operation" in a quota budget is allowed to run
// for, since gopher-lua exposes no public instruction counter and SetContext
// is its only interruption hook. A quota of 1000 therefore bounds a script to
// roughly one millisecond, which is ample for the single boolean/arithmetic
// expressions restrict_with_expression validates.
const quotaUnit = time.Microsecond

// LuaCompiler implements schema.ExpressionCompiler on top of gopher-lua.
type LuaCompiler struct{}

type luaExpr struct {
	proto *lua.FunctionProto
	quota int
}

// Compile parses and compiles source to a FunctionProto (mirroring the
// teacher's own precompile-then-reuse pattern), then smoke-tests it once
// against `value = nil` under quota so a script that diverges before ever
// seeing a real cell value is rejected at registration time rather than on
// the first row. A runtime error against the nil value is not a reason to
// reject. The same quota is then re-applied
// on every later Eval call, since the sandbox ABI carries a single quota
// channel.
func (c *LuaCompiler) Compile(source string, quota int) (schema.CompiledExpr, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "expr")
	if err != nil {
		return nil, fmt.Errorf("lua: %w", err)
	}
	proto, err := lua.Compile(chunk, "expr")
	if err != nil {
		return nil, fmt.Errorf("lua: %w", err)
	}
	expr := &luaExpr{proto: proto, quota: quota}
	if _, ok, timedOut := expr.run(diag.Null(), nil); !ok && timedOut {
		return nil, fmt.Errorf("lua: expression exceeded its compile-time quota")
	}
	return expr, nil
}

// Eval binds `value` and runs the compiled expression, returning whatever it
// returns.
func (e *luaExpr) Eval(sink *diag.Sink, value interface{}) (interface{}, bool) {
	v, ok, _ := e.run(sink, value)
	return v, ok
}

// run's third result reports whether a failure was the quota running out.
func (e *luaExpr) run(sink *diag.Sink, value interface{}) (interface{}, bool, bool) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	registerSandboxLibs(L)
	L.SetGlobal("value", interfaceToLuaValue(L, value))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.quota)*quotaUnit)
	defer cancel()
	L.SetContext(ctx)

	fn := L.NewFunctionFromProto(e.proto)
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			sink.Errorf(diag.Quota, "expression exceeded its operation quota")
			return nil, false, true
		}
		sink.Errorf(diag.ExpressionRuntime, "%s", err)
		return nil, false, false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaValueToInterface(ret), true, false
}

// registerSandboxLibs opens only the pure, side-effect-free standard
// libraries (base, table, string, math) plus `equals`, then strips the
// file/process globals base pulls in.
func registerSandboxLibs(L *lua.LState) {
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.fn))
		L.Push(lua.LString(pair.name))
		L.Call(1, 0)
	}
	// Base opens io/os helper globals this sandbox must not expose.
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)

	L.SetGlobal("equals", L.NewFunction(func(L *lua.LState) int {
		a := luaValueToInterface(L.CheckAny(1))
		b := luaValueToInterface(L.CheckAny(2))
		L.Push(lua.LBool(deepEqual(a, b)))
		return 1
	}))
}

func deepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
