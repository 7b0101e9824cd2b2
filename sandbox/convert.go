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
	lua "github.com/yuin/gopher-lua"

	"github.com/cockroachdb/apd/v2"
)

// interfaceToLuaValue converts a value produced by a schema.Parser into a
// Lua value bound as `value` in the sandbox's environment.
func interfaceToLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case *apd.Decimal:
		f, _ := t.Float64()
		return lua.LNumber(f)
	case []interface{}:
		tbl := L.NewTable()
		for _, item := range t {
			tbl.Append(interfaceToLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, val := range t {
			L.SetField(tbl, k, interfaceToLuaValue(L, val))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// luaValueToInterface converts a Lua return value back into a plain Go value
// (bool/float64/string/[]interface{}/map[string]interface{}/nil), matching
// the shapes restrict_with_expression's caller expects back from Eval.
func luaValueToInterface(v lua.LValue) interface{} {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		maxn := t.MaxN()
		if maxn > 0 {
			arr := make([]interface{}, 0, maxn)
			for i := 1; i <= maxn; i++ {
				arr = append(arr, luaValueToInterface(t.RawGetInt(i)))
			}
			return arr
		}
		m := make(map[string]interface{})
		t.ForEach(func(k, val lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaValueToInterface(val)
			}
		})
		return m
	default:
		return v.String()
	}
}
