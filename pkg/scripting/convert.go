package scripting

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// convertGoToLua converts a Go value into a Lua value. Unknown types are
// passed as their fmt string.
func convertGoToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case time.Time:
		return lua.LNumber(val.Unix())
	case map[string]interface{}:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, convertGoToLua(L, item))
		}
		return t
	case map[string]string:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for _, item := range val {
			t.Append(convertGoToLua(L, item))
		}
		return t
	case []string:
		t := L.NewTable()
		for _, item := range val {
			t.Append(lua.LString(item))
		}
		return t
	case []map[string]interface{}:
		t := L.NewTable()
		for _, item := range val {
			t.Append(convertGoToLua(L, item))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

// convertLuaToGo converts a Lua value into plain Go values. Tables with only
// consecutive integer keys from 1 become slices; other tables become maps.
func convertLuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 && n == tableLen(val) {
			out := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, convertLuaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]interface{})
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = convertLuaToGo(item)
		})
		return out
	}
	return v.String()
}

func tableLen(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}
