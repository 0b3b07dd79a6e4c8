package scripting

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/devxilz/mcp-chatbot/pkg/log"
)

// apiTableName is the global table holding the Go helpers exposed to scripts.
const apiTableName = "chatbot"

// registerAPIFunctions registers Go functions that are available to Lua scripts.
func registerAPIFunctions(L *lua.LState) {
	api := L.NewTable()
	L.SetField(api, "log", L.NewFunction(apiLog))
	L.SetField(api, "now", L.NewFunction(apiNow))
	L.SetField(api, "format_time", L.NewFunction(apiFormatTime))
	L.SetField(api, "uuid", L.NewFunction(apiUUID))
	L.SetField(api, "json_encode", L.NewFunction(apiJSONEncode))
	L.SetField(api, "json_decode", L.NewFunction(apiJSONDecode))
	L.SetGlobal(apiTableName, api)
}

// apiLog is a function to log messages from Lua
func apiLog(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	switch level {
	case "debug":
		log.Debug("Lua script message", "message", message)
	case "warn", "warning":
		log.Warn("Lua script message", "message", message)
	case "error":
		log.Error("Lua script message", "message", message)
	default:
		log.Info("Lua script message", "message", message)
	}
	return 0
}

// apiNow returns the current time as a Unix timestamp
func apiNow(L *lua.LState) int {
	L.Push(lua.LNumber(time.Now().Unix()))
	return 1
}

// apiFormatTime formats a Unix timestamp as a string
func apiFormatTime(L *lua.LState) int {
	timestamp := L.CheckNumber(1)
	format := L.OptString(2, time.RFC3339)

	t := time.Unix(int64(timestamp), 0).UTC()
	L.Push(lua.LString(t.Format(format)))
	return 1
}

func apiUUID(L *lua.LState) int {
	L.Push(lua.LString(uuid.New().String()))
	return 1
}

// apiJSONEncode returns the JSON text of a Lua value, or nil and an error message.
func apiJSONEncode(L *lua.LState) int {
	data, err := json.Marshal(convertLuaToGo(L.CheckAny(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(data))
	return 1
}

// apiJSONDecode parses JSON text into a Lua value, or nil and an error message.
func apiJSONDecode(L *lua.LState) int {
	var v interface{}
	if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(convertGoToLua(L, v))
	return 1
}
