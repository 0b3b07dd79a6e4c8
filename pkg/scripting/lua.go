package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/devxilz/mcp-chatbot/pkg/errors"
	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/session"
)

// LuaEngine is an Engine backed by a single gopher-lua state. Calls are
// serialized; an LState is not safe for concurrent use.
type LuaEngine struct {
	mu     sync.Mutex
	L      *lua.LState
	config Config
}

// NewLuaEngine creates an engine with the chatbot API table registered.
func NewLuaEngine(config Config) (*LuaEngine, error) {
	if config.ScriptTimeoutMs <= 0 {
		config.ScriptTimeoutMs = DefaultConfig().ScriptTimeoutMs
	}
	if config.CallStackSize <= 0 {
		config.CallStackSize = DefaultConfig().CallStackSize
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:  config.EnableSandboxing,
		CallStackSize: config.CallStackSize,
	})
	if config.EnableSandboxing {
		if err := setupSandbox(L); err != nil {
			L.Close()
			return nil, errors.Wrap(errors.ErrLuaExecution, "failed to set up sandbox: %v", err)
		}
	}
	registerAPIFunctions(L)

	log.Debug("Lua scripting engine initialized",
		"sandboxed", config.EnableSandboxing,
		"timeout_ms", config.ScriptTimeoutMs,
	)
	return &LuaEngine{L: L, config: config}, nil
}

// LoadScript implements Engine.
func (e *LuaEngine) LoadScript(name string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.L.DoString(string(content)); err != nil {
		return fmt.Errorf("%w: loading script %s: %v", errors.ErrLuaExecution, name, err)
	}
	log.Debug("Loaded Lua script", "name", name, "size", len(content))
	return nil
}

// LoadScriptFile implements Engine.
func (e *LuaEngine) LoadScriptFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.LoadScript(filepath.Base(path), content)
}

// LoadScriptDir loads every *.lua file in dir in lexical order.
func (e *LuaEngine) LoadScriptDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return fmt.Errorf("failed to list scripts in %s: %w", dir, err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := e.LoadScriptFile(p); err != nil {
			return err
		}
	}
	return nil
}

// HasFunction implements Engine.
func (e *LuaEngine) HasFunction(funcName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.L.GetGlobal(funcName).(*lua.LFunction)
	return ok
}

// ExecuteFunction implements Engine. The call is bounded by ScriptTimeoutMs
// and by ctx. A global ctx table exposes the deadline and request scope.
func (e *LuaEngine) ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := e.L.GetGlobal(funcName).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, funcName)
	}

	e.L.SetGlobal("ctx", contextTable(e.L, ctx))

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.ScriptTimeoutMs)*time.Millisecond)
	defer cancel()
	e.L.SetContext(callCtx)
	defer e.L.RemoveContext()

	luaArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		luaArgs[i] = convertGoToLua(e.L, a)
	}

	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, luaArgs...); err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", errors.ErrLuaExecution, funcName, err)
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return convertLuaToGo(ret), nil
}

// Close implements Engine.
func (e *LuaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.L.Close()
	return nil
}

func contextTable(L *lua.LState, ctx context.Context) *lua.LTable {
	t := L.NewTable()
	if deadline, ok := ctx.Deadline(); ok {
		t.RawSetString("deadline", lua.LNumber(deadline.Unix()))
	}
	if scope, ok := session.FromContext(ctx); ok {
		t.RawSetString("user_id", lua.LString(scope.UserID))
		t.RawSetString("session_id", lua.LString(scope.SessionID))
	}
	return t
}
