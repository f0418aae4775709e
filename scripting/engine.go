// Package scripting hosts Lua hooks that drive structural changes into the
// simulation from outside compiled code, e.g. wave spawners in the demo
// host. Hooks only produce requests; the host stages them through the
// deferred command log.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only (the
// host tick loop); hooks must never touch the world directly.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// SpawnRequest is one entity spawn staged by the Lua on_tick hook.
type SpawnRequest struct {
	Kind  string
	X, Y  float64
	Count int
}

// OnTick calls the Lua on_tick(ctx) hook and collects its spawn requests.
// A missing hook is not an error; a failing one is logged and skipped.
func (e *Engine) OnTick(tick int64, population int) []SpawnRequest {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return nil
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("tick", lua.LNumber(tick))
	ctx.RawSetString("population", lua.LNumber(population))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		e.log.Error("lua on_tick error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var requests []SpawnRequest
	for i := 1; i <= rt.Len(); i++ {
		row, ok := rt.RawGetInt(i).(*lua.LTable)
		if !ok {
			e.log.Error("lua on_tick returned non-table spawn entry", zap.Int("index", i))
			continue
		}
		req := SpawnRequest{
			Kind:  lua.LVAsString(row.RawGetString("kind")),
			X:     float64(lua.LVAsNumber(row.RawGetString("x"))),
			Y:     float64(lua.LVAsNumber(row.RawGetString("y"))),
			Count: int(lua.LVAsNumber(row.RawGetString("count"))),
		}
		if req.Count <= 0 {
			req.Count = 1
		}
		requests = append(requests, req)
	}
	return requests
}
