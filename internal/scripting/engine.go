package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Lookup resolves another entity by ID for the bot() script helper.
type Lookup func(id string) (*tag.Entity, bool)

// DefaultTimeout bounds one formula evaluation when none is configured.
const DefaultTimeout = 5 * time.Millisecond

// maxCompiled caps the compiled formula cache; it is reset when full.
const maxCompiled = 1024

// Libraries formulas may use. Everything that touches files, processes or
// the loader stays closed.
var openLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// Base functions removed after the prelude has loaded.
var closedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module",
	"collectgarbage", "print", "getfenv", "setfenv", "getmetatable",
	"rawset", "newproxy", "_G",
}

// Engine wraps a single gopher-lua VM used to evaluate formula tag values.
// Formulas are pure: each call runs in a fresh environment over read-only
// globals, so nothing a formula assigns survives it.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm       *lua.LState
	shared   *lua.LTable // read-only view of the globals
	compiled map[string]*lua.LFunction
	timeout  time.Duration
	log      *zap.Logger
}

// NewEngine creates a Lua engine and loads the optional prelude scripts from
// scriptsDir. An empty scriptsDir loads nothing. timeout bounds every Eval;
// zero means DefaultTimeout.
func NewEngine(scriptsDir string, timeout time.Duration, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	for _, lib := range openLibs {
		if err := vm.CallByParam(lua.P{
			Fn:      vm.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Engine{
		vm:       vm,
		compiled: make(map[string]*lua.LFunction, 64),
		timeout:  timeout,
		log:      log,
	}

	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load prelude scripts: %w", err)
		}
	}
	e.seal()
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

// seal closes the unsafe base functions and builds the shared read-only view
// formulas see as their globals. Library tables are wrapped so formulas can
// read but not replace their fields.
func (e *Engine) seal() {
	globals := e.vm.G.Global
	for _, name := range closedGlobals {
		globals.RawSetString(name, lua.LNil)
	}
	e.shared = e.vm.NewTable()
	globals.ForEach(func(k, v lua.LValue) {
		if t, ok := v.(*lua.LTable); ok {
			v = e.readOnly(t)
		}
		e.shared.RawSet(k, v)
	})
}

func (e *Engine) readOnly(t *lua.LTable) *lua.LTable {
	proxy := e.vm.NewTable()
	mt := e.vm.NewTable()
	mt.RawSetString("__index", t)
	mt.RawSetString("__newindex", e.vm.NewFunction(func(L *lua.LState) int {
		L.RaiseError("attempt to modify a read-only table")
		return 0
	}))
	mt.RawSetString("__metatable", lua.LFalse)
	e.vm.SetMetatable(proxy, mt)
	return proxy
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// Eval evaluates a formula source against this. The source is an expression;
// it is compiled once as "return <source>" and cached. Evaluation stops with
// an error when ctx is done or the engine timeout elapses.
// Formula tags read by the script are passed raw, not evaluated recursively.
func (e *Engine) Eval(ctx context.Context, source string, this *tag.Entity, lookup Lookup) (tag.Value, error) {
	fn, err := e.compile(source)
	if err != nil {
		return tag.Null(), err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	e.vm.SetContext(ctx)
	defer e.vm.RemoveContext()

	fn.Env = e.environment(this, lookup)
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		if ctx.Err() != nil {
			return tag.Null(), fmt.Errorf("eval %q: %w", source, ctx.Err())
		}
		return tag.Null(), fmt.Errorf("eval %q: %w", source, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return fromLua(result), nil
}

// environment is the per-call global table: this, bot() and the shared
// read-only globals behind them.
func (e *Engine) environment(this *tag.Entity, lookup Lookup) *lua.LTable {
	env := e.vm.NewTable()
	mt := e.vm.NewTable()
	mt.RawSetString("__index", e.shared)
	e.vm.SetMetatable(env, mt)

	env.RawSetString("this", e.entityTable(this))
	env.RawSetString("bot", e.vm.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		if lookup == nil {
			L.Push(lua.LNil)
			return 1
		}
		other, ok := lookup(id)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(e.entityTable(other))
		return 1
	}))
	return env
}

func (e *Engine) compile(source string) (*lua.LFunction, error) {
	if fn, ok := e.compiled[source]; ok {
		return fn, nil
	}
	fn, err := e.vm.LoadString("return " + source)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	if len(e.compiled) >= maxCompiled {
		e.log.Debug("formula cache full, resetting", zap.Int("entries", len(e.compiled)))
		clear(e.compiled)
	}
	e.compiled[source] = fn
	return fn, nil
}

// Cached returns the number of compiled formulas held.
func (e *Engine) Cached() int { return len(e.compiled) }

// entityTable exposes raw tags as a Lua table keyed by tag name, plus "id".
func (e *Engine) entityTable(ent *tag.Entity) *lua.LTable {
	t := e.vm.NewTable()
	if ent == nil {
		return t
	}
	ent.Each(func(name string, v tag.Value) {
		t.RawSetString(name, e.toLua(v))
	})
	t.RawSetString("id", lua.LString(ent.ID()))
	return t
}

func (e *Engine) toLua(v tag.Value) lua.LValue {
	switch v.Kind() {
	case tag.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case tag.KindNumber:
		n, _ := v.AsNumber()
		return lua.LNumber(n)
	case tag.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case tag.KindFormula:
		return lua.LString(v.Text())
	case tag.KindArray:
		arr, _ := v.AsArray()
		t := e.vm.NewTable()
		for _, el := range arr {
			t.Append(e.toLua(el))
		}
		return t
	}
	return lua.LNil
}

func fromLua(lv lua.LValue) tag.Value {
	switch x := lv.(type) {
	case lua.LBool:
		return tag.Bool(bool(x))
	case lua.LNumber:
		return tag.Number(float64(x))
	case lua.LString:
		return tag.String(string(x))
	case *lua.LTable:
		n := x.Len()
		arr := make([]tag.Value, 0, n)
		for i := 1; i <= n; i++ {
			arr = append(arr, fromLua(x.RawGetInt(i)))
		}
		return tag.Array(arr...)
	}
	return tag.Null()
}
