package plugin

import (
	lua "github.com/yuin/gopher-lua"
)

// newSandboxedState builds a Lua state with every dangerous capability
// removed before any plugin code runs, per §4.3: no file I/O, no
// process spawning, no dynamic code loading, no native library
// loading. Only the base, table, string, and math libraries are
// opened; io, os, debug, and package (which provides require/
// loadlib) are never registered.
func newSandboxedState(registrySize int) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		RegistrySize:        registrySize,
		RegistryMaxSize:     registrySize * 4,
		CallStackSize:       256,
		IncludeGoStackTrace: false,
	})

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

	// Base library registers a handful of globals the sandbox doesn't
	// want even though it doesn't touch the filesystem: dofile/
	// loadfile can still read arbitrary paths, and load/loadstring let
	// a plugin synthesize new code at runtime.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}

	return L
}
