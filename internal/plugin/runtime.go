package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

// instance is one loaded plugin: its descriptor and its single,
// long-lived Lua interpreter, per §4.3's "a single embedded-scripting
// interpreter instance is created per plugin at load time."
type instance struct {
	desc *Descriptor
	mu   sync.Mutex // serializes calls into this plugin's one interpreter
	L    *lua.LState
}

// Manager loads plugin bundles from a directory, registers them into
// the registry under their suffix, and dispatches handle_query calls
// on a bounded worker pool so one slow plugin can't starve the rest.
type Manager struct {
	dir            string
	memoryLimitKiB int
	workers        chan struct{}
	store          *store.Store
	log            *logging.Logger

	mu        sync.RWMutex
	instances map[string]*instance // bundle directory name -> instance
}

func New(dir string, memoryLimitKiB, workerPoolSize int, st *store.Store, log *logging.Logger) *Manager {
	return &Manager{
		dir:            dir,
		memoryLimitKiB: memoryLimitKiB,
		workers:        make(chan struct{}, workerPoolSize),
		store:          st,
		log:            log.With("plugin"),
		instances:      make(map[string]*instance),
	}
}

// LoadAll scans dir for plugin bundles. Bundles with invalid
// descriptors or scripts that fail to compile are skipped with a
// logged error rather than aborting the whole load, per §4.3.
// register is called once per successfully loaded plugin so the
// caller can install it into the handler registry.
func (m *Manager) LoadAll(register func(suffix, name string) error) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info("plugin directory %s does not exist, no plugins loaded", m.dir)
			return nil
		}
		return fmt.Errorf("plugin: reading %s: %w", m.dir, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		bundleDir := filepath.Join(m.dir, e.Name())
		if err := m.load(bundleDir); err != nil {
			m.log.Warn("skipping plugin bundle %s: %v", bundleDir, err)
			continue
		}
		tag := m.instances[e.Name()].desc.SuffixTag()
		if err := register(tag, e.Name()); err != nil {
			m.log.Warn("plugin %s: %v", e.Name(), err)
			delete(m.instances, e.Name())
		}
	}
	return nil
}

func (m *Manager) load(bundleDir string) error {
	desc, err := LoadDescriptor(bundleDir)
	if err != nil {
		return err
	}
	if !desc.Enabled {
		return fmt.Errorf("plugin disabled")
	}

	registrySize := m.memoryLimitKiB * 8 // rough slots-per-KiB heuristic
	if registrySize < 256 {
		registrySize = 256
	}
	L := newSandboxedState(registrySize)

	api := &hostAPI{
		name:        desc.Name,
		permissions: desc.Permissions,
		timeout:     time.Duration(desc.TimeoutSeconds) * time.Second,
		env:         loadEnv(desc.envPath),
		store:       m.store,
		log:         m.log,
	}
	api.register(L)

	if err := L.DoFile(desc.entryPath); err != nil {
		L.Close()
		return fmt.Errorf("loading script: %w", err)
	}

	if initFn, ok := L.GetGlobal("init").(*lua.LFunction); ok {
		if err := L.CallByParam(lua.P{Fn: initFn, NRet: 0, Protect: true}); err != nil {
			L.Close()
			return fmt.Errorf("init() failed: %w", err)
		}
	}

	inst := &instance{desc: desc, L: L}
	m.mu.Lock()
	m.instances[filepath.Base(bundleDir)] = inst
	m.mu.Unlock()
	return nil
}

// Call invokes the named plugin's handle_query(payload), bounded by
// its descriptor's timeout_seconds and the shared worker pool.
func (m *Manager) Call(name, payload string) (string, error) {
	m.mu.RLock()
	inst, ok := m.instances[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("plugin: unknown plugin %q", name)
	}

	m.workers <- struct{}{}
	defer func() { <-m.workers }()

	timeout := time.Duration(inst.desc.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		inst.mu.Lock()
		defer inst.mu.Unlock()

		inst.L.SetContext(ctx)
		fn, ok := inst.L.GetGlobal("handle_query").(*lua.LFunction)
		if !ok {
			done <- result{err: fmt.Errorf("plugin %q has no handle_query function", name)}
			return
		}
		if err := inst.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(payload)); err != nil {
			done <- result{err: fmt.Errorf("plugin %q runtime error: %w", name, err)}
			return
		}
		ret := inst.L.Get(-1)
		inst.L.Pop(1)
		done <- result{out: ret.String()}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("plugin %q exceeded its %s timeout", name, timeout)
	}
}

// Shutdown calls cleanup() on every loaded plugin and closes its
// interpreter.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, inst := range m.instances {
		func() {
			inst.mu.Lock()
			defer inst.mu.Unlock()
			if fn, ok := inst.L.GetGlobal("cleanup").(*lua.LFunction); ok {
				_ = inst.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
			}
			inst.L.Close()
		}()
		delete(m.instances, name)
	}
}
