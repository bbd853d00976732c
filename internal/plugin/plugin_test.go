package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

func writeBundle(t *testing.T, dir, suffix, script string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := "name: testplug\nversion: \"1.0\"\nsuffix: \"" + suffix + "\"\nenabled: true\ntimeout_seconds: 2\npermissions:\n  network: false\n  cache_read: false\n  cache_write: false\n"
	if err := os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDescriptorRejectsBadSuffix(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "WEATHER", "function handle_query(p) return p end")
	// Overwrite with a bad suffix to test validation.
	meta := "name: testplug\nversion: \"1.0\"\nsuffix: \"WEATHER\"\nenabled: true\n"
	if err := os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDescriptor(dir); err == nil {
		t.Fatal("expected error for suffix not starting with '-'")
	}
}

func TestLoadDescriptorReadsTimeoutAndSuffix(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "-WEATHER", "function handle_query(p) return p end")
	d, err := LoadDescriptor(dir)
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	if d.TimeoutSeconds != 2 {
		t.Errorf("TimeoutSeconds = %d, want 2", d.TimeoutSeconds)
	}
	if d.SuffixTag() != "WEATHER" {
		t.Errorf("SuffixTag() = %q, want WEATHER", d.SuffixTag())
	}
}

func TestManagerCallEchoPlugin(t *testing.T) {
	pluginsDir := t.TempDir()
	writeBundle(t, filepath.Join(pluginsDir, "echo"), "-ECHO", `
function handle_query(payload)
  return "echo:" .. payload
end
`)

	st, err := store.Open(filepath.Join(t.TempDir(), "p.db"), []string{"plugin_cache"}, logging.New("error"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	m := New(pluginsDir, 1024, 4, st, logging.New("error"))
	registered := map[string]string{}
	err = m.LoadAll(func(suffix, name string) error {
		registered[suffix] = name
		return nil
	})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if registered["ECHO"] != "echo" {
		t.Fatalf("expected ECHO plugin to register, got %v", registered)
	}

	out, err := m.Call("echo", "ping")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "echo:ping" {
		t.Errorf("Call() = %q, want %q", out, "echo:ping")
	}

	m.Shutdown()
}

func TestManagerCallUnknownPlugin(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "p.db"), []string{"plugin_cache"}, logging.New("error"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	m := New(t.TempDir(), 1024, 4, st, logging.New("error"))
	if _, err := m.Call("nope", "x"); err == nil {
		t.Fatal("expected error calling unregistered plugin")
	}
}
