// Package plugin implements C3: a sandboxed Lua plugin runtime. Each
// plugin directory bundles a YAML descriptor and a Lua entry script;
// the host removes every dangerous capability from the interpreter
// before running plugin code and exposes only a small, permission-
// gated API.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Permissions is a plugin's declared sandbox grant, per §3.
type Permissions struct {
	Network        bool     `yaml:"network"`
	AllowedDomains []string `yaml:"allowed_domains"`
	CacheRead      bool     `yaml:"cache_read"`
	CacheWrite     bool     `yaml:"cache_write"`
	UserAgent      string   `yaml:"user_agent"`
	EnvVars        []string `yaml:"env_vars"`
}

// Descriptor is a plugin's "meta" file, per §3.
type Descriptor struct {
	Name           string      `yaml:"name"`
	Version        string      `yaml:"version"`
	Suffix         string      `yaml:"suffix"`
	Enabled        bool        `yaml:"enabled"`
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	Permissions    Permissions `yaml:"permissions"`

	dir       string // the plugin's bundle directory, set by LoadDescriptor
	entryPath string
	envPath   string
}

// LoadDescriptor reads dir/meta.yaml and validates it against §3's
// invariants: the suffix starts with '-', and timeout_seconds >= 1
// (defaulted to 5 when zero, per §4.3).
func LoadDescriptor(dir string) (*Descriptor, error) {
	metaPath := filepath.Join(dir, "meta.yaml")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("plugin: reading %s: %w", metaPath, err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("plugin: parsing %s: %w", metaPath, err)
	}
	if !strings.HasPrefix(d.Suffix, "-") {
		return nil, fmt.Errorf("plugin: %s: suffix %q must start with '-'", dir, d.Suffix)
	}
	if d.TimeoutSeconds == 0 {
		d.TimeoutSeconds = 5
	}
	if d.TimeoutSeconds < 1 {
		return nil, fmt.Errorf("plugin: %s: timeout_seconds must be >= 1", dir)
	}

	d.dir = dir
	d.entryPath = filepath.Join(dir, "init.lua")
	d.envPath = filepath.Join(dir, "env")
	if _, err := os.Stat(d.entryPath); err != nil {
		return nil, fmt.Errorf("plugin: %s: missing entry script init.lua: %w", dir, err)
	}

	return &d, nil
}

// SuffixTag returns the suffix without its leading '-', uppercased,
// for registration with the classifier/registry.
func (d *Descriptor) SuffixTag() string {
	return strings.ToUpper(strings.TrimPrefix(d.Suffix, "-"))
}

// loadEnv parses the plugin-private "KEY=VALUE" env file, per §6's
// "Environment file" format: comments with '#', values MAY be quoted.
func loadEnv(path string) map[string]string {
	env := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		return env
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])
		value = strings.Trim(value, `"'`)
		env[key] = value
	}
	return env
}
