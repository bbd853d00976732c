// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath     = "configs/config.yaml"
	DefaultListenAddr     = ":43"
	DefaultTimeout        = "10s"
	DefaultMaxConnections = 512
	DefaultLogLevel       = "info"
	DefaultDataDir        = "./data"
	DefaultDN42Refresh    = "4h"
	DefaultStatsFlush     = "5m"
	DefaultKVSweep        = "2m"
	DefaultPluginTimeout  = 5
)

// UpstreamConfig describes a single WHOIS upstream server.
type UpstreamConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DN42Config controls the DN42 registry mirror.
type DN42Config struct {
	Backend     string `yaml:"backend"` // "git" or "http"
	RepoURL     string `yaml:"repo_url"`
	MirrorPath  string `yaml:"mirror_path"`
	HTTPBaseURL string `yaml:"http_base_url"`
	RefreshTime string `yaml:"refresh_time"`
	CacheTTL    string `yaml:"cache_ttl"`
}

// PatchConfig controls the response-patch engine's remote update source.
type PatchConfig struct {
	IndexURL string `yaml:"index_url"`
}

// PluginConfig controls the sandboxed plugin runtime.
type PluginConfig struct {
	Dir            string `yaml:"dir"`
	DefaultTimeout int    `yaml:"default_timeout_seconds"`
	MemoryLimitKiB int    `yaml:"memory_limit_kib"`
	WorkerPoolSize int    `yaml:"worker_pool_size"`
}

// SSHConfig controls the SSH REPL surface.
type SSHConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ListenAddr  string `yaml:"listen_addr"`
	HostKeyPath string `yaml:"host_key_path"`
}

// HTTPConfig controls the secondary HTTP status/query surface.
type HTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// ServicesConfig carries the optional third-party API credentials
// used by a handful of -SUFFIX handlers in internal/services.
type ServicesConfig struct {
	OMDbAPIKey string `yaml:"omdb_api_key"`
}

// Config is the top-level gateway configuration.
type Config struct {
	ListenAddr     string           `yaml:"listen_addr"`
	Timeout        string           `yaml:"timeout"`
	MaxConnections int              `yaml:"max_connections"`
	DumpDir        string           `yaml:"dump_dir"`
	DataDir        string           `yaml:"data_dir"`
	LogLevel       string           `yaml:"log_level"`
	Upstreams      []UpstreamConfig `yaml:"upstreams"`
	RootUpstream   string           `yaml:"root_upstream"`
	DN42           DN42Config       `yaml:"dn42"`
	Patch          PatchConfig      `yaml:"patch"`
	Plugin         PluginConfig     `yaml:"plugin"`
	SSH            SSHConfig        `yaml:"ssh"`
	HTTP           HTTPConfig       `yaml:"http"`
	Services       ServicesConfig   `yaml:"services"`
	StatsFlush     string           `yaml:"stats_flush_interval"`
	KVSweep        string           `yaml:"kv_sweep_interval"`
}

// Load reads and parses a YAML config file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Timeout == "" {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RootUpstream == "" {
		cfg.RootUpstream = "whois.iana.org"
	}
	if cfg.DN42.Backend == "" {
		cfg.DN42.Backend = "git"
	}
	if cfg.DN42.MirrorPath == "" {
		cfg.DN42.MirrorPath = cfg.DataDir + "/dn42-mirror"
	}
	if cfg.DN42.RefreshTime == "" {
		cfg.DN42.RefreshTime = DefaultDN42Refresh
	}
	if cfg.DN42.CacheTTL == "" {
		cfg.DN42.CacheTTL = "24h"
	}
	if cfg.Plugin.Dir == "" {
		cfg.Plugin.Dir = "plugins"
	}
	if cfg.Plugin.DefaultTimeout == 0 {
		cfg.Plugin.DefaultTimeout = DefaultPluginTimeout
	}
	if cfg.Plugin.MemoryLimitKiB == 0 {
		cfg.Plugin.MemoryLimitKiB = 10 * 1024
	}
	if cfg.Plugin.WorkerPoolSize == 0 {
		cfg.Plugin.WorkerPoolSize = 16
	}
	if cfg.StatsFlush == "" {
		cfg.StatsFlush = DefaultStatsFlush
	}
	if cfg.KVSweep == "" {
		cfg.KVSweep = DefaultKVSweep
	}
}

// Validate checks that the config is internally consistent.
func Validate(cfg *Config) error {
	if _, err := time.ParseDuration(cfg.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if len(cfg.Upstreams) == 0 {
		return fmt.Errorf("no upstream servers configured")
	}
	if cfg.DN42.Backend != "git" && cfg.DN42.Backend != "http" {
		return fmt.Errorf("dn42.backend must be 'git' or 'http'")
	}
	return nil
}

// LoadAndValidate loads the config named by the -c flag, exiting the
// process on failure, mirroring the teacher's LoadAndValidateConfig.
func LoadAndValidate() *Config {
	configPath := flag.String("c", DefaultConfigPath, "Path to config file")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}
	return cfg
}
