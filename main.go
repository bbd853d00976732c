package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whoisgate/internal/config"
	"whoisgate/internal/dn42"
	"whoisgate/internal/httpapi"
	"whoisgate/internal/logging"
	"whoisgate/internal/metrics"
	"whoisgate/internal/patch"
	"whoisgate/internal/plugin"
	"whoisgate/internal/registry"
	"whoisgate/internal/request"
	"whoisgate/internal/scheduler"
	"whoisgate/internal/server"
	"whoisgate/internal/services"
	"whoisgate/internal/stats"
	"whoisgate/internal/store"
	"whoisgate/internal/whoisclient"
)

var storeSubdbs = []string{"stats", "patches", "plugin_cache", "dn42_http", "services_cache"}

func main() {
	cfg := config.LoadAndValidate()
	log := logging.New(cfg.LogLevel)

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		log.Error("invalid timeout %q: %v", cfg.Timeout, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("failed to create data dir %s: %v", cfg.DataDir, err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DataDir+"/whoisgate.db", storeSubdbs, log)
	if err != nil {
		log.Error("failed to open store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	statistics := stats.New(st)
	metricsCollector := metrics.NewCollector()
	metricsCollector.Register()

	patchManager := patch.New(st, log)
	if err := patchManager.Load(); err != nil {
		log.Warn("patch load failed: %v", err)
	}

	dn42CacheTTL, err := time.ParseDuration(cfg.DN42.CacheTTL)
	if err != nil {
		dn42CacheTTL = 24 * time.Hour
	}
	dn42Manager := dn42.New(cfg.DN42.Backend, cfg.DN42.RepoURL, cfg.DN42.MirrorPath, cfg.DN42.HTTPBaseURL, dn42CacheTTL, st, log)
	if err := dn42Manager.Refresh(); err != nil {
		log.Warn("initial DN42 refresh failed: %v", err)
	}

	whoisClient := whoisclient.New(cfg.RootUpstream, timeout, dn42Manager, log)

	reg := registry.New()

	pluginManager := plugin.New(cfg.Plugin.Dir, cfg.Plugin.MemoryLimitKiB, cfg.Plugin.WorkerPoolSize, st, log)
	if err := pluginManager.LoadAll(func(suffix, name string) error {
		return reg.RegisterPlugin(suffix, name, func(ctx *registry.Context) (string, error) {
			return pluginManager.Call(name, ctx.Query.Payload)
		})
	}); err != nil {
		log.Warn("plugin load failed: %v", err)
	}
	defer pluginManager.Shutdown()

	deps := services.NewDeps(whoisClient, dn42Manager, patchManager, st, log, cfg.Services.OMDbAPIKey, cfg.Patch.IndexURL)
	deps.RegisterAll(reg)

	processor := &request.Processor{
		Registry: reg,
		Patch:    patchManager,
		Stats:    statistics,
		DN42:     dn42Manager,
		Banner:   "",
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(log)
	dn42RefreshInterval, err := time.ParseDuration(cfg.DN42.RefreshTime)
	if err != nil {
		dn42RefreshInterval = 4 * time.Hour
	}
	sched.Add(scheduler.Job{
		Name:     "dn42-refresh",
		Interval: dn42RefreshInterval,
		Run: func(ctx context.Context) error {
			start := time.Now()
			err := dn42Manager.Refresh()
			metricsCollector.ObserveDN42Refresh(time.Since(start).Seconds())
			return err
		},
	})
	statsFlushInterval, err := time.ParseDuration(cfg.StatsFlush)
	if err != nil {
		statsFlushInterval = 5 * time.Minute
	}
	sched.Add(scheduler.Job{
		Name:     "stats-flush",
		Interval: statsFlushInterval,
		Run: func(ctx context.Context) error {
			return statistics.Flush()
		},
	})
	kvSweepInterval, err := time.ParseDuration(cfg.KVSweep)
	if err != nil {
		kvSweepInterval = 2 * time.Minute
	}
	sched.Add(scheduler.Job{
		Name:     "kv-sweep",
		Interval: kvSweepInterval,
		Run: func(ctx context.Context) error {
			n, err := st.Sweep()
			metricsCollector.AddSwept(n)
			return err
		},
	})
	sched.Start(rootCtx)
	defer sched.Stop()

	tcpServer := server.New(cfg.ListenAddr, timeout, int64(cfg.MaxConnections), cfg.DumpDir, processor, log, metricsCollector)

	errCh := make(chan error, 4)
	go func() {
		errCh <- tcpServer.ListenAndServe(rootCtx)
	}()

	if cfg.SSH.Enabled {
		sshServer, err := server.NewSSHServer(cfg.SSH.ListenAddr, cfg.SSH.HostKeyPath, timeout, processor, log, metricsCollector)
		if err != nil {
			log.Error("failed to start ssh server: %v", err)
		} else {
			go func() {
				errCh <- sshServer.ListenAndServe(rootCtx)
			}()
		}
	}

	if cfg.HTTP.Enabled {
		httpServer := httpapi.New(cfg.HTTP.ListenAddr, statistics, metricsCollector, log)
		go func() {
			errCh <- httpServer.ListenAndServe(rootCtx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Error("server error: %v", err)
		}
	}

	cancel()
	if err := statistics.Flush(); err != nil {
		log.Warn("final stats flush failed: %v", err)
	}
}
