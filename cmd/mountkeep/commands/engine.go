package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/config"
	"github.com/marmos91/mountkeep/pkg/metrics"
	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/mtab"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
	"github.com/marmos91/mountkeep/pkg/mount/provider"
	"github.com/marmos91/mountkeep/pkg/mount/resolver"
	"github.com/marmos91/mountkeep/pkg/mount/sweeper"
	"github.com/marmos91/mountkeep/pkg/reachability"
	"github.com/marmos91/mountkeep/pkg/registry"
	"github.com/marmos91/mountkeep/pkg/store"
)

// engine bundles everything a command needs to drive mounts: the share
// database, the in-memory registry seeded from it, and the orchestrator
// wired to the real mount table and mount provider.
type engine struct {
	store        *store.GORMStore
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	monitor      *reachability.Monitor
}

// buildEngine assembles the mount engine from configuration.
//
// Shares are loaded from the database into the registry, and every
// registry mutation is written back so the database always reflects the
// registered set. Pass nil metrics for one-shot commands.
func buildEngine(ctx context.Context, cfg *config.Config, m metrics.MountMetrics) (*engine, error) {
	db, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open share database: %w", err)
	}

	reg := registry.New()

	shares, err := db.LoadShares(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}
	for _, share := range shares {
		reg.Add(share)
	}

	reg.SetOnChange(func(shares []*mount.Share) {
		if err := db.SaveShares(context.Background(), shares); err != nil {
			logger.Error("Failed to persist shares", "error", err)
		}
	})

	table := mtab.NewSystemTable()
	res := resolver.New(table)
	prov := provider.NewCLI()

	var sw *sweeper.Sweeper
	if cfg.Mount.CleanupEnabled {
		sw = sweeper.New(table, prov, cfg.Mount.RemoveJunkFiles)
	}

	creds := cfg.CreateCredentialStore()
	prober := reachability.NewTCPProber(cfg.Mount.ProbeTimeout)
	monitor := reachability.NewMonitor(prober, cfg.Mount.ProbeInterval, func() []string {
		var hosts []string
		seen := make(map[string]bool)
		for _, share := range reg.All() {
			host := share.Host()
			if host != "" && !seen[host] {
				seen[host] = true
				hosts = append(hosts, host)
			}
		}
		return hosts
	})

	orch := orchestrator.New(reg, res, sw, prov, creds, monitor, prober, m, orchestrator.Options{
		BaseDir:        cfg.Mount.BaseDir,
		AttemptTimeout: cfg.Mount.AttemptTimeout,
		CleanupEnabled: cfg.Mount.CleanupEnabled,
	})

	return &engine{
		store:        db,
		registry:     reg,
		orchestrator: orch,
		monitor:      monitor,
	}, nil
}

// Close releases the engine's database handle.
func (e *engine) Close() error {
	return e.store.Close()
}

// loadEngine loads configuration and assembles the engine for one-shot
// commands. The caller must Close() the engine.
func loadEngine(ctx context.Context) (*config.Config, *engine, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}

	eng, err := buildEngine(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, eng, nil
}
