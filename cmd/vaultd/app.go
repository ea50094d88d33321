package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/app/provider"
	"vault_aggregator/internal/app/service"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/domain/rollout"
	"vault_aggregator/internal/infrastructure/configloader"
	"vault_aggregator/internal/infrastructure/httpclient"
	"vault_aggregator/internal/infrastructure/metrics"
	clientprovider "vault_aggregator/internal/infrastructure/network/client"
	networkdefinition "vault_aggregator/internal/infrastructure/network/definition"
	"vault_aggregator/internal/infrastructure/tokenloader"
	"vault_aggregator/internal/infrastructure/vaultloader"
	"vault_aggregator/internal/infrastructure/vaultstore/memory"
	"vault_aggregator/internal/infrastructure/vaultstore/postgres"
	"vault_aggregator/internal/infrastructure/vaultstore/sqlite"
	"vault_aggregator/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type vaultStore interface {
	port.VaultStore
	port.VaultImporter
}

// application holds every wired component.
type application struct {
	cfg         *configloader.Config
	zap         *zap.Logger
	log         port.Logger
	store       vaultStore
	repo        *service.VaultRepositoryImpl
	networks    *networkdefinition.NetworkDefinitionProvider
	clients     *clientprovider.EVMClientProvider
	aggregator  *service.CachedAggregator
	coordinator *service.MigrationCoordinatorImpl
	registry    *prometheus.Registry
	features    rollout.Gate
	buildKind   rollout.BuildKind
	seed        string
	visible     bool

	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.zap.Sync()
}

func loadConfig(cmd *cobra.Command) (*configloader.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := configloader.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// buildApp wires the engine from cfg. Callers must Close the result.
func buildApp(ctx context.Context, cfg *configloader.Config) (*application, error) {
	zl, err := logger.Init(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	appLogger := logger.NewSlogAdapter()
	app := &application{cfg: cfg, zap: zl, log: appLogger}

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.store = store
	app.closers = append(app.closers, closeStore)
	appLogger.Info("Vault store opened", "driver", cfg.Database.Driver)

	if cfg.Database.SeedFile != "" {
		seeder := provider.NewVaultSeeder(func() ([]entity.PerChainVault, error) {
			return vaultloader.LoadVaults(cfg.Database.SeedFile)
		}, store, appLogger)
		if _, err := seeder.Seed(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.MustNewRecorder(app.registry)

	app.networks = networkdefinition.NewNetworkDefinitionProvider(appLogger, cfg.Networks)

	tokenProvider := provider.NewTokenProvider(tokenloader.NewTokenLoader(cfg.Tokens.Dir, appLogger), appLogger)
	tokens, err := tokenProvider.GetTokensByNetwork(app.networks.GetAllNetworkDefinitions())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	prices := httpclient.NewCoinGeckoClient(
		cfg.CoinGecko.BaseURL,
		cfg.CoinGecko.APIKey,
		time.Duration(cfg.CoinGecko.RequestTimeoutMillis)*time.Millisecond,
		seconds(cfg.CoinGecko.CacheTTLSeconds),
		zl,
	)

	app.clients = clientprovider.NewEVMClientProvider(clientprovider.EVMClientOptions{
		ConnectionTimeout: seconds(cfg.Performance.RPCConnectTimeoutSeconds),
		RPCCallTimeout:    seconds(cfg.Performance.RPCCallTimeoutSeconds),
		RateLimit:         cfg.Performance.RateLimit,
		BurstLimit:        cfg.Performance.BurstLimit,
		MaxBatchSize:      cfg.Performance.MaxAddressesPerBatchCall,
	}, appLogger)
	app.closers = append(app.closers, app.clients.Close)

	balanceClient := clientprovider.NewVaultBalanceClient(app.networks, app.clients, tokens, prices, appLogger)
	aggregator := service.NewBalanceAggregationService(balanceClient, app.networks, recorder, appLogger)
	app.aggregator = service.NewCachedAggregator(
		aggregator,
		minutes(cfg.Cache.DefaultExpirationMinutes),
		minutes(cfg.Cache.CleanupIntervalMinutes),
		appLogger,
	)

	app.repo = service.NewVaultRepository(store, appLogger)

	app.features = rollout.Gate{
		UserToggle:                  cfg.Rollout.UserToggle,
		RolloutPercent:              cfg.Rollout.RolloutPercent,
		InternalBuildsBypassPercent: cfg.Rollout.InternalBuildsBypassPercent,
	}
	app.buildKind = rollout.ParseBuildKind(cfg.Rollout.BuildKind)
	app.seed = installationSeed(cfg.Rollout.InstallationSeed)
	app.visible = app.features.IsMultichainVisible(app.seed, app.buildKind, cfg.Rollout.StabilityFlag)
	appLogger.Info("Multichain rollout evaluated",
		"visible", app.visible,
		"build_kind", app.buildKind,
		"bucket", rollout.Bucket(app.seed),
		"rollout_percent", cfg.Rollout.RolloutPercent,
	)

	app.coordinator = service.NewMigrationCoordinator(store, app.repo, app.visible, recorder, appLogger)
	return app, nil
}

func openStore(ctx context.Context, db configloader.DBConfig) (vaultStore, func(), error) {
	switch db.Driver {
	case "memory":
		return memory.NewStore(), func() {}, nil
	case "sqlite":
		if dir := filepath.Dir(db.Path); dir != "." && db.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		s, err := sqlite.Open(ctx, db.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.NewStore(ctx, db.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// installationSeed falls back to the host name so the rollout bucket stays
// stable across restarts.
func installationSeed(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "vaultd"
}
