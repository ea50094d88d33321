package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vault_aggregator/internal/app/provider"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/domain/rollout"
	"vault_aggregator/internal/infrastructure/vaultloader"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runVaults(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	vaults, err := app.repo.ListMultichainVaults(cmd.Context())
	if err != nil {
		return err
	}
	for _, v := range vaults {
		ids := v.ChainIDs()
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, app.networks.ChainName(id))
		}
		fmt.Printf("%s  %-24s  %s\n", v.Address.Hex(), v.DisplayName, strings.Join(names, ", "))
	}
	return nil
}

func runBalances(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid vault address %q", args[0])
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	vault, err := app.repo.FindMultichainVaultByAddress(ctx, common.HexToAddress(args[0]))
	if err != nil {
		return err
	}
	if vault == nil {
		return fmt.Errorf("no deployments for %s", args[0])
	}

	currency, _ := cmd.Flags().GetString("currency")
	if currency == "" {
		currency = cfg.Scheduler.FiatCurrency
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.ChainFetchTimeout()
	}

	result, err := app.aggregator.LoadAggregatedBalances(ctx, *vault, strings.ToUpper(currency), timeout)
	if err != nil {
		return err
	}
	if retry, _ := cmd.Flags().GetBool("retry"); retry && len(result.FailedChains) > 0 {
		app.log.Info("Retrying failed chains", "chains", result.FailedChainIDs())
		if retried, err := app.aggregator.RetryFailedChains(ctx, *vault, result, timeout); err == nil {
			result = retried
		} else {
			app.log.Warn("Retry failed", "error", err)
		}
	}
	return printJSON(result)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The configured seed file is skipped so only the given file is imported.
	cfg.Database.SeedFile = ""

	app, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	seeder := provider.NewVaultSeeder(func() ([]entity.PerChainVault, error) {
		return vaultloader.LoadVaults(args[0])
	}, app.store, app.log)
	n, err := seeder.Seed(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("imported %d per-chain vault records\n", n)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if reconcile, _ := cmd.Flags().GetBool("reconcile"); reconcile {
		if err := app.coordinator.OnAppStart(cmd.Context()); err != nil {
			return err
		}
	}
	status, err := app.coordinator.GetMigrationStatus(cmd.Context())
	if err != nil {
		return err
	}
	legacy, err := app.store.GetLegacyPointer(cmd.Context())
	if err != nil {
		return err
	}
	active, err := app.repo.GetActiveMultichainVault(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(struct {
		Status          entity.MigrationStatus  `json:"status"`
		LegacyPointer   *entity.LegacyPointer   `json:"legacyPointer,omitempty"`
		ActiveVault     *entity.MultichainVault `json:"activeVault,omitempty"`
		RolloutVisible  bool                    `json:"rolloutVisible"`
		RolloutBucket   int                     `json:"rolloutBucket"`
		InstallationKey string                  `json:"installationSeed"`
	}{status, legacy, active, app.visible, rollout.Bucket(app.seed), app.seed})
}
