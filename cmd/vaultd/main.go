package main

import (
	"fmt"
	"os"
	"time"

	"vault_aggregator/internal/infrastructure/configloader"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "vaultd",
		Short:        "Cross-chain multisig vault balance aggregator",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", configloader.GetEnv("CONFIG_PATH", configloader.DefaultPath), "config file path")
	root.PersistentFlags().String("log-level", "", "override logging.level from the config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE:  runServe,
	}
	root.AddCommand(serveCmd)

	vaultsCmd := &cobra.Command{
		Use:   "vaults",
		Short: "List multichain vaults grouped from the vault store",
		RunE:  runVaults,
	}
	root.AddCommand(vaultsCmd)

	balancesCmd := &cobra.Command{
		Use:   "balances <address>",
		Short: "Aggregate balances of one vault across its chains",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalances,
	}
	balancesCmd.Flags().String("currency", "", "fiat currency (defaults to scheduler.fiatCurrency)")
	balancesCmd.Flags().Duration("timeout", 0, "per-chain timeout (defaults to performance.chainFetchTimeoutMs)")
	balancesCmd.Flags().Bool("retry", true, "retry failed chains once before printing")
	root.AddCommand(balancesCmd)

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import per-chain vault records from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	root.AddCommand(importCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show multichain mode and active pointer status",
		RunE:  runStatus,
	}
	statusCmd.Flags().Bool("reconcile", false, "run start-up reconciliation before reporting")
	root.AddCommand(statusCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
