package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/kv"
	"github.com/mmynk/splitledger/internal/storage/sqlstore"
	"github.com/mmynk/splitledger/pkg/logging"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "splitledger",
		Short:        "Shared expense ledger",
		Long:         `splitledger records shared expenses and keeps running, netted balances between every pair of users.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(), newExportCmd(), newBalancesCmd())
	return root
}

// loadConfig reads the configuration and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// openStore opens the configured storage backend.
func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlstore.NewSQLite(cfg.Path)
	case config.DriverMySQL:
		return sqlstore.NewMySQL(cfg.DSN)
	case config.DriverBadger:
		kvCfg := kv.DefaultConfig(cfg.Path)
		kvCfg.Logger = slog.Default().With("component", "badger")
		return kv.Open(kvCfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func newSettlement(store storage.Store, cfg config.SettlementConfig) *settlement.Service {
	return settlement.New(store,
		settlement.WithMaxRetries(cfg.MaxRetries),
		settlement.WithRetryDelay(cfg.RetryDelay),
		settlement.WithLogger(slog.Default()),
	)
}
