package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoPolymarket/attestgate/internal/config"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	appCfg   *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "attestgate",
	Short:         "Trade attestation agents, trade store and attestation sink",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appCfg != nil {
			return nil
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger.Init(cfg.Log.Level)
		appCfg = cfg
		return nil
	},
}

// Execute runs the root command until it returns or the process receives
// SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(attestCmd)
	rootCmd.AddCommand(tradeCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(sinkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
}

func getConfig() *config.Config {
	if appCfg == nil {
		panic("configuration not loaded; PersistentPreRunE not executed")
	}
	return appCfg
}
