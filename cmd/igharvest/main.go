// Package main provides the igharvest CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igharvest/internal/app"
	"igharvest/internal/config"
	"igharvest/internal/harvest"
	"igharvest/internal/logging"
	"igharvest/internal/store/sqlite"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:     "igharvest",
		Short:   "Harvest Instagram interactions of learning activities",
		Long:    "igharvest collects posts, comments, likes and mentions of the accounts linked to an activity and computes engagement KPIs.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("igharvest version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "./igharvest.yaml", "path to config file")

	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newHarvestCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newKPIsCmd(opts))
	rootCmd.AddCommand(newReportCmd(opts))
	rootCmd.AddCommand(newActivityCmd(opts))
	rootCmd.AddCommand(newTokensCmd(opts))
	rootCmd.AddCommand(newLinkCmd(opts))
	rootCmd.AddCommand(newCohortCmd(opts))
	rootCmd.AddCommand(newDeleteCmd(opts))
	return rootCmd
}

// load reads .env and the config file, then installs the logger.
func (o *options) load() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg
	return logging.Init(cfg.Logging.Level, cfg.Logging.Pretty)
}

// withApp builds the container and hands the wired harvester and store to fn.
func (o *options) withApp(fn func(h *harvest.Harvester, st *sqlite.Store) error) error {
	defer logging.Sync()
	c, err := app.BuildContainer(o.cfg)
	if err != nil {
		return err
	}
	return c.Invoke(func(h *harvest.Harvester, st *sqlite.Store) error {
		defer st.Close()
		return fn(h, st)
	})
}

// withStore is withApp for commands that only touch storage.
func (o *options) withStore(fn func(st *sqlite.Store) error) error {
	return o.withApp(func(_ *harvest.Harvester, st *sqlite.Store) error { return fn(st) })
}
