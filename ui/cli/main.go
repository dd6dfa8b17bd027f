// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli is the cobra command tree for the rhpak pipeline. Every
// command exits zero on success and nonzero with a human-readable
// message on any validation or integrity failure.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/config"
	"github.com/rhpak/rhpak/internal/i18n"
	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/pack"
	"github.com/rhpak/rhpak/internal/patchtool"
	"github.com/rhpak/rhpak/internal/prepare"
	"github.com/rhpak/rhpak/internal/safety"
	"github.com/rhpak/rhpak/internal/store"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rhpak",
	Short: "Prepare, seal, verify, install and uninstall ROM hack packages",
	Long: `rhpak is a content-addressed package pipeline for ROM hack
distributions: it stages a binary patch, derives its verification
artifacts, seals everything into a distributable archive, and performs
ownership-checked installs into the metadata stores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cmd, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logging.SetDebug(cfg.Debug)
		lang, _ := cmd.Flags().GetString("lang")
		if lang == "" {
			lang = os.Getenv("LANG")
		}
		i18n.Init(lang)
		return nil
	},
}

// Execute runs the CLI and returns the first error encountered.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to rhpak.yaml")
	rootCmd.PersistentFlags().String("lang", "", "message language (en, de)")
	rootCmd.PersistentFlags().String("db.type", "", "database backend (sqlite, postgres, mysql)")
	rootCmd.PersistentFlags().String("db.dsn", "", "database DSN")
	rootCmd.PersistentFlags().String("stage_dir", "", "stage directory for prepared artifacts")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

// openStore returns the process-wide store, initializing it from the
// configured backend on first use. The handle stays open for the life
// of the process; every command in one invocation shares it.
func openStore() (store.Store, error) {
	if !store.IsInitialized() {
		if err := store.InitDB(cfg.DB.Type, cfg.DB.DSN); err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.DB.Type, err)
		}
	}
	return store.Default(), nil
}

// toolConfig builds the external tool configuration from cfg. It is
// resolved here once and injected; the pipeline has no hidden
// singleton for tool discovery.
func toolConfig() *patchtool.Config {
	return &patchtool.Config{
		ToolPath:  cfg.Tool.Path,
		BaseAsset: cfg.Tool.BaseAsset,
		MinOutput: cfg.Tool.MinOutput,
		MaxOutput: cfg.Tool.MaxOutput,
	}
}

// newFilter builds the safety filter, merging in the verification
// result digests of everything already installed when a store is
// reachable. A store that cannot be opened is not fatal for
// store-free operations; the seed blocklist still applies.
func newFilter() *safety.Filter {
	s, err := openStore()
	if err != nil {
		logging.Debugf("cli: filter running on seed blocklist only: %v", err)
		return safety.New(nil)
	}
	digests, err := s.ListResultDigests(rootCmd.Context())
	if err != nil {
		logging.Warnf("cli: could not load recorded result digests: %v", err)
		return safety.New(nil)
	}
	return safety.New(digests)
}

// verifyOptions builds the verification options for verify-package,
// import and add: the safety filter plus the configured patch tool, so
// the applied-result digest chain is checked by default. --skip-reapply
// drops the tool for machines that hold no base asset.
func verifyOptions(cmd *cobra.Command) pack.VerifyOptions {
	opts := pack.VerifyOptions{Filter: newFilter()}
	skip, _ := cmd.Flags().GetBool("skip-reapply")
	if !skip && cfg.Tool.Path != "" {
		opts.Tool = toolConfig()
	}
	return opts
}

func newPreparer() *prepare.Preparer {
	return &prepare.Preparer{
		Tool:     toolConfig(),
		Filter:   newFilter(),
		Weights:  prepare.DefaultWeights(),
		StageDir: cfg.StageDir,
	}
}
