// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/config"
	"github.com/rhpak/rhpak/internal/i18n"
	"github.com/rhpak/rhpak/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database operations",
}

var dbMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run engine-specific maintenance on the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.RunDBMaintenance(cfg.DB.Type, cfg.DB.DSN); err != nil {
			return err
		}
		fmt.Println(i18n.T("db.maintained"))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration operations",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the user config location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetBool("system")
		if err := config.WriteConfigFile(&cfg, system); err != nil {
			return err
		}
		fmt.Println(i18n.T("config.written"))
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("system", false, "write to the system-wide location instead of the user one")
	dbCmd.AddCommand(dbMaintainCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(dbCmd, configCmd)
}
