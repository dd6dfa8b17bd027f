// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/buildvars"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rhpak version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildvars.VersionOrDefault("dev"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
