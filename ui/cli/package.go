// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/i18n"
	"github.com/rhpak/rhpak/internal/install"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/pack"
)

var packageCmd = &cobra.Command{
	Use:   "package <skeleton.json> [output.rhpak]",
	Short: "Seal the manifest and staged artifacts into one archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.LoadManifest(args[0])
		if err != nil {
			return err
		}
		outPath := strings.TrimSuffix(args[0], ".json") + pack.Extension
		if len(args) == 2 {
			outPath = args[1]
		}
		if err := pack.Build(m, cfg.StageDir, outPath); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", i18n.T("package.sealed"), outPath)
		return nil
	},
}

var verifyPackageCmd = &cobra.Command{
	Use:   "verify-package <archive.rhpak>",
	Short: "Extract to scratch, recompute every digest chain, report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := pack.VerifyArchive(cmd.Context(), args[0], verifyOptions(cmd), nil); err != nil {
			return err
		}
		fmt.Println(i18n.T("package.verified"))
		return nil
	},
}

var extractPackageCmd = &cobra.Command{
	Use:   "extract-package <archive.rhpak> <dest-dir>",
	Short: "Unpack an archive without verification or install",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pack.Extract(args[0], args[1])
	},
}

var importCmd = &cobra.Command{
	Use:   "import <archive.rhpak>",
	Short: "Verify an archive and install it in one step",
	Long: `Import extracts the archive to a scratch area, recomputes every
digest chain, re-runs the content safety filter, and only then feeds
the scratch area into the install transaction. The scratch area is
discarded afterwards; no artifact files are left outside the stores.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}

		m, err := pack.VerifyArchive(cmd.Context(), args[0], verifyOptions(cmd), func(m model.Manifest, scratch string) error {
			return install.Install(cmd.Context(), s, m, scratch)
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%s)\n", i18n.T("import.done"), m.Name, m.PackID)
		return nil
	},
}

func init() {
	verifyPackageCmd.Flags().Bool("skip-reapply", false, "skip reapplying the patch to the base asset (verifies patch and blob chains only)")
	importCmd.Flags().Bool("skip-reapply", false, "skip reapplying the patch to the base asset (verifies patch and blob chains only)")
	rootCmd.AddCommand(packageCmd, verifyPackageCmd, extractPackageCmd, importCmd)
}
