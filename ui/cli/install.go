// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/i18n"
	"github.com/rhpak/rhpak/internal/install"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/pack"
)

var addCmd = &cobra.Command{
	Use:   "add <skeleton.json>",
	Short: "Install a prepared manifest from the stage directory",
	Long: `Add verifies the staged artifacts against the manifest's recorded
digests and performs the ownership-checked multi-store install. The
registry row is written last; its presence marks the package as fully
installed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.LoadManifest(args[0])
		if err != nil {
			return err
		}
		if err := pack.Verify(cmd.Context(), m, cfg.StageDir, verifyOptions(cmd)); err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		if err := install.Install(cmd.Context(), s, m, cfg.StageDir); err != nil {
			return err
		}
		fmt.Printf("%s: %s (%s)\n", i18n.T("install.done"), m.Name, m.PackID)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <pack-uuid>",
	Aliases: []string{"remove"},
	Short:   "Remove every row tagged with the package UUID",
	Long: `Uninstall needs nothing but the UUID: it deletes every row tagged
with it from every store, the registry row included. Removing zero rows
is success, so the operation is safe to repeat. With --purge, staged
files recorded as pipeline-auto-generated are deleted as well;
author-supplied files are never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		purge, _ := cmd.Flags().GetBool("purge")
		s, err := openStore()
		if err != nil {
			return err
		}
		removed, err := install.Uninstall(cmd.Context(), s, args[0], purge, cfg.StageDir)
		if err != nil {
			return err
		}
		if removed.Total() == 0 {
			fmt.Println(i18n.T("uninstall.nothing"))
			return nil
		}
		fmt.Printf("%s: %d rows\n", i18n.T("uninstall.done"), removed.Total())
		return nil
	},
}

var listInstalledCmd = &cobra.Command{
	Use:   "list-installed",
	Short: "List every package recorded in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		rows, err := s.ListRegistry(cmd.Context())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println(i18n.T("list.empty"))
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UUID\tNAME\tSKELETON\tINSTALLED")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.PackID, r.Name, r.SkeletonFile, r.InstalledAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	addCmd.Flags().Bool("skip-reapply", false, "skip reapplying the patch to the base asset (verifies patch and blob chains only)")
	uninstallCmd.Flags().Bool("purge", false, "also delete pipeline-generated staged files")
	rootCmd.AddCommand(addCmd, uninstallCmd, listInstalledCmd)
}
