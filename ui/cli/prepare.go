// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/i18n"
	"github.com/rhpak/rhpak/internal/model"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <skeleton.json> <patch-or-zip>",
	Short: "Stage a patch, fix its digests, and encode the patchblob",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		skeletonPath, sourcePath := args[0], args[1]
		m, err := model.LoadManifest(skeletonPath)
		if err != nil {
			return err
		}
		if m.PackID == "" {
			m.PackID = uuid.NewString()
		}
		p := newPreparer()
		prepared, err := p.Prepare(cmd.Context(), m, sourcePath)
		if err != nil {
			return err
		}
		if err := model.SaveManifest(prepared, skeletonPath); err != nil {
			return err
		}
		fmt.Printf("%s: %s (%s)\n", i18n.T("prepare.done"), prepared.Name, prepared.PackID)
		return nil
	},
}

var attachResourceCmd = &cobra.Command{
	Use:   "attach-resource <skeleton.json> <file>",
	Short: "Encrypt and stage a resource attachment",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttach(false),
}

var attachScreenshotCmd = &cobra.Command{
	Use:   "attach-screenshot <skeleton.json> <file>",
	Short: "Encrypt and stage a screenshot attachment",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttach(true),
}

func runAttach(screenshot bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		skeletonPath, filePath := args[0], args[1]
		auto, _ := cmd.Flags().GetBool("auto-generated")
		m, err := model.LoadManifest(skeletonPath)
		if err != nil {
			return err
		}
		p := newPreparer()
		if screenshot {
			m, err = p.AttachScreenshot(m, filePath, auto)
		} else {
			m, err = p.AttachResource(m, filePath, auto)
		}
		if err != nil {
			return err
		}
		if err := model.SaveManifest(m, skeletonPath); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", i18n.T("prepare.staged"), filepath.Base(filePath))
		return nil
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <skeleton.json>",
	Short: "Validate a manifest and its staged files without touching stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.LoadManifest(args[0])
		if err != nil {
			return err
		}
		if err := m.ValidatePrepared(); err != nil {
			return err
		}
		// Referenced staged files must exist, attachments included;
		// digests are verified by verify-package, which reads the bytes
		// anyway.
		paths := []string{m.Patch.StoragePath, m.Attachment.StoragePath}
		for _, e := range append(append([]model.MediaEntry(nil), m.Resources...), m.Screenshots...) {
			if e.FileBacked() {
				paths = append(paths, e.StoragePath)
			}
		}
		for _, rel := range paths {
			if _, err := os.Stat(filepath.Join(cfg.StageDir, filepath.FromSlash(rel))); err != nil {
				return &model.ValidationError{Field: rel, Reason: "staged file missing"}
			}
		}
		fmt.Println(i18n.T("check.ok"))
		return nil
	},
}

func init() {
	attachResourceCmd.Flags().Bool("auto-generated", false, "mark the entry as pipeline-generated (eligible for purge)")
	attachScreenshotCmd.Flags().Bool("auto-generated", false, "mark the entry as pipeline-generated (eligible for purge)")
	rootCmd.AddCommand(prepareCmd, attachResourceCmd, attachScreenshotCmd, checkCmd)
}
