// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/rhpak/rhpak/internal/config"
	"github.com/rhpak/rhpak/internal/model"
)

// runCLIIn executes the command tree with the given args from dir so no
// operator config leaks into the test.
func runCLIIn(t *testing.T, dir string, args ...string) error {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	return runCLIIn(t, t.TempDir(), args...)
}

func TestVersionCommand(t *testing.T) {
	if err := runCLI(t, "version"); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
}

func TestCheckCommand_MissingManifest(t *testing.T) {
	err := runCLI(t, "check", filepath.Join(t.TempDir(), "absent.json"))
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing manifest, got %v", err)
	}
}

func TestCheckCommand_UnpreparedManifest(t *testing.T) {
	dir := t.TempDir()
	skeleton := filepath.Join(dir, "unprepared.json")
	m := model.Manifest{
		PackID: "99999999-0000-0000-0000-000000000009",
		Name:   "Unprepared",
		Game:   model.Game{Title: "Game"},
	}
	if err := model.SaveManifest(m, skeleton); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	err := runCLI(t, "check", skeleton)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unprepared manifest, got %v", err)
	}
	if ve.Field != "prepared" {
		t.Errorf("field = %s, want prepared", ve.Field)
	}
}

func TestCheckCommand_MissingAttachment(t *testing.T) {
	dir := t.TempDir()
	// Stage the patch and patchblob but not the resource payload.
	for _, rel := range []string{"patch/hack.bps", "blob/pblob_x"} {
		abs := filepath.Join(dir, "stage", filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte("staged"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	m := model.Manifest{
		PackID:       "aaaaaaaa-0000-0000-0000-00000000000a",
		Name:         "Attachment Check",
		SkeletonFile: "skel.json",
		Prepared:     true,
		Game:         model.Game{Title: "Game"},
		Patch: model.PatchArtifact{
			StoragePath: "patch/hack.bps",
			Digests:     model.DigestSet{Length: 6, SHA256: "ab"},
		},
		Blob:       model.PatchBlob{Name: "pblob_x"},
		Attachment: model.Attachment{StoragePath: "blob/pblob_x"},
		Result:     model.VerificationResult{Digests: model.DigestSet{Length: 1, SHA256: "cd"}},
		Resources: []model.MediaEntry{{
			Name:        "notes.txt",
			StoragePath: "resources/notes.txt.enc",
		}},
	}
	skeleton := filepath.Join(dir, "skel.json")
	if err := model.SaveManifest(m, skeleton); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	err := runCLIIn(t, dir, "check", "skel.json")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing attachment, got %v", err)
	}
	if ve.Field != "resources/notes.txt.enc" {
		t.Errorf("field = %s, want resources/notes.txt.enc", ve.Field)
	}
}

func TestPrepareCommand_WrongArgCount(t *testing.T) {
	if err := runCLI(t, "prepare", "only-one-arg.json"); err == nil {
		t.Fatal("expected usage error for missing argument")
	}
}

func TestVerifyOptions_ReappliesByDefault(t *testing.T) {
	prev := cfg
	defer func() { cfg = prev }()
	cfg = config.Config{}
	cfg.Tool.Path = "/usr/bin/flips"

	cmd := &cobra.Command{}
	cmd.Flags().Bool("skip-reapply", false, "")

	if opts := verifyOptions(cmd); opts.Tool == nil {
		t.Fatal("configured tool not used for verification by default")
	}
	if err := cmd.Flags().Set("skip-reapply", "true"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if opts := verifyOptions(cmd); opts.Tool != nil {
		t.Fatal("--skip-reapply did not drop the tool")
	}

	// No tool configured: nothing to reapply with.
	cfg.Tool.Path = ""
	if err := cmd.Flags().Set("skip-reapply", "false"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if opts := verifyOptions(cmd); opts.Tool != nil {
		t.Fatal("verification got a tool without a configured path")
	}
}

func TestToolConfig_MapsConfiguration(t *testing.T) {
	prev := cfg
	defer func() { cfg = prev }()
	cfg.Tool.Path = "/usr/bin/flips"
	cfg.Tool.BaseAsset = "/srv/base.smc"
	cfg.Tool.MinOutput = 100
	cfg.Tool.MaxOutput = 200

	tc := toolConfig()
	if tc.ToolPath != "/usr/bin/flips" || tc.BaseAsset != "/srv/base.smc" {
		t.Errorf("tool config = %+v", tc)
	}
	if tc.MinOutput != 100 || tc.MaxOutput != 200 {
		t.Errorf("size window = %d..%d", tc.MinOutput, tc.MaxOutput)
	}
}
