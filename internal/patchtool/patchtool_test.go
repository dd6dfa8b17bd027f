package patchtool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rhpak/rhpak/internal/model"
)

// writeScript drops an executable stand-in for the patch tool. The
// real tool contract is apply(patch, base) -> out via
// `tool --apply patch base out`.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeflips")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write fake tool: %v", err)
	}
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestApply_Success(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "hack.bps", []byte("patchdata"))
	base := writeFile(t, dir, "base.smc", []byte("basebytes"))
	// Concatenate base and patch as the "applied" result.
	tool := writeScript(t, `cat "$3" "$2" > "$4"`)

	cfg := &Config{ToolPath: tool, BaseAsset: base, MinOutput: 1, MaxOutput: 1 << 20}
	out, err := cfg.Apply(context.Background(), patch)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if string(out) != "basebytespatchdata" {
		t.Errorf("unexpected result bytes: %q", out)
	}
}

func TestApply_NonzeroExit(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "hack.bps", []byte("p"))
	base := writeFile(t, dir, "base.smc", []byte("b"))
	tool := writeScript(t, `echo "patch does not fit" >&2; exit 3`)

	cfg := &Config{ToolPath: tool, BaseAsset: base, MinOutput: 1, MaxOutput: 1 << 20}
	_, err := cfg.Apply(context.Background(), patch)
	var te *model.ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ExternalToolError, got %v", err)
	}
	if te.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", te.ExitCode)
	}
}

func TestApply_ImplausibleOutputSize(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "hack.bps", []byte("p"))
	base := writeFile(t, dir, "base.smc", []byte("b"))
	tool := writeScript(t, `printf tiny > "$4"`)

	cfg := &Config{ToolPath: tool, BaseAsset: base, MinOutput: 1024, MaxOutput: 1 << 20}
	_, err := cfg.Apply(context.Background(), patch)
	var te *model.ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ExternalToolError for tiny output, got %v", err)
	}
	if te.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0 (tool succeeded, size was implausible)", te.ExitCode)
	}
}

func TestApply_NoOutputFile(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "hack.bps", []byte("p"))
	base := writeFile(t, dir, "base.smc", []byte("b"))
	tool := writeScript(t, `exit 0`)

	cfg := &Config{ToolPath: tool, BaseAsset: base, MinOutput: 1, MaxOutput: 1 << 20}
	_, err := cfg.Apply(context.Background(), patch)
	var te *model.ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ExternalToolError for missing output, got %v", err)
	}
}

func TestValidate_MissingTool(t *testing.T) {
	cfg := &Config{ToolPath: "/nonexistent/flips", BaseAsset: "/nonexistent/base.smc"}
	err := cfg.Validate()
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
