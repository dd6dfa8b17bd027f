// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package patchtool wraps the external patch-application binary (a
// flips-compatible tool). The tool is a black box with one contract:
// apply(patch, baseAsset) -> resultBytes, success meaning exit code
// zero plus an output file inside a plausible size window. Anything
// else is an ExternalToolError and is never retried automatically.
package patchtool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/model"
)

// Config locates the tool and the clean base asset. It is resolved once
// by the caller and injected into the preparer; there is no hidden
// process-wide singleton.
type Config struct {
	// ToolPath is the patch-application binary.
	ToolPath string
	// BaseAsset is the clean reference binary patches apply against.
	BaseAsset string
	// MinOutput and MaxOutput bound the plausible result size in bytes.
	// SNES images land between 256 KiB and 12 MiB; anything outside the
	// window means the tool misfired even if it exited zero.
	MinOutput int64
	MaxOutput int64
	// Timeout bounds the subprocess wait. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 2 * time.Minute

// Default output window for SNES images.
const (
	DefaultMinOutput = 256 << 10
	DefaultMaxOutput = 12 << 20
)

// Validate checks that the tool and base asset exist before any work
// starts.
func (c *Config) Validate() error {
	if c.ToolPath == "" {
		return &model.ValidationError{Field: "tool.path", Reason: "no patch tool configured"}
	}
	if _, err := os.Stat(c.ToolPath); err != nil {
		return &model.ValidationError{Field: "tool.path", Reason: fmt.Sprintf("patch tool not found at %s", c.ToolPath)}
	}
	if c.BaseAsset == "" {
		return &model.ValidationError{Field: "tool.base_asset", Reason: "no base asset configured"}
	}
	if _, err := os.Stat(c.BaseAsset); err != nil {
		return &model.ValidationError{Field: "tool.base_asset", Reason: fmt.Sprintf("base asset not found at %s", c.BaseAsset)}
	}
	return nil
}

func (c *Config) window() (int64, int64) {
	lo, hi := c.MinOutput, c.MaxOutput
	if lo == 0 {
		lo = DefaultMinOutput
	}
	if hi == 0 {
		hi = DefaultMaxOutput
	}
	return lo, hi
}

// Apply runs the tool against the staged patch and returns the result
// bytes. The output goes to a scratch file that is always removed; only
// the bytes travel onward.
func (c *Config) Apply(ctx context.Context, patchPath string) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outDir, err := os.MkdirTemp("", "rhpak-apply-")
	if err != nil {
		return nil, fmt.Errorf("failed to create tool scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()
	outPath := filepath.Join(outDir, "result"+filepath.Ext(c.BaseAsset))

	cmd := exec.CommandContext(ctx, c.ToolPath, "--apply", patchPath, c.BaseAsset, outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		if ctx.Err() != nil {
			detail = fmt.Sprintf("timed out after %s", timeout)
		}
		return nil, &model.ExternalToolError{Tool: filepath.Base(c.ToolPath), ExitCode: exitCode, Detail: detail}
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &model.ExternalToolError{Tool: filepath.Base(c.ToolPath), ExitCode: 0, Detail: fmt.Sprintf("tool exited clean but produced no output: %v", err)}
	}
	lo, hi := c.window()
	if n := int64(len(result)); n < lo || n > hi {
		return nil, &model.ExternalToolError{
			Tool:     filepath.Base(c.ToolPath),
			ExitCode: 0,
			Detail:   fmt.Sprintf("implausible output size %d bytes (window %d..%d)", n, lo, hi),
		}
	}
	logging.Debugf("patchtool: applied %s, result %d bytes", filepath.Base(patchPath), len(result))
	return result, nil
}
