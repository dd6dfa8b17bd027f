// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "fmt"

// The pipeline reports failures through a small closed set of typed
// errors so callers can match on the failure kind with errors.As. Every
// error crosses package boundaries unmodified; there is no partial
// success within a single package operation.

// ValidationError reports a missing required manifest field or a
// referenced file that does not exist. Nothing has been mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IntegrityError reports a digest mismatch at any layer. It names the
// manifest field and algorithm so the operator can see exactly which
// link of the chain broke. Fatal; nothing has been mutated.
type IntegrityError struct {
	Field     string
	Algorithm string
	Want      string
	Got       string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure on %s (%s): recorded %s, computed %s",
		e.Field, e.Algorithm, e.Want, e.Got)
}

// SafetyViolation reports a buffer rejected by the content safety
// filter, either by extension or by blocklisted digest. Raised before
// any compression or encryption work begins.
type SafetyViolation struct {
	Name   string
	Reason string
}

func (e *SafetyViolation) Error() string {
	return fmt.Sprintf("content safety violation in %q: %s", e.Name, e.Reason)
}

// OwnershipConflict reports an upsert against a row owned by a different
// package. No writes have been made to the affected store.
type OwnershipConflict struct {
	Store     string
	Key       string
	Owner     string
	Requested string
}

func (e *OwnershipConflict) Error() string {
	return fmt.Sprintf("ownership conflict in %s store on key %q: owned by %s, requested by %s",
		e.Store, e.Key, e.Owner, e.Requested)
}

// ExternalToolError reports a patch-application subprocess failure: a
// nonzero exit status or an output outside the plausible size window.
// Never retried automatically; the operator must fix inputs and rerun.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Detail   string
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool %s failed (exit %d): %s", e.Tool, e.ExitCode, e.Detail)
}
