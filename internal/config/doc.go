// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the operator configuration from rhpak.yaml,
// environment variables (RHPAK_*), and bound CLI flags, in ascending
// precedence.
package config
