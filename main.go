// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for rhpak.
//
// Usage:
//
//	go run . [flags]
//	./rhpak [flags]
//
// This launches the rhpak CLI. See --help for options.
package main

import (
	"fmt"
	"os"

	"github.com/rhpak/rhpak/ui/cli"
)

// version is set at build time using -ldflags, e.g.:
// go build -ldflags "-X main.version=1.2.3"
var version = "dev"

func main() {
	if os.Getenv("RHPAK_SHOW_VERSION") == "1" {
		fmt.Fprintf(os.Stderr, "rhpak version: %s\n", version)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
