// Package main provides the entry point for the partsync CLI tool.
package main

import (
	"github.com/partsync/partsync/internal/cmd"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
