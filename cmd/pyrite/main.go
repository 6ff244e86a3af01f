// Package main implements the pyrite binary. It is the only
// public-facing entry point to pyrite, since its Go packages are all
// internal.
package main

import "github.com/replit/pyrite/internal/cli"

// Main entry point for the pyrite binary.
func main() {
	cli.DoCLI()
}
