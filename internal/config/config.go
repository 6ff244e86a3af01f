// Package config contains global variables that are set according to
// the command line, plus the global configuration store that lives in
// the app directory.
package config

// Quiet is true if --quiet was passed on the command line.
var Quiet bool

// Verbose is true if --verbose was passed on the command line.
var Verbose bool
