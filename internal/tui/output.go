// Package tui holds the output channel shared by every provisioning
// step: the tri-state command output mode, the process-wide echo
// state and a byte progress bar for downloads.
package tui

// CommandOutput controls how much a step prints and which flags are
// passed to spawned helpers.
type CommandOutput int

const (
	// Normal prints one status line per step.
	Normal CommandOutput = iota
	// Verbose additionally prints URLs, target directories and
	// helper command lines.
	Verbose
	// Quiet prints nothing but hard errors.
	Quiet
)

// OutputFromFlags maps the --verbose/--quiet command line flags onto
// a CommandOutput. Quiet wins when both are given.
func OutputFromFlags(quiet, verbose bool) CommandOutput {
	switch {
	case quiet:
		return Quiet
	case verbose:
		return Verbose
	default:
		return Normal
	}
}

func (o CommandOutput) String() string {
	switch o {
	case Verbose:
		return "verbose"
	case Quiet:
		return "quiet"
	default:
		return "normal"
	}
}

// IsQuiet reports whether informational output is suppressed.
func (o CommandOutput) IsQuiet() bool {
	return o == Quiet
}

// IsVerbose reports whether diagnostic output is enabled.
func (o CommandOutput) IsVerbose() bool {
	return o == Verbose
}
