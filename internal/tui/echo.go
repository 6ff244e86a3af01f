package tui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

type echoState int32

const (
	echoStdout echoState = iota
	echoStderr
	echoQuiet
)

var state atomic.Int32

// Stdout and Stderr are the writers the echo channel prints to.
// Tests replace them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func currentWriter() io.Writer {
	switch echoState(state.Load()) {
	case echoStderr:
		return Stderr
	case echoQuiet:
		return nil
	default:
		return Stdout
	}
}

// Echo prints an informational line unless the echo channel is
// quieted.
func Echo(format string, a ...interface{}) {
	if w := currentWriter(); w != nil {
		fmt.Fprintf(w, format+"\n", a...)
	}
}

// Warn prints a warning to stderr unless the echo channel is quieted.
func Warn(format string, a ...interface{}) {
	if echoState(state.Load()) == echoQuiet {
		return
	}
	fmt.Fprintf(Stderr, "%s %s\n", WarningStyle.Render("warning:"), fmt.Sprintf(format, a...))
}

// Error always prints to stderr.
func Error(format string, a ...interface{}) {
	fmt.Fprintf(Stderr, "%s %s\n", ErrorStyle.Render("error:"), fmt.Sprintf(format, a...))
}

// Guard restores the echo state that was active before it was created.
type Guard struct {
	prev echoState
}

// Restore puts the previous echo state back.
func (g Guard) Restore() {
	state.Store(int32(g.prev))
}

func swap(next echoState) Guard {
	return Guard{prev: echoState(state.Swap(int32(next)))}
}

// RedirectToStderr sends echo output to stderr until the returned
// guard is restored.
func RedirectToStderr(yes bool) Guard {
	if !yes {
		return Guard{prev: echoState(state.Load())}
	}
	return swap(echoStderr)
}

// SetQuiet silences echo output when quiet is true and restores
// stdout output when it is false.
func SetQuiet(quiet bool) Guard {
	if quiet {
		return swap(echoQuiet)
	}
	return swap(echoStdout)
}

// ForOutput applies an output mode to the echo channel.
func ForOutput(output CommandOutput) Guard {
	return SetQuiet(output.IsQuiet())
}
