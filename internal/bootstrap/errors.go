package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/replit/pyrite/internal/sources"
)

// Step names a stage of the provisioning state machine.
type Step string

const (
	StepTeardown  Step = "remove outdated internals"
	StepHelper    Step = "install helper"
	StepToolchain Step = "provision internal toolchain"
	StepVenv      Step = "create private environment"
	StepShims     Step = "install shims"
	StepStamp     Step = "write tool version"
)

// StepError annotates a failure with the step that was in flight.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrHelperInstallFailed means the helper binary could not be made
// available.
var ErrHelperInstallFailed = errors.New("failed to ensure helper binary is available")

// UnsupportedToolchainError is returned when an explicitly requested
// interpreter cannot host the private environment.
type UnsupportedToolchainError struct {
	Version sources.Version
}

func (e *UnsupportedToolchainError) Error() string {
	return fmt.Sprintf("the requested toolchain version (%s) is not supported for pyrite-internal usage", e.Version)
}

// ErrToolchainUnavailable means no catalog entry matches an explicit
// toolchain request.
var ErrToolchainUnavailable = errors.New("requested toolchain version is not available")

// MissingLibrariesHelpURL documents how to install the libraries the
// interpreter builds need.
const MissingLibrariesHelpURL = "https://github.com/replit/pyrite#missing-shared-libraries-on-linux"

// MissingSharedLibrariesError lists the shared libraries the dynamic
// linker could not find for a downloaded interpreter.
type MissingSharedLibrariesError struct {
	Libs []string
}

func (e *MissingSharedLibrariesError) Error() string {
	return fmt.Sprintf(
		"Python installation is unable to run on this machine due to missing libraries (%s).\nVisit %s for next steps.",
		strings.Join(e.Libs, ", "), MissingLibrariesHelpURL)
}

// PathError is a filesystem failure with the operation that was
// attempted.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ShimInstallError is returned when every strategy for a shim failed.
// Op names the last strategy that was attempted.
type ShimInstallError struct {
	Path string
	Op   string
	Err  error
}

func (e *ShimInstallError) Error() string {
	return fmt.Sprintf("tried to %s shim %s: %s", e.Op, e.Path, e.Err)
}

func (e *ShimInstallError) Unwrap() error {
	return e.Err
}
