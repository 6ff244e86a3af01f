package bootstrap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/util"
)

// ToolName is the name pyrite is installed under in the shim
// directory.
const ToolName = "pyrite"

type shimStrategy struct {
	op      string
	install func(target, shim string) error
}

var (
	symlinkStrategy  = shimStrategy{op: "symlink", install: os.Symlink}
	hardlinkStrategy = shimStrategy{op: "hardlink", install: os.Link}
	copyStrategy     = shimStrategy{op: "copy", install: copyExecutable}
)

// shimPlan returns the shim file names for goos and the strategies to
// try for each, in order. Linux never symlinks because the interpreter
// front end would then report the wrong executable.
func shimPlan(goos string) ([]string, []shimStrategy) {
	switch goos {
	case "windows":
		return []string{"python.exe", "python3.exe", "pythonw.exe"},
			[]shimStrategy{symlinkStrategy, hardlinkStrategy}
	case "linux":
		return []string{"python", "python3"},
			[]shimStrategy{hardlinkStrategy, copyStrategy}
	default:
		return []string{"python", "python3"},
			[]shimStrategy{symlinkStrategy}
	}
}

// ShimTarget returns the executable shims should point at: the copy
// of pyrite installed in shimDir when there is one, the running
// executable otherwise.
func ShimTarget(shimDir, goos string, currentExe func() (string, error)) (string, error) {
	installed := filepath.Join(shimDir, platform.ExeName(goos, ToolName))
	if util.FileExists(installed) {
		return installed, nil
	}
	exe, err := currentExe()
	if err != nil {
		return "", fmt.Errorf("cannot determine current executable: %w", err)
	}
	return exe, nil
}

// InstallShims creates the interpreter shims for goos in shimDir, all
// pointing at target.
func InstallShims(shimDir, target, goos string) error {
	if err := os.MkdirAll(shimDir, 0o755); err != nil {
		return &PathError{Op: "tried to create shim folder", Path: shimDir, Err: err}
	}

	names, strategies := shimPlan(goos)
	for _, name := range names {
		if err := installShim(filepath.Join(shimDir, name), target, strategies); err != nil {
			return err
		}
	}
	return nil
}

func installShim(shim, target string, strategies []shimStrategy) error {
	_ = os.Remove(shim)

	var last *ShimInstallError
	for _, strategy := range strategies {
		err := strategy.install(target, shim)
		if err == nil {
			return nil
		}
		last = &ShimInstallError{Path: shim, Op: strategy.op, Err: err}
		// A failed copy may leave a partial file behind.
		_ = os.Remove(shim)
	}
	return last
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o111)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
