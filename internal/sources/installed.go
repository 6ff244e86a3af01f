package sources

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/util"
)

// ToolchainDir is the canonical directory of an installed interpreter.
func ToolchainDir(appDir string, v Version) string {
	return filepath.Join(platform.ToolchainsDir(appDir), v.String())
}

// ToolchainPython is the interpreter executable of an installed
// interpreter.
func ToolchainPython(appDir string, v Version, goos string) string {
	return platform.ToolchainPython(ToolchainDir(appDir, v), goos)
}

// IsInstalled reports whether both the canonical directory and the
// interpreter executable of v exist.
func IsInstalled(appDir string, v Version, goos string) bool {
	return util.DirExists(ToolchainDir(appDir, v)) && util.FileExists(ToolchainPython(appDir, v, goos))
}

// ListInstalled scans the toolchain directory and returns every
// installed interpreter, newest first. Directories that do not parse
// as a version or lack an executable are skipped.
func ListInstalled(appDir string, host platform.Host, goos string) ([]Version, error) {
	entries, err := os.ReadDir(platform.ToolchainsDir(appDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var versions []Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := ParseVersion(entry.Name())
		if err != nil {
			continue
		}
		v.Arch, v.OS = host.Arch, host.OS
		if !IsInstalled(appDir, v, goos) {
			continue
		}
		versions = append(versions, v)
	}
	sortNewestFirst(versions)
	return versions, nil
}

// LatestSelfCompatible returns the newest installed interpreter that
// can host the private environment.
func LatestSelfCompatible(installed []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range installed {
		if !IsSelfCompatible(v) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}
