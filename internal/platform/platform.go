// Package platform describes the host and the on-disk layout of the
// app directory.
package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Host is the normalized platform triple used to pick downloads.
type Host struct {
	// OS is one of linux, macos or windows.
	OS string
	// Arch is x86_64, aarch64 or the raw GOARCH for anything else.
	Arch string
	// Libc is gnu or musl on Linux and empty elsewhere.
	Libc string
	// Distro is the Linux distribution id when it could be detected.
	Distro string
}

func (h Host) String() string {
	s := h.Arch + "-" + h.OS
	if h.Libc != "" {
		s += "-" + h.Libc
	}
	return s
}

// IsWindows reports whether h is a Windows host.
func (h Host) IsWindows() bool {
	return h.OS == "windows"
}

// NormalizeArch maps a GOARCH onto the names used by the download
// catalogs.
func NormalizeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x86"
	default:
		return goarch
	}
}

// NormalizeOS maps a GOOS onto the names used by the download
// catalogs.
func NormalizeOS(goos string) string {
	if goos == "darwin" {
		return "macos"
	}
	return goos
}

// distroUsesMusl lists distributions that ship musl instead of glibc.
var distroUsesMusl = map[string]bool{
	"alpine": true,
}

// Detect returns the current host. Distribution probing failures on
// Linux are tolerated; the host then defaults to glibc.
func Detect(ctx context.Context) (Host, error) {
	h := Host{
		OS:   NormalizeOS(runtime.GOOS),
		Arch: NormalizeArch(runtime.GOARCH),
	}
	if runtime.GOOS != "linux" {
		return h, nil
	}

	h.Libc = "gnu"
	distro, _, _, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Host{}, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return h, nil
	}
	h.Distro = strings.ToLower(strings.TrimSpace(distro))
	if distroUsesMusl[h.Distro] {
		h.Libc = "musl"
	}
	return h, nil
}

// AppDir returns the root directory pyrite keeps its state in:
// $PYRITE_HOME when set, ~/.pyrite otherwise.
func AppDir() (string, error) {
	if dir := os.Getenv("PYRITE_HOME"); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pyrite"), nil
}

// SelfDir is the private environment.
func SelfDir(appDir string) string {
	return filepath.Join(appDir, "self")
}

// ShimDir holds the interpreter shims.
func ShimDir(appDir string) string {
	return filepath.Join(appDir, "shims")
}

// ToolchainsDir holds one directory per installed interpreter.
func ToolchainsDir(appDir string) string {
	return filepath.Join(appDir, "py")
}

// HelperDir holds one helper release.
func HelperDir(appDir, version string) string {
	return filepath.Join(appDir, "uv", version)
}

// ExeName appends the Windows executable suffix when needed.
func ExeName(goos, name string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}

// ToolchainPython is the interpreter executable inside an unpacked
// python-build-standalone distribution.
func ToolchainPython(dir, goos string) string {
	if goos == "windows" {
		return filepath.Join(dir, "python.exe")
	}
	return filepath.Join(dir, "bin", "python3")
}

// VenvPython is the interpreter executable inside a virtualenv.
func VenvPython(venv, goos string) string {
	if goos == "windows" {
		return filepath.Join(venv, "Scripts", "python.exe")
	}
	return filepath.Join(venv, "bin", "python")
}
