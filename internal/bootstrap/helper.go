package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
)

// HelperName is the helper executable name without extension.
const HelperName = "uv"

// Helper is an installed helper binary bound to an output mode.
type Helper struct {
	Path     string
	Version  string
	Output   tui.CommandOutput
	ProxyEnv []string

	runner util.Runner
}

// Command builds a helper invocation. Verbose output passes
// --verbose; quiet output passes --quiet and silences interpreter
// warnings. Proxy settings are always forwarded.
func (h *Helper) Command(args ...string) util.Command {
	var flags []string
	env := append([]string{}, h.ProxyEnv...)
	switch h.Output {
	case tui.Verbose:
		flags = append(flags, "--verbose")
	case tui.Quiet:
		flags = append(flags, "--quiet")
		env = append(env, "PYTHONWARNINGS=ignore")
	}
	return util.Command{
		Path: h.Path,
		Args: append(flags, args...),
		Env:  env,
	}
}

// VenvCommand is like Command but runs against the environment at
// venv.
func (h *Helper) VenvCommand(venv string, args ...string) util.Command {
	cmd := h.Command(args...)
	cmd.Env = append(cmd.Env, "VIRTUAL_ENV="+venv)
	return cmd
}

// Run executes cmd, echoing the command line in verbose mode.
func (h *Helper) Run(ctx context.Context, cmd util.Command) error {
	if h.Output.IsVerbose() {
		util.ProgressMsg(cmd.String())
	}
	return h.runner.Run(ctx, cmd)
}

// EnsureHelper makes sure the helper release for this host is
// unpacked under <app_dir>/uv/<version> and returns a handle to it.
func (b *Bootstrapper) EnsureHelper(ctx context.Context, output tui.CommandOutput) (*Helper, error) {
	download, err := b.Catalog.ResolveHelper()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHelperInstallFailed, err)
	}
	if download.SHA256 == "" {
		return nil, fmt.Errorf("%w: no sha256 pinned for %s", ErrHelperInstallFailed, download.URL)
	}

	dir := platform.HelperDir(b.AppDir, download.Version)
	bin := filepath.Join(dir, platform.ExeName(b.GOOS, HelperName))
	helper := &Helper{
		Path:     bin,
		Version:  download.Version,
		Output:   output,
		ProxyEnv: b.Config.ProxyEnv(),
		runner:   b.Runner,
	}
	if util.DirExists(dir) && util.FileExists(bin) {
		return helper, nil
	}

	if output.IsVerbose() {
		tui.Echo("download url: %s", download.URL)
	}
	data, err := b.Fetcher.Fetch(ctx, download.URL, output)
	if err != nil {
		return nil, err
	}

	if err := checksum.Verify(data, download.SHA256); err != nil {
		return nil, fmt.Errorf("checksum check of %s failed: %w", download.URL, err)
	}

	if err := b.unpack(data, dir, download.Strip, download.URL); err != nil {
		return nil, err
	}
	if util.DirExists(dir) && util.FileExists(bin) {
		return helper, nil
	}
	return nil, ErrHelperInstallFailed
}
