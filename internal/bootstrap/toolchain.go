package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/replit/pyrite/internal/archive"
	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// FetchToolchain makes sure an interpreter matching req is installed
// and returns its version. On Linux a freshly unpacked interpreter is
// checked for missing shared libraries.
func (b *Bootstrapper) FetchToolchain(ctx context.Context, req sources.VersionRequest, output tui.CommandOutput) (sources.Version, error) {
	v, _, err := b.fetchToolchain(ctx, req, output)
	return v, err
}

// fetchToolchain is FetchToolchain that also reports whether anything
// was downloaded.
func (b *Bootstrapper) fetchToolchain(ctx context.Context, req sources.VersionRequest, output tui.CommandOutput) (v sources.Version, fresh bool, err error) {
	span, ctx := tracer.StartSpanFromContext(ctx, "toolchain.fetch")
	span.SetTag("request", req.String())
	defer func() { span.Finish(tracer.WithError(err)) }()

	if concrete, ok := req.Concrete(); ok && sources.IsInstalled(b.AppDir, concrete, b.GOOS) {
		if concrete.Arch == "" {
			concrete.Arch = b.Host.Arch
		}
		if concrete.OS == "" {
			concrete.OS = b.Host.OS
		}
		if output.IsVerbose() {
			tui.Echo("Python version already downloaded. Skipping.")
		}
		return concrete, false, nil
	}

	download, err := b.Catalog.Resolve(req)
	if err != nil {
		return sources.Version{}, false, err
	}
	v = download.Version

	targetDir := sources.ToolchainDir(b.AppDir, v)
	if output.IsVerbose() {
		tui.Echo("target dir: %s", targetDir)
	}
	if sources.IsInstalled(b.AppDir, v, b.GOOS) {
		if output.IsVerbose() {
			tui.Echo("Python version already downloaded. Skipping.")
		}
		return v, false, nil
	}

	created := !util.DirExists(targetDir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return v, false, &PathError{Op: "failed to create target folder", Path: targetDir, Err: err}
	}
	// A download that never got unpacked leaves no trace behind.
	discard := func() {
		if created {
			_ = os.Remove(targetDir)
		}
	}

	if output.IsVerbose() {
		tui.Echo("download url: %s", download.URL)
	}
	if !output.IsQuiet() {
		tui.Echo("%s %s", tui.Action("Downloading"), v)
	}
	data, err := b.Fetcher.Fetch(ctx, download.URL, output)
	if err != nil {
		discard()
		return v, false, err
	}

	digest := download.SHA256
	if digest == "" {
		digest, _, err = b.sidecarDigest(ctx, download.URL, output)
		if err != nil {
			discard()
			return v, false, err
		}
	}
	if digest != "" {
		if !output.IsQuiet() {
			tui.Echo("%s checksum", tui.Action("Checking"))
		}
		if err := checksum.Verify(data, digest); err != nil {
			discard()
			return v, false, fmt.Errorf("checksum check of %s failed: %w", download.URL, err)
		}
	} else if !output.IsQuiet() {
		tui.Echo("Checksum check skipped (no hash available)")
	}

	if !output.IsQuiet() {
		tui.Echo("%s", tui.Action("Unpacking"))
	}
	if err := b.unpack(data, targetDir, 1, download.URL); err != nil {
		return v, false, err
	}

	if !output.IsQuiet() {
		tui.Echo("%s %s", tui.Success("Downloaded"), v)
	}

	if b.GOOS == "linux" {
		if err := b.validateSharedLibraries(ctx, sources.ToolchainPython(b.AppDir, v, b.GOOS)); err != nil {
			return v, true, err
		}
	}
	return v, true, nil
}

func (b *Bootstrapper) unpack(data []byte, dir string, strip int, url string) error {
	if err := archive.Unpack(data, dir, strip); err != nil {
		return fmt.Errorf("unpacking of downloaded tarball %s to %q failed: %w", url, dir, err)
	}
	return nil
}

// ensureSelfToolchain picks the interpreter for the private
// environment. Without a request the newest installed compatible
// interpreter wins and the default toolchain is fetched otherwise.
func (b *Bootstrapper) ensureSelfToolchain(ctx context.Context, output tui.CommandOutput, req *sources.VersionRequest) (sources.Version, bool, error) {
	if req == nil {
		installed, err := sources.ListInstalled(b.AppDir, b.Host, b.GOOS)
		if err != nil {
			return sources.Version{}, false, err
		}
		if v, ok := sources.LatestSelfCompatible(installed); ok {
			if !output.IsQuiet() {
				tui.Echo("Found a compatible Python version: %s", tui.Action(v.String()))
			}
			return v, false, nil
		}
		v, fresh, err := b.fetchToolchain(ctx, sources.DefaultSelfToolchain, output)
		if err != nil {
			return v, fresh, fmt.Errorf("failed to fetch internal cpython toolchain %s: %w", sources.DefaultSelfToolchain, err)
		}
		return v, fresh, nil
	}

	v, err := b.checkSelfToolchain(*req)
	if err != nil {
		return v, false, err
	}
	if sources.IsInstalled(b.AppDir, v, b.GOOS) {
		if !output.IsQuiet() {
			tui.Echo("Found a compatible Python version: %s", tui.Action(v.String()))
		}
		return v, false, nil
	}
	if !output.IsQuiet() {
		tui.Echo("Fetching requested internal toolchain '%s'", v)
	}
	v, fresh, err := b.fetchToolchain(ctx, v.Request(), output)
	if err != nil {
		return v, fresh, fmt.Errorf("failed to provision internal cpython toolchain %s: %w", req, err)
	}
	return v, fresh, nil
}

// checkSelfToolchain resolves an explicit request and rejects versions
// outside the self-compatible window.
func (b *Bootstrapper) checkSelfToolchain(req sources.VersionRequest) (sources.Version, error) {
	v, ok := b.Catalog.LatestMatching(req)
	if !ok {
		return sources.Version{}, fmt.Errorf("%w: %s", ErrToolchainUnavailable, req)
	}
	if !sources.IsSelfCompatible(v) {
		return v, &UnsupportedToolchainError{Version: v}
	}
	return v, nil
}

// sidecarDigest looks up the `<url>.sha256` file published next to a
// download.
func (b *Bootstrapper) sidecarDigest(ctx context.Context, url string, output tui.CommandOutput) (string, bool, error) {
	data, found, err := b.Fetcher.FetchAllow404(ctx, url+".sha256", tui.Quiet)
	if err != nil || !found {
		return "", false, err
	}
	digest, err := checksum.ParseSidecar(data)
	if err != nil {
		return "", false, fmt.Errorf("checksum file for %s: %w", url, err)
	}
	if output.IsVerbose() {
		tui.Echo("expected sha256: %s", digest)
	}
	return digest, true, nil
}
