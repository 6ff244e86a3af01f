package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, s string) *sources.VersionRequest {
	t.Helper()
	req, err := sources.ParseVersionRequest(s)
	require.NoError(t, err)
	return &req
}

func TestEnsureSelfVenvFromScratch(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrapper()

	venv, err := b.EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.app, "self"), venv)
	assert.Equal(t, strconv.Itoa(SelfVersion), f.toolVersion(t))
	assert.FileExists(t, filepath.Join(f.app, "uv", "0.4.25", "uv"))
	assert.FileExists(t, filepath.Join(f.app, "py", "cpython@3.12.7", "bin", "python3"))
	assert.FileExists(t, filepath.Join(f.app, "shims", "python"))
	assert.FileExists(t, filepath.Join(f.app, "shims", "python3"))
	assert.True(t, b.IsUpToDate())

	marker, err := ReadVenvMarker(venv)
	require.NoError(t, err)
	assert.Equal(t, "cpython@3.12.7", marker.String())

	out := f.stdout.String()
	for _, want := range []string{
		"Bootstrapping pyrite internals",
		"Downloading", "cpython@3.12.7",
		"Checking", "checksum",
		"Unpacking",
		"Downloaded",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "download url:")

	assert.Equal(t, []string{helperURL, py312URL}, f.fetcher.requests)

	cmds := f.runner.helperCommands()
	require.Len(t, cmds, 3)
	uvBin := filepath.Join(f.app, "uv", "0.4.25", "uv")
	pyBin := filepath.Join(f.app, "py", "cpython@3.12.7", "bin", "python3")
	assert.Equal(t, uvBin, cmds[0].Path)
	assert.Equal(t, []string{"venv", "--python", pyBin, venv}, cmds[0].Args)
	assert.NotContains(t, cmds[0].Env, "VIRTUAL_ENV="+venv)
	assert.Equal(t, []string{"pip", "install", "--upgrade", PinnedPip}, cmds[1].Args)
	assert.Contains(t, cmds[1].Env, "VIRTUAL_ENV="+venv)
	assert.Equal(t, []string{"pip", "install", "--upgrade", "-r"}, cmds[2].Args[:4])
	assert.Contains(t, cmds[2].Env, "VIRTUAL_ENV="+venv)
	assert.Equal(t, SelfRequirements, f.runner.requirements)
	assert.NoFileExists(t, cmds[2].Args[4])

	if runtime.GOOS == "linux" {
		assert.Equal(t, 1, f.runner.lddCalls())
	}
}

func TestEnsureSelfVenvIsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrapper()

	first, err := b.EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)
	stamp, err := os.Stat(filepath.Join(first, ToolVersionFile))
	require.NoError(t, err)
	requests, commands := len(f.fetcher.requests), len(f.runner.commands)
	f.stdout.Reset()

	second, err := b.EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.fetcher.requests, requests)
	assert.Len(t, f.runner.commands, commands)
	assert.Empty(t, f.stdout.String())
	again, err := os.Stat(filepath.Join(first, ToolVersionFile))
	require.NoError(t, err)
	assert.Equal(t, stamp.ModTime(), again.ModTime())
}

func TestEnsureSelfVenvUpToDateIsQuiet(t *testing.T) {
	f := newFixture(t)
	f.writeSelf(t, strconv.Itoa(SelfVersion))

	venv, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Quiet)
	require.NoError(t, err)

	assert.Equal(t, platform.SelfDir(f.app), venv)
	assert.Empty(t, f.fetcher.requests)
	assert.Empty(t, f.runner.commands)
	assert.Empty(t, f.stdout.String())
	assert.FileExists(t, filepath.Join(venv, "leftover.txt"))
}

func TestEnsureSelfVenvRefreshesOutdated(t *testing.T) {
	f := newFixture(t)
	f.writeSelf(t, strconv.Itoa(SelfVersion-1))

	venv, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)

	assert.Contains(t, f.stdout.String(), "Detected outdated pyrite internals. Refreshing")
	assert.NoFileExists(t, filepath.Join(venv, "leftover.txt"))
	assert.Equal(t, strconv.Itoa(SelfVersion), f.toolVersion(t))
}

func TestEnsureSelfVenvRestartSafety(t *testing.T) {
	f := newFixture(t)
	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Quiet)
	require.NoError(t, err)
	self := platform.SelfDir(f.app)

	t.Run("marker removed", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(self, ToolVersionFile)))
		commands := len(f.runner.commands)

		_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Quiet)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(SelfVersion), f.toolVersion(t))
		assert.Greater(t, len(f.runner.commands), commands)
	})

	t.Run("self removed", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(self))

		_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Quiet)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(SelfVersion), f.toolVersion(t))
	})

	// Interpreter and helper were downloaded exactly once.
	count := map[string]int{}
	for _, url := range f.fetcher.requests {
		count[url]++
	}
	assert.Equal(t, 1, count[py312URL])
	assert.Equal(t, 1, count[helperURL])
}

func TestEnsureSelfVenvPrefersInstalledToolchain(t *testing.T) {
	f := newFixture(t)
	f.installToolchain(t, "cpython@3.11.10")
	f.installToolchain(t, "cpython@3.13.0")

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)

	assert.Contains(t, f.stdout.String(), "Found a compatible Python version")
	assert.Contains(t, f.stdout.String(), "cpython@3.11.10")
	assert.NotContains(t, f.fetcher.requests, py312URL)

	cmds := f.runner.helperCommands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, filepath.Join(f.app, "py", "cpython@3.11.10", "bin", "python3"), cmds[0].Args[2])
	if runtime.GOOS == "linux" {
		assert.Equal(t, 1, f.runner.lddCalls())
	}
}

func TestEnsureSelfVenvWithToolchain(t *testing.T) {
	f := newFixture(t)

	_, err := f.bootstrapper().EnsureSelfVenvWithToolchain(context.Background(), tui.Normal, mustRequest(t, "3.11"))
	require.NoError(t, err)

	assert.Contains(t, f.stdout.String(), "Fetching requested internal toolchain 'cpython@3.11.10'")
	assert.Contains(t, f.stdout.String(), "Checksum check skipped (no hash available)")
	assert.Contains(t, f.fetcher.requests, py311URL)
	assert.Contains(t, f.fetcher.requests, py311URL+".sha256")

	marker, err := ReadVenvMarker(platform.SelfDir(f.app))
	require.NoError(t, err)
	assert.Equal(t, "cpython@3.11.10", marker.String())
}

func TestEnsureSelfVenvUnsupportedToolchain(t *testing.T) {
	for _, request := range []string{"3.13", "3.8", "cpython@3.13.0"} {
		t.Run(request, func(t *testing.T) {
			f := newFixture(t)
			f.writeSelf(t, strconv.Itoa(SelfVersion-1))

			_, err := f.bootstrapper().EnsureSelfVenvWithToolchain(context.Background(), tui.Normal, mustRequest(t, request))

			var unsupported *UnsupportedToolchainError
			require.True(t, errors.As(err, &unsupported), err)
			assert.Contains(t, err.Error(), "is not supported for pyrite-internal usage")
			assert.FileExists(t, filepath.Join(platform.SelfDir(f.app), "leftover.txt"))
			assert.Empty(t, f.fetcher.requests)
		})
	}
}

func TestEnsureSelfVenvUnavailableToolchain(t *testing.T) {
	f := newFixture(t)

	_, err := f.bootstrapper().EnsureSelfVenvWithToolchain(context.Background(), tui.Normal, mustRequest(t, "3.10"))
	assert.ErrorIs(t, err, ErrToolchainUnavailable)
}

func TestEnsureSelfVenvChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	f.setCatalog(t, strings.Repeat("ab", 32))

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)

	var mismatch *checksum.MismatchError
	require.True(t, errors.As(err, &mismatch), err)
	assert.Equal(t, checksum.Sum(f.archive), mismatch.Actual)
	assert.Contains(t, err.Error(), py312URL)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepToolchain, stepErr.Step)

	assert.NoDirExists(t, filepath.Join(f.app, "py", "cpython@3.12.7"))
	assert.NoFileExists(t, filepath.Join(platform.SelfDir(f.app), ToolVersionFile))
}

func TestEnsureSelfVenvMissingSharedLibraries(t *testing.T) {
	f := newFixture(t)
	f.runner.lddOutput = strings.Join([]string{
		"\tlinux-vdso.so.1 (0x00007ffd)",
		"\tlibz.so.1 => not found",
		"\tlibcrypt.so.1 => not found",
		"\tlibc.so.6 => /lib/x86_64-linux-gnu/libc.so.6",
		"\tlibz.so.1 => not found",
	}, "\n")
	b := f.bootstrapper()
	b.GOOS = "linux"

	_, err := b.EnsureSelfVenv(context.Background(), tui.Normal)

	var missing *MissingSharedLibrariesError
	require.True(t, errors.As(err, &missing), err)
	assert.Equal(t, []string{"libcrypt.so.1", "libz.so.1"}, missing.Libs)
	assert.Contains(t, err.Error(), MissingLibrariesHelpURL)
	assert.Contains(t, f.stderr.String(), "detected missing shared libraries required by Python")
	assert.NoFileExists(t, filepath.Join(platform.SelfDir(f.app), ToolVersionFile))
	assert.Empty(t, f.runner.helperCommands())
}

func TestMissingSharedLibrariesListedWhenQuiet(t *testing.T) {
	f := newFixture(t)
	f.runner.lddOutput = "\tlibz.so.1 => not found\n\tlibffi.so.8 => not found\n"
	b := f.bootstrapper()
	b.GOOS = "linux"

	_, err := b.FetchToolchain(context.Background(), *mustRequest(t, "3.12"), tui.Quiet)

	var missing *MissingSharedLibrariesError
	require.True(t, errors.As(err, &missing), err)
	assert.Empty(t, f.stdout.String())
	stderr := f.stderr.String()
	assert.Contains(t, stderr, "detected missing shared libraries required by Python")
	assert.Contains(t, stderr, "libz.so.1")
	assert.Contains(t, stderr, "libffi.so.8")
}

func TestEnsureSelfVenvHelperChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	f.helperDigest = strings.Repeat("cd", 32)
	f.setCatalog(t, checksum.Sum(f.archive))

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)

	var mismatch *checksum.MismatchError
	require.True(t, errors.As(err, &mismatch), err)
	assert.Contains(t, err.Error(), helperURL)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepHelper, stepErr.Step)
	assert.NoDirExists(t, filepath.Join(f.app, "uv", "0.4.25"))
	assert.NotContains(t, f.fetcher.requests, helperURL+".sha256")
}

func TestEnsureSelfVenvWithoutPinnedHelper(t *testing.T) {
	f := newFixture(t)
	catalog, err := sources.Parse([]byte("pythons: []\nhelpers: []\n"), testHost)
	require.NoError(t, err)
	f.catalog = catalog

	_, err = f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)

	assert.ErrorIs(t, err, ErrHelperInstallFailed)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepHelper, stepErr.Step)
	assert.Empty(t, f.fetcher.requests)
	assert.NoFileExists(t, filepath.Join(platform.SelfDir(f.app), ToolVersionFile))
}

func TestEnsureSelfVenvHelperFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.failOn = "venv"

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), err)
	assert.Equal(t, StepVenv, stepErr.Step)
	assert.Contains(t, err.Error(), "incompatible with this machine")
	assert.NoFileExists(t, filepath.Join(platform.SelfDir(f.app), ToolVersionFile))
	assert.False(t, f.bootstrapper().IsUpToDate())

	// The next attempt starts over and succeeds.
	f.runner.failOn = ""
	_, err = f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Normal)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(SelfVersion), f.toolVersion(t))
}

func TestEnsureSelfVenvQuietOutput(t *testing.T) {
	f := newFixture(t)

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Quiet)
	require.NoError(t, err)

	assert.Empty(t, f.stdout.String())
	for _, cmd := range f.runner.helperCommands() {
		assert.Equal(t, "--quiet", cmd.Args[0])
		assert.Contains(t, cmd.Env, "PYTHONWARNINGS=ignore")
	}
}

func TestEnsureSelfVenvVerboseOutput(t *testing.T) {
	f := newFixture(t)

	_, err := f.bootstrapper().EnsureSelfVenv(context.Background(), tui.Verbose)
	require.NoError(t, err)

	out := f.stdout.String()
	assert.Contains(t, out, "download url: "+py312URL)
	assert.Contains(t, out, "target dir: "+filepath.Join(f.app, "py", "cpython@3.12.7"))
	assert.Contains(t, out, "--> ")
	for _, cmd := range f.runner.helperCommands() {
		assert.Equal(t, "--verbose", cmd.Args[0])
	}
}

func TestIsUpToDateReadsOnce(t *testing.T) {
	f := newFixture(t)
	f.writeSelf(t, "not a number")
	b := f.bootstrapper()

	assert.False(t, b.IsUpToDate())
	require.NoError(t, os.WriteFile(filepath.Join(platform.SelfDir(f.app), ToolVersionFile), []byte(strconv.Itoa(SelfVersion)), 0o644))
	assert.False(t, b.IsUpToDate())
	assert.True(t, f.bootstrapper().IsUpToDate())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	b := f.bootstrapper()

	s := b.Status()
	assert.False(t, s.Exists)
	assert.False(t, s.UpToDate)

	_, err := b.EnsureSelfVenv(context.Background(), tui.Quiet)
	require.NoError(t, err)

	s = b.Status()
	assert.True(t, s.Exists)
	assert.True(t, s.UpToDate)
	assert.Equal(t, SelfVersion, s.ToolVersion)
	assert.Equal(t, "cpython@3.12.7", s.Python)
	assert.Equal(t, filepath.Join(f.app, "self", "bin", "python"), b.SelfPython())
}
