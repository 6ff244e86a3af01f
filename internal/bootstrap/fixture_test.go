package bootstrap

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/fetch"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
	"github.com/stretchr/testify/require"
)

const (
	helperURL = "https://downloads.example.test/uv-x86_64-unknown-linux-gnu.tar.gz"
	py312URL  = "https://downloads.example.test/cpython-3.12.7-x86_64-unknown-linux-gnu.tar.gz"
	py311URL  = "https://downloads.example.test/cpython-3.11.10-x86_64-unknown-linux-gnu.tar.gz"
)

var testHost = platform.Host{OS: "linux", Arch: "x86_64", Libc: "gnu"}

type fakeFetcher struct {
	files    map[string][]byte
	requests []string
}

func (f *fakeFetcher) FetchAllow404(_ context.Context, url string, _ tui.CommandOutput) ([]byte, bool, error) {
	f.requests = append(f.requests, url)
	if !strings.HasPrefix(url, "https://") {
		return nil, false, fetch.ErrInsecureScheme
	}
	data, ok := f.files[url]
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, output tui.CommandOutput) ([]byte, error) {
	data, found, err := f.FetchAllow404(ctx, url, output)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("failed to download %s: %w", url, fetch.ErrNotFound)
	}
	return data, nil
}

// fakeRunner plays the helper and ldd.
type fakeRunner struct {
	commands     []util.Command
	requirements string
	lddOutput    string
	failOn       string
}

func helperArgs(cmd util.Command) []string {
	args := cmd.Args
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		args = args[1:]
	}
	return args
}

func (r *fakeRunner) Run(_ context.Context, cmd util.Command) error {
	r.commands = append(r.commands, cmd)
	args := helperArgs(cmd)
	for _, arg := range args {
		if r.failOn != "" && arg == r.failOn {
			return &util.CommandError{Cmd: cmd.String(), Err: errors.New("exit status 1")}
		}
	}
	switch {
	case len(args) == 4 && args[0] == "venv":
		venv := args[3]
		if err := os.MkdirAll(filepath.Join(venv, "bin"), 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(venv, "bin", "python"), []byte("venv python"), 0o755)
	case len(args) == 5 && args[0] == "pip" && args[3] == "-r":
		data, err := os.ReadFile(args[4])
		if err != nil {
			return err
		}
		r.requirements = string(data)
	}
	return nil
}

func (r *fakeRunner) Output(_ context.Context, cmd util.Command) ([]byte, error) {
	r.commands = append(r.commands, cmd)
	if cmd.Path == "ldd" {
		return []byte(r.lddOutput), nil
	}
	return nil, nil
}

func (r *fakeRunner) lddCalls() int {
	n := 0
	for _, cmd := range r.commands {
		if cmd.Path == "ldd" {
			n++
		}
	}
	return n
}

func (r *fakeRunner) helperCommands() []util.Command {
	var cmds []util.Command
	for _, cmd := range r.commands {
		if cmd.Path != "ldd" {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type fixture struct {
	app     string
	exe     string
	archive []byte
	// helperDigest is the sha256 the catalog pins for the helper.
	helperDigest string
	fetcher *fakeFetcher
	runner  *fakeRunner
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	catalog *sources.Catalog
}

// catalogYAML lists 3.12.7 with digest, 3.11.10 without one, the
// out-of-window 3.8 and 3.13 releases and the pinned helper.
func catalogYAML(py312Digest, helperDigest string) string {
	return fmt.Sprintf(`
pythons:
  - name: cpython
    arch: x86_64
    os: linux
    libc: gnu
    version: 3.13.0
    url: https://downloads.example.test/cpython-3.13.0.tar.gz
  - name: cpython
    arch: x86_64
    os: linux
    libc: gnu
    version: 3.12.7
    url: %s
    sha256: %s
  - name: cpython
    arch: x86_64
    os: linux
    libc: gnu
    version: 3.11.10
    url: %s
  - name: cpython
    arch: x86_64
    os: linux
    libc: gnu
    version: 3.8.20
    url: https://downloads.example.test/cpython-3.8.20.tar.gz
helpers:
  - version: 0.4.25
    arch: x86_64
    os: linux
    libc: gnu
    url: %s
    sha256: %s
`, py312URL, py312Digest, py311URL, helperURL, helperDigest)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fixture lays out unix interpreters")
	}

	helperArchive := tarGz(t, map[string]string{"uv-x86_64-unknown-linux-gnu/uv": "uv binary"})
	pyArchive := tarGz(t, map[string]string{"python/bin/python3": "python binary"})

	f := &fixture{
		app:          filepath.Join(t.TempDir(), "app"),
		exe:          filepath.Join(t.TempDir(), "pyrite"),
		archive:      pyArchive,
		helperDigest: checksum.Sum(helperArchive),
		fetcher: &fakeFetcher{files: map[string][]byte{
			helperURL: helperArchive,
			py312URL:  pyArchive,
			py311URL:  pyArchive,
		}},
		runner: &fakeRunner{lddOutput: "\tlinux-vdso.so.1 (0x00007ffd)\n\tlibc.so.6 => /lib/x86_64-linux-gnu/libc.so.6\n"},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	require.NoError(t, os.WriteFile(f.exe, []byte("pyrite binary"), 0o755))
	f.setCatalog(t, checksum.Sum(pyArchive))

	prevOut, prevErr := tui.Stdout, tui.Stderr
	tui.Stdout, tui.Stderr = f.stdout, f.stderr
	guard := tui.SetQuiet(false)
	t.Cleanup(func() {
		guard.Restore()
		tui.Stdout, tui.Stderr = prevOut, prevErr
	})
	return f
}

func (f *fixture) setCatalog(t *testing.T, py312Digest string) {
	t.Helper()
	catalog, err := sources.Parse([]byte(catalogYAML(py312Digest, f.helperDigest)), testHost)
	require.NoError(t, err)
	f.catalog = catalog
}

// bootstrapper returns a fresh Bootstrapper, as a new process would
// create one.
func (f *fixture) bootstrapper() *Bootstrapper {
	return &Bootstrapper{
		AppDir:     f.app,
		Host:       testHost,
		GOOS:       runtime.GOOS,
		Catalog:    f.catalog,
		Fetcher:    f.fetcher,
		Runner:     f.runner,
		Config:     &config.Config{},
		Executable: func() (string, error) { return f.exe, nil },
	}
}

func (f *fixture) installToolchain(t *testing.T, id string) {
	t.Helper()
	v, err := sources.ParseVersion(id)
	require.NoError(t, err)
	bin := sources.ToolchainPython(f.app, v, runtime.GOOS)
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte("python binary"), 0o755))
}

func (f *fixture) writeSelf(t *testing.T, toolVersion string) {
	t.Helper()
	self := platform.SelfDir(f.app)
	require.NoError(t, os.MkdirAll(self, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(self, "leftover.txt"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(self, ToolVersionFile), []byte(toolVersion), 0o644))
}

func (f *fixture) toolVersion(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(platform.SelfDir(f.app), ToolVersionFile))
	require.NoError(t, err)
	return string(data)
}
