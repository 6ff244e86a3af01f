// Package bootstrap provisions pyrite's private interpreter
// environment: it installs the helper binary and an interpreter,
// creates the environment, installs the pinned requirements and the
// interpreter shims, and finally stamps the tool version.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/fetch"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// Fetcher downloads HTTPS resources into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string, output tui.CommandOutput) ([]byte, error)
	FetchAllow404(ctx context.Context, url string, output tui.CommandOutput) ([]byte, bool, error)
}

// Bootstrapper owns one app directory. The staleness cache and the
// forced flag live here; the CLI keeps a single instance per process.
type Bootstrapper struct {
	AppDir  string
	Host    platform.Host
	GOOS    string
	Catalog *sources.Catalog
	Fetcher Fetcher
	Runner  util.Runner
	Config  *config.Config
	// Executable returns the running pyrite binary.
	Executable func() (string, error)

	upToDateOnce sync.Once
	upToDate     atomic.Bool
	forced       atomic.Bool
}

// New returns a Bootstrapper for appDir on host with the compiled-in
// catalog.
func New(appDir string, host platform.Host, cfg *config.Config) (*Bootstrapper, error) {
	catalog, err := sources.Default(host)
	if err != nil {
		return nil, err
	}
	return &Bootstrapper{
		AppDir:     appDir,
		Host:       host,
		GOOS:       runtime.GOOS,
		Catalog:    catalog,
		Fetcher:    fetch.New(cfg),
		Runner:     util.ExecRunner{},
		Config:     cfg,
		Executable: os.Executable,
	}, nil
}

// VenvDir is the private environment.
func (b *Bootstrapper) VenvDir() string {
	return platform.SelfDir(b.AppDir)
}

// SelfPython returns the interpreter of the private environment.
func (b *Bootstrapper) SelfPython() string {
	return platform.VenvPython(b.VenvDir(), b.GOOS)
}

// IsUpToDate reports whether the private environment was bootstrapped
// at SelfVersion. The marker is read once; a bootstrap in this
// process forces the answer to true.
func (b *Bootstrapper) IsUpToDate() bool {
	b.upToDateOnce.Do(func() {
		version, err := readToolVersion(b.VenvDir())
		b.upToDate.Store(err == nil && version == SelfVersion)
	})
	return b.upToDate.Load() || b.forced.Load()
}

// Status describes the private environment without changing it.
type Status struct {
	VenvDir     string
	Exists      bool
	ToolVersion int
	UpToDate    bool
	Python      string
}

// Status inspects the private environment.
func (b *Bootstrapper) Status() Status {
	s := Status{VenvDir: b.VenvDir(), Exists: util.DirExists(b.VenvDir())}
	if version, err := readToolVersion(s.VenvDir); err == nil {
		s.ToolVersion = version
	}
	if v, err := ReadVenvMarker(s.VenvDir); err == nil {
		s.Python = v.String()
	}
	s.UpToDate = s.Exists && b.IsUpToDate()
	return s
}

// EnsureSelfVenv bootstraps the private environment if needed and
// returns its path.
func (b *Bootstrapper) EnsureSelfVenv(ctx context.Context, output tui.CommandOutput) (string, error) {
	return b.EnsureSelfVenvWithToolchain(ctx, output, nil)
}

// EnsureSelfVenvWithToolchain is EnsureSelfVenv with an explicit
// interpreter request for a fresh environment.
func (b *Bootstrapper) EnsureSelfVenvWithToolchain(ctx context.Context, output tui.CommandOutput, req *sources.VersionRequest) (string, error) {
	venvDir := b.VenvDir()

	if util.DirExists(venvDir) && b.IsUpToDate() {
		return venvDir, nil
	}

	// Reject an unusable request before anything is torn down.
	if req != nil {
		if _, err := b.checkSelfToolchain(*req); err != nil {
			return "", &StepError{Step: StepToolchain, Err: err}
		}
	}

	if util.DirExists(venvDir) {
		if !output.IsQuiet() {
			tui.Echo("Detected outdated pyrite internals. Refreshing")
		}
		if err := os.RemoveAll(venvDir); err != nil {
			return "", &StepError{Step: StepTeardown, Err: &PathError{
				Op: "could not remove self-venv for update", Path: venvDir, Err: err,
			}}
		}
	}

	if !output.IsQuiet() {
		tui.Echo("Bootstrapping pyrite internals")
	}

	span, ctx := tracer.StartSpanFromContext(ctx, "bootstrap")
	err := b.provision(ctx, output, req, venvDir)
	span.Finish(tracer.WithError(err))
	if err != nil {
		return "", err
	}

	b.forced.Store(true)
	return venvDir, nil
}

func (b *Bootstrapper) provision(ctx context.Context, output tui.CommandOutput, req *sources.VersionRequest, venvDir string) error {
	var helper *Helper
	err := b.step(ctx, StepHelper, "bootstrap.helper", func(ctx context.Context) error {
		var err error
		helper, err = b.EnsureHelper(ctx, output)
		return err
	})
	if err != nil {
		return err
	}

	var version sources.Version
	err = b.step(ctx, StepToolchain, "bootstrap.toolchain", func(ctx context.Context) error {
		v, fresh, err := b.ensureSelfToolchain(ctx, output, req)
		if err != nil {
			return err
		}
		version = v
		// Freshly fetched interpreters were checked on download.
		if b.GOOS == "linux" && !fresh {
			return b.validateSharedLibraries(ctx, sources.ToolchainPython(b.AppDir, v, b.GOOS))
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = b.step(ctx, StepVenv, "bootstrap.venv", func(ctx context.Context) error {
		pyBin := sources.ToolchainPython(b.AppDir, version, b.GOOS)
		return buildEnv(ctx, helper, pyBin, version, venvDir)
	})
	if err != nil {
		return err
	}

	err = b.step(ctx, StepShims, "bootstrap.shims", func(ctx context.Context) error {
		return b.InstallShims()
	})
	if err != nil {
		return err
	}

	if err := writeToolVersion(venvDir); err != nil {
		return &StepError{Step: StepStamp, Err: err}
	}
	return nil
}

// InstallShims installs the interpreter shims into <app_dir>/shims.
func (b *Bootstrapper) InstallShims() error {
	shimDir := platform.ShimDir(b.AppDir)
	target, err := ShimTarget(shimDir, b.GOOS, b.Executable)
	if err != nil {
		return err
	}
	return InstallShims(shimDir, target, b.GOOS)
}

// step runs fn inside a trace span and annotates its error with the
// step name.
func (b *Bootstrapper) step(ctx context.Context, step Step, spanName string, fn func(context.Context) error) error {
	span, ctx := tracer.StartSpanFromContext(ctx, spanName)
	err := fn(ctx)
	span.Finish(tracer.WithError(err))
	if err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			return err
		}
		return &StepError{Step: step, Err: err}
	}
	return nil
}
