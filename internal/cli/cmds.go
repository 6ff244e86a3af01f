package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/replit/pyrite/internal/bootstrap"
	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/lock"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/table"
	"github.com/replit/pyrite/internal/tui"
)

// session is the state shared by every command: the app directory,
// the host, the global config and the bootstrapper built from them.
type session struct {
	appDir string
	host   platform.Host
	boot   *bootstrap.Bootstrapper
	output tui.CommandOutput
}

// newSession is a variable so tests can point it at a fixture.
var newSession = func(ctx context.Context) (*session, error) {
	appDir, err := platform.AppDir()
	if err != nil {
		return nil, err
	}
	host, err := platform.Detect(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Current(appDir)
	if err != nil {
		return nil, err
	}
	boot, err := bootstrap.New(appDir, host, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		appDir: appDir,
		host:   host,
		boot:   boot,
		output: tui.OutputFromFlags(config.Quiet, config.Verbose),
	}, nil
}

// locked runs fn while holding the bootstrap lock of the app
// directory.
func (s *session) locked(ctx context.Context, fn func() error) (err error) {
	l, err := lock.Acquire(ctx, s.appDir)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := l.Release(); err == nil {
			err = releaseErr
		}
	}()
	return fn()
}

// runSelfBootstrap implements 'pyrite self bootstrap'.
func runSelfBootstrap(ctx context.Context, toolchain string) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer tui.ForOutput(s.output).Restore()

	var req *sources.VersionRequest
	if toolchain != "" {
		parsed, err := sources.ParseVersionRequest(toolchain)
		if err != nil {
			return err
		}
		req = &parsed
	}

	return s.locked(ctx, func() error {
		venv, err := s.boot.EnsureSelfVenvWithToolchain(ctx, s.output, req)
		if err != nil {
			return err
		}
		if s.output.IsVerbose() {
			tui.Echo("internal environment: %s", tui.PathStyle.Render(venv))
		}
		return nil
	})
}

// runSelfStatus implements 'pyrite self status'.
func runSelfStatus(ctx context.Context, format outputFormat) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	st := s.boot.Status()
	info := statusInfo{
		VenvDir:     st.VenvDir,
		Exists:      st.Exists,
		ToolVersion: st.ToolVersion,
		UpToDate:    st.UpToDate,
		Python:      st.Python,
	}

	switch format {
	case outputFormatJSON:
		return printJSON(info)
	default:
		t := table.New("Property", "Value")
		t.AddRow("venv", info.VenvDir)
		t.AddRow("exists", fmt.Sprint(info.Exists))
		t.AddRow("tool version", fmt.Sprintf("%d (current %d)", info.ToolVersion, bootstrap.SelfVersion))
		t.AddRow("up to date", fmt.Sprint(info.UpToDate))
		if info.Python != "" {
			t.AddRow("python", info.Python)
		}
		return t.Print()
	}
}

// runToolchainFetch implements 'pyrite toolchain fetch'.
func runToolchainFetch(ctx context.Context, version string) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer tui.ForOutput(s.output).Restore()

	req, err := sources.ParseVersionRequest(version)
	if err != nil {
		return err
	}
	return s.locked(ctx, func() error {
		_, err := s.boot.FetchToolchain(ctx, req, s.output)
		return err
	})
}

// runToolchainList implements 'pyrite toolchain list'.
func runToolchainList(ctx context.Context, includeDownloadable bool, format outputFormat) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	defer tui.ForOutput(s.output).Restore()

	installed, err := sources.ListInstalled(s.appDir, s.host, s.boot.GOOS)
	if err != nil {
		return err
	}

	results := []toolchainInfo{}
	seen := map[string]bool{}
	for _, v := range installed {
		seen[v.String()] = true
		results = append(results, toolchainInfo{
			Version: v.String(),
			Status:  "installed",
			Path:    sources.ToolchainPython(s.appDir, v, s.boot.GOOS),
		})
	}
	if includeDownloadable {
		for _, v := range s.boot.Catalog.Available() {
			if seen[v.String()] {
				continue
			}
			seen[v.String()] = true
			results = append(results, toolchainInfo{
				Version: v.String(),
				Status:  "downloadable",
			})
		}
	}

	switch format {
	case outputFormatJSON:
		return printJSON(results)
	default:
		if len(results) == 0 {
			tui.Warn("no toolchains installed")
			return nil
		}
		t := table.FromStructs(results)
		return t.Print()
	}
}

// runShimsInstall implements 'pyrite shims install'.
func runShimsInstall(ctx context.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer tui.ForOutput(s.output).Restore()

	return s.locked(ctx, func() error {
		if err := s.boot.InstallShims(); err != nil {
			return err
		}
		tui.Echo("%s shims in %s", tui.Success("Installed"), tui.PathStyle.Render(platform.ShimDir(s.appDir)))
		return nil
	})
}

func printJSON(v interface{}) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(tui.Stdout, string(out))
	return err
}
