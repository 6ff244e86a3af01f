// Package cli implements the command-line interface of pyrite.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/platform"
	"github.com/replit/pyrite/internal/trace"
	"github.com/replit/pyrite/internal/util"
	"github.com/spf13/cobra"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// parseOutputFormat takes "table" or "json" and returns an
// outputFormat enum value.
func parseOutputFormat(formatStr string) (outputFormat, error) {
	switch formatStr {
	case "table":
		return outputFormatTable, nil
	case "json":
		return outputFormatJSON, nil
	default:
		return 0, fmt.Errorf(`invalid format %#v (must be "table" or "json")`, formatStr)
	}
}

// version is set at build time to a Git tag or the string
// "development version" when not tagging a release.
var version = "unknown version"

// getVersion returns a string that can be printed when calling
// 'pyrite --version'.
func getVersion() string {
	return "pyrite " + version
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var toolchain string
	var formatStr string
	var includeDownloadable bool

	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "pyrite",
		Short:         "Python toolchain manager",
		Version:       getVersion(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}` + "\n")
	rootCmd.PersistentFlags().BoolVarP(
		&config.Quiet, "quiet", "q", false, "turn off all output",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&config.Verbose, "verbose", "v", false, "enable verbose diagnostics",
	)
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")
	rootCmd.PersistentFlags().BoolP(
		"help", "h", false, "display command-line usage",
	)
	rootCmd.Flags().Bool("version", false, "display command version")

	cmdSelf := &cobra.Command{
		Use:   "self",
		Short: "Manage pyrite's own internals",
	}
	rootCmd.AddCommand(cmdSelf)

	cmdSelfBootstrap := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create or refresh the internal environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfBootstrap(cmd.Context(), toolchain)
		},
	}
	cmdSelfBootstrap.Flags().StringVar(
		&toolchain, "toolchain", "", "interpreter to build the internal environment with (e.g. 3.11)",
	)
	cmdSelf.AddCommand(cmdSelfBootstrap)

	cmdSelfStatus := &cobra.Command{
		Use:   "status",
		Short: "Describe the internal environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(formatStr)
			if err != nil {
				return err
			}
			return runSelfStatus(cmd.Context(), format)
		},
	}
	cmdSelfStatus.Flags().StringVarP(
		&formatStr, "format", "f", "table", `output format ("table" or "json")`,
	)
	cmdSelf.AddCommand(cmdSelfStatus)

	cmdToolchain := &cobra.Command{
		Use:   "toolchain",
		Short: "Manage Python toolchains",
	}
	rootCmd.AddCommand(cmdToolchain)

	cmdToolchainFetch := &cobra.Command{
		Use:   "fetch VERSION",
		Short: "Download a Python toolchain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolchainFetch(cmd.Context(), args[0])
		},
	}
	cmdToolchain.AddCommand(cmdToolchainFetch)

	cmdToolchainList := &cobra.Command{
		Use:   "list",
		Short: "List installed toolchains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(formatStr)
			if err != nil {
				return err
			}
			return runToolchainList(cmd.Context(), includeDownloadable, format)
		},
	}
	cmdToolchainList.Flags().SortFlags = false
	cmdToolchainList.Flags().BoolVar(
		&includeDownloadable, "include-downloadable", false, "also list toolchains that can be downloaded",
	)
	cmdToolchainList.Flags().StringVarP(
		&formatStr, "format", "f", "table", `output format ("table" or "json")`,
	)
	cmdToolchain.AddCommand(cmdToolchainList)

	cmdShims := &cobra.Command{
		Use:   "shims",
		Short: "Manage the python shims",
	}
	rootCmd.AddCommand(cmdShims)

	cmdShimsInstall := &cobra.Command{
		Use:   "install",
		Short: "Install python shims into the shim directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShimsInstall(cmd.Context())
		},
	}
	cmdShims.AddCommand(cmdShimsInstall)

	return rootCmd
}

// DoCLI reads the command-line arguments and runs the appropriate
// code, then exits the process (or returns to indicate normal exit).
func DoCLI() {
	rootCmd := newRootCmd()

	specialArgs := map[string](func()){}
	for _, helpFlag := range []string{"-help", "-?"} {
		specialArgs[helpFlag] = func() {
			rootCmd.Usage()
			os.Exit(0)
		}
	}
	for _, versionFlag := range []string{"-version", "-V"} {
		specialArgs[versionFlag] = func() {
			fmt.Println(getVersion())
			os.Exit(0)
		}
	}

	if len(os.Args) >= 2 {
		fn, ok := specialArgs[os.Args[1]]
		if ok {
			fn()
		}
	}

	ctx := context.Background()
	var span ddtrace.Span
	if appDir, err := platform.AppDir(); err == nil && trace.MaybeTrace(getVersion(), appDir) {
		span, ctx = trace.StartRootSpan(ctx, "pyrite")
	}

	err := rootCmd.ExecuteContext(ctx)
	if span != nil {
		span.Finish(tracer.WithError(err))
		trace.Stop()
	}
	if err != nil {
		util.Die("error: %s", err)
	}
}
