package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
)

// ParseMissingLibraries extracts the `NAME => not found` entries from
// ldd output, sorted and without duplicates.
func ParseMissingLibraries(lddOutput string) []string {
	seen := map[string]bool{}
	var missing []string
	for _, line := range strings.Split(lddOutput, "\n") {
		before, after, ok := strings.Cut(strings.TrimSpace(line), " => ")
		if !ok || strings.TrimSpace(after) != "not found" || seen[before] {
			continue
		}
		seen[before] = true
		missing = append(missing, before)
	}
	sort.Strings(missing)
	return missing
}

// validateSharedLibraries runs ldd on a Linux interpreter and fails
// when the dynamic linker cannot resolve one of its libraries.
func (b *Bootstrapper) validateSharedLibraries(ctx context.Context, pyBin string) error {
	out, err := b.Runner.Output(ctx, util.Command{Path: "ldd", Args: []string{pyBin}})
	if err != nil {
		// ldd exits non-zero when it has complaints but still lists
		// what it found.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("unable to invoke ldd on downloaded python binary: %w", err)
		}
	}

	missing := ParseMissingLibraries(string(out))
	if len(missing) == 0 {
		return nil
	}

	suffix := "ies"
	if len(missing) == 1 {
		suffix = "y"
	}
	tui.Error("detected missing shared librar%s required by Python:", suffix)
	for _, lib := range missing {
		fmt.Fprintf(tui.Stderr, "  - %s\n", tui.WarningStyle.Render(lib))
	}
	return &MissingSharedLibrariesError{Libs: missing}
}
