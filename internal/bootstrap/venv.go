package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/util"
)

const (
	// ToolVersionFile marks a completed bootstrap.
	ToolVersionFile = "tool-version.txt"
	// VenvMarkerFile records which interpreter an environment was
	// created with.
	VenvMarkerFile = "pyrite-venv.json"
)

const installationHelpURL = "https://github.com/replit/pyrite#installation"

// VenvMarker is the content of VenvMarkerFile.
type VenvMarker struct {
	Python string `json:"python"`
}

// WriteVenvMarker records v inside venv.
func WriteVenvMarker(venv string, v sources.Version) error {
	data, err := json.Marshal(VenvMarker{Python: v.String()})
	if err != nil {
		return err
	}
	return util.WriteAtomic(filepath.Join(venv, VenvMarkerFile), data)
}

// ReadVenvMarker returns the interpreter venv was created with.
func ReadVenvMarker(venv string) (sources.Version, error) {
	data, err := os.ReadFile(filepath.Join(venv, VenvMarkerFile))
	if err != nil {
		return sources.Version{}, err
	}
	var marker VenvMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return sources.Version{}, fmt.Errorf("%s: %w", VenvMarkerFile, err)
	}
	return sources.ParseVersion(marker.Python)
}

// buildEnv creates the private environment with the helper and
// installs the pinned requirement set into it. It does not write the
// tool version.
func buildEnv(ctx context.Context, helper *Helper, pyBin string, v sources.Version, venv string) error {
	if err := helper.Run(ctx, helper.Command("venv", "--python", pyBin, venv)); err != nil {
		return fmt.Errorf("unable to create self venv using %s. It might be that the used Python build "+
			"is incompatible with this machine. For more information see %s: %w", pyBin, installationHelpURL, err)
	}

	if err := WriteVenvMarker(venv, v); err != nil {
		return fmt.Errorf("could not write venv marker: %w", err)
	}

	if err := helper.Run(ctx, helper.VenvCommand(venv, "pip", "install", "--upgrade", PinnedPip)); err != nil {
		return fmt.Errorf("unable to update pip in venv at %s: %w", venv, err)
	}

	if err := installRequirements(ctx, helper, venv, SelfRequirements); err != nil {
		return fmt.Errorf("unable to update requirements in venv at %s: %w", venv, err)
	}
	return nil
}

func installRequirements(ctx context.Context, helper *Helper, venv, requirements string) error {
	f, err := os.CreateTemp("", "pyrite-requirements-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(requirements); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return helper.Run(ctx, helper.VenvCommand(venv, "pip", "install", "--upgrade", "-r", f.Name()))
}

// writeToolVersion stamps venv as bootstrapped at SelfVersion.
func writeToolVersion(venv string) error {
	path := filepath.Join(venv, ToolVersionFile)
	if err := util.WriteAtomic(path, []byte(strconv.Itoa(SelfVersion))); err != nil {
		return &PathError{Op: "could not write tool version", Path: path, Err: err}
	}
	return nil
}

// readToolVersion returns the stamped tool version of venv.
func readToolVersion(venv string) (int, error) {
	data, err := os.ReadFile(filepath.Join(venv, ToolVersionFile))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
