package cli

// outputFormat is an enum representing the argument of the --format
// option.
type outputFormat int

// Values for outputFormat.
const (
	// --format=table
	outputFormatTable outputFormat = iota

	// --format=json
	outputFormatJSON
)

// toolchainInfo is one row of 'pyrite toolchain list'.
type toolchainInfo struct {
	Version string `json:"version" pretty:"Version"`
	Status  string `json:"status" pretty:"Status"`
	Path    string `json:"path,omitempty" pretty:"Path"`
}

// statusInfo is the output of 'pyrite self status'.
type statusInfo struct {
	VenvDir     string `json:"venv_dir"`
	Exists      bool   `json:"exists"`
	ToolVersion int    `json:"tool_version"`
	UpToDate    bool   `json:"up_to_date"`
	Python      string `json:"python,omitempty"`
}
