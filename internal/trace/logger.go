package trace

import (
	"os"
	"path/filepath"
)

// DatadogLogger sends tracer diagnostics to a file instead of the
// terminal.
type DatadogLogger struct {
	file *os.File
}

func NewDatadogLogger(dir string) (*DatadogLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(filepath.Join(dir, "pyrite.dd.log"))
	if err != nil {
		return nil, err
	}
	return &DatadogLogger{file: file}, nil
}

func (l *DatadogLogger) Log(msg string) {
	l.file.WriteString(msg)
	l.file.WriteString("\n")
}

func (l *DatadogLogger) Close() {
	l.file.Close()
}
