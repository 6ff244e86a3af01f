package util

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// WriteAtomic replaces filename with contents so that readers see
// either the old or the new file, falling back to a plain write on
// filesystems where the rename trick is unavailable.
func WriteAtomic(filename string, contents []byte) error {
	if err1 := atomic.WriteFile(filename, bytes.NewReader(contents)); err1 != nil {
		if err2 := os.WriteFile(filename, contents, 0o666); err2 != nil {
			return fmt.Errorf("%s: %w; on non-atomic retry: %s", filename, err1, err2)
		}
	}
	return nil
}

// FileExists reports whether filename exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists reports whether dirname exists and is a directory.
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}
