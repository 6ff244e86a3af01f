package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
// Replaced in tests.
var IsTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ByteProgress draws a single-line download bar on stderr. The zero
// value is not usable; use NewByteProgress.
type ByteProgress struct {
	out     io.Writer
	bar     progress.Model
	total   int64
	current int64
	width   int
	enabled bool
}

// NewByteProgress returns a progress bar for a download of total
// bytes. The bar draws nothing unless total is known, output is not
// quiet and stderr is a terminal.
func NewByteProgress(total int64, output CommandOutput) *ByteProgress {
	p := &ByteProgress{
		out:   Stderr,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total: total,
	}
	p.enabled = total > 0 && !output.IsQuiet() && IsTerminal(p.out)
	return p
}

// Enabled reports whether the bar draws anything.
func (p *ByteProgress) Enabled() bool {
	return p.enabled
}

// Add advances the bar by n bytes.
func (p *ByteProgress) Add(n int) {
	p.current += int64(n)
	if !p.enabled {
		return
	}
	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	line := fmt.Sprintf("%s %s/%s",
		p.bar.ViewAs(percent),
		humanize.Bytes(uint64(p.current)),
		humanize.Bytes(uint64(p.total)))
	if len(line) > p.width {
		p.width = len(line)
	}
	fmt.Fprintf(p.out, "\r%s", line)
}

// Write lets the bar sit behind an io.TeeReader.
func (p *ByteProgress) Write(b []byte) (int, error) {
	p.Add(len(b))
	return len(b), nil
}

// Finish clears the bar from the terminal.
func (p *ByteProgress) Finish() {
	if !p.enabled || p.width == 0 {
		return
	}
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", p.width))
}
