// Package table renders small aligned tables for listing toolchains
// and describing the private environment.
package table

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/replit/pyrite/internal/tui"
)

// Table is a list of header cells and rows of the same length.
// Construct one with New or FromStructs, then use AddRow and Print.
type Table struct {
	headers []string
	rows    [][]string
}

// New creates an empty table with the given headers.
func New(headers ...string) Table {
	return Table{headers: headers}
}

// FromStructs builds a table from a slice of structs. Every string
// field tagged with "pretty" becomes a column headed by the tag value.
// Columns that are empty in every row are left out.
func FromStructs(structs interface{}) Table {
	sv := reflect.ValueOf(structs)
	st := sv.Type().Elem()

	var indices []int
	var headers []string
	for i := 0; i < st.NumField(); i++ {
		header := st.Field(i).Tag.Get("pretty")
		if header == "" || st.Field(i).Type.Kind() != reflect.String {
			continue
		}
		for j := 0; j < sv.Len(); j++ {
			if sv.Index(j).Field(i).Len() > 0 {
				indices = append(indices, i)
				headers = append(headers, header)
				break
			}
		}
	}

	t := Table{headers: headers}
	for j := 0; j < sv.Len(); j++ {
		row := make([]string, 0, len(indices))
		for _, i := range indices {
			row = append(row, sv.Index(j).Field(i).String())
		}
		t.AddRow(row...)
	}
	return t
}

// AddRow appends a row. It panics if the row has the wrong number of
// cells.
func (t *Table) AddRow(row ...string) {
	if len(row) != len(t.headers) {
		panic(fmt.Sprintf(
			"wrong number of columns in table row (%d != %d)",
			len(row), len(t.headers),
		))
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w with columns aligned. Cell widths
// ignore terminal styling.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.headers))
	for j, header := range t.headers {
		widths[j] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for j, cell := range row {
			if n := lipgloss.Width(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}

	line := func(cells []string) string {
		fields := make([]string, len(cells))
		for j, cell := range cells {
			fields[j] = cell + strings.Repeat(" ", widths[j]-lipgloss.Width(cell))
		}
		return strings.TrimRight(strings.Join(fields, "   "), " ")
	}

	lines := []string{line(t.headers)}
	rule := make([]string, len(t.headers))
	for j := range t.headers {
		rule[j] = strings.Repeat("-", widths[j])
	}
	lines = append(lines, line(rule))
	for _, row := range t.rows {
		lines = append(lines, line(row))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// Print renders the table to standard output.
func (t *Table) Print() error {
	return t.Render(tui.Stdout)
}
