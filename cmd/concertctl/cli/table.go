// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// columnGap separates table columns.
const columnGap = "  "

// State words colored by a status column.
var (
	goodStates = map[string]bool{
		"enabled": true, "invited": true, "ready": true, "available": true,
		"SERVING": true, "Success": true, "Terminated": true, "uninvited": true,
	}
	badStates = map[string]bool{
		"blocked": true, "invited-elsewhere": true, "connection-disrupted": true,
		"rejected": true, "uninvite-failed": true, "NOT_SERVING": true,
		"Force Killed": true, "failed": true,
	}
)

// Table renders aligned, optionally colored columns. Colors are only
// emitted when the writer is a terminal whose environment allows them.
type Table struct {
	writer   io.Writer
	renderer *lipgloss.Renderer
	headers  []string
	rows     [][]string
	status   map[int]bool
}

// NewTable creates a table writing to w.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		writer:   w,
		renderer: lipgloss.NewRenderer(w, termenv.WithProfile(ColorProfile(w))),
		headers:  headers,
		status:   make(map[int]bool),
	}
}

// ColorProfile returns the color profile for w: plain ASCII unless w
// is a terminal, otherwise what the environment (NO_COLOR,
// CLICOLOR_FORCE, TERM) allows.
func ColorProfile(w io.Writer) termenv.Profile {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return termenv.Ascii
	}
	return termenv.NewOutput(file).EnvColorProfile()
}

// StatusColumn colors the known state words of column: green for
// healthy states, red for refusals and failures.
func (t *Table) StatusColumn(column int) *Table {
	t.status[column] = true
	return t
}

// Row appends one row. Missing cells are left blank.
func (t *Table) Row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table. The last column is not padded.
func (t *Table) Render() error {
	columns := len(t.headers)
	for _, row := range t.rows {
		columns = max(columns, len(row))
	}
	widths := make([]int, columns)
	measure := func(cells []string) {
		for index, cell := range cells {
			widths[index] = max(widths[index], lipgloss.Width(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}

	headerStyle := t.renderer.NewStyle().Bold(true)
	goodStyle := t.renderer.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle := t.renderer.NewStyle().Foreground(lipgloss.Color("1"))

	var builder strings.Builder
	writeRow := func(cells []string, style func(column int, cell string) lipgloss.Style) {
		parts := make([]string, columns)
		for index := range columns {
			cell := ""
			if index < len(cells) {
				cell = cells[index]
			}
			rendered := style(index, cell).Render(cell)
			if index < columns-1 {
				rendered += strings.Repeat(" ", widths[index]-lipgloss.Width(cell))
			}
			parts[index] = rendered
		}
		builder.WriteString(strings.TrimRight(strings.Join(parts, columnGap), " "))
		builder.WriteByte('\n')
	}

	if len(t.headers) > 0 {
		writeRow(t.headers, func(int, string) lipgloss.Style { return headerStyle })
	}
	plain := t.renderer.NewStyle()
	for _, row := range t.rows {
		writeRow(row, func(column int, cell string) lipgloss.Style {
			if !t.status[column] {
				return plain
			}
			switch {
			case goodStates[cell]:
				return goodStyle
			case badStates[cell]:
				return badStyle
			}
			return plain
		})
	}

	_, err := fmt.Fprint(t.writer, builder.String())
	return err
}
