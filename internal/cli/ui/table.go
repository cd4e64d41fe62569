package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table renders rows under a bold header and a separator line
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row. Missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range t.rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	t.line(widths, t.headers, bold)

	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("─", width)
	}
	t.line(widths, separators, gray)

	for _, row := range t.rows {
		t.line(widths, row, nil)
	}
}

func (t *Table) line(widths []int, cells []string, c *color.Color) {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i < len(widths)-1 {
			cell = padRight(cell, widths[i])
		}
		parts[i] = cell
	}

	text := strings.TrimRight(strings.Join(parts, "  "), " ")
	if c != nil {
		c.Fprintln(t.writer, text)
		return
	}
	fmt.Fprintln(t.writer, text)
}

// padRight pads s with spaces to width, counting runes
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
