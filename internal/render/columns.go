// Package render lays classified address lines out on the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal
const DefaultWidth = 80

// TerminalTooSmallError reports a terminal narrower than one column
type TerminalTooSmallError struct {
	Width       int
	ColumnWidth int
}

func (e *TerminalTooSmallError) Error() string {
	return fmt.Sprintf("terminal is too small to display the output: width %d, column width %d", e.Width, e.ColumnWidth)
}

// Columns prints lines in as many fixed-width columns as fit
type Columns struct {
	out   io.Writer
	width int
}

// NewColumns creates a renderer for an output of the given width
func NewColumns(out io.Writer, width int) *Columns {
	return &Columns{out: out, width: width}
}

// Layout returns the column and row counts used for n lines
func (c *Columns) Layout(n, columnWidth int) (columns, rows int, err error) {
	if columnWidth > 0 {
		columns = c.width / columnWidth
	}
	if columns <= 0 {
		return 0, 0, &TerminalTooSmallError{Width: c.width, ColumnWidth: columnWidth}
	}
	rows = (n + columns - 1) / columns
	return columns, rows, nil
}

// Render fills columns top to bottom and prints them row by row.
// lines is not modified.
func (c *Columns) Render(lines []string, columnWidth int) error {
	columns, rows, err := c.Layout(len(lines), columnWidth)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for r := 0; r < rows; r++ {
		sb.Reset()
		for col := 0; col < columns; col++ {
			i := r + col*rows
			if i >= len(lines) {
				break
			}
			sb.WriteString(lines[i])
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(c.out, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// RenderSingle prints one line per row
func (c *Columns) RenderSingle(lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(c.out, line); err != nil {
			return err
		}
	}
	return nil
}

// TerminalWidth returns the width of f, or DefaultWidth when f is not a
// terminal
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// VisibleWidth returns the display width of s, ignoring ANSI escape
// sequences
func VisibleWidth(s string) int {
	return runewidth.StringWidth(StripANSI(s))
}

// StripANSI removes ANSI escape sequences
func StripANSI(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			// sequences end with a letter
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// PadRight pads s with spaces to the given display width
func PadRight(s string, width int) string {
	visible := VisibleWidth(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
