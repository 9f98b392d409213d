package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/martinsuchenak/ipusage/internal/render"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// Minimum field widths of a table line
const (
	minPositionWidth = 3
	minAddressWidth  = 15
	minUsageWidth    = 25
	columnGap        = "  "
)

// Palette colours table lines
type Palette struct {
	free *color.Color
	used *color.Color
}

// NewPalette returns a palette; a disabled palette emits plain text
func NewPalette(enabled bool) *Palette {
	p := &Palette{
		free: color.New(color.FgHiGreen),
		used: color.New(color.FgHiRed),
	}
	if enabled {
		p.free.EnableColor()
		p.used.EnableColor()
	} else {
		p.free.DisableColor()
		p.used.DisableColor()
	}
	return p
}

func (p *Palette) paint(rec model.AddressRecord, s string) string {
	if p == nil {
		return s
	}
	if rec.Kind == model.UsageFree {
		return p.free.Sprint(s)
	}
	return p.used.Sprint(s)
}

// FormatLines renders one fixed-width line per record:
// position | address | usage
func FormatLines(records []model.AddressRecord, p *Palette) []string {
	posWidth := max(minPositionWidth, len(strconv.Itoa(len(records)-1)))
	addrWidth, usageWidth := minAddressWidth, minUsageWidth
	for _, rec := range records {
		addrWidth = max(addrWidth, len(rec.Address))
		usageWidth = max(usageWidth, render.VisibleWidth(rec.Usage))
	}

	lines := make([]string, len(records))
	for i, rec := range records {
		text := fmt.Sprintf("%*d | %-*s | %s", posWidth, rec.Position, addrWidth, rec.Address,
			render.PadRight(rec.Usage, usageWidth))
		lines[i] = p.paint(rec, text) + columnGap
	}
	return lines
}

// WriteTable prints the lines in terminal-width columns, or one per row
func WriteTable(w io.Writer, lines []string, width int, oneColumn bool) error {
	cols := render.NewColumns(w, width)
	if oneColumn || len(lines) == 0 {
		return cols.RenderSingle(lines)
	}
	return cols.Render(lines, render.VisibleWidth(lines[0]))
}

// WriteSummary prints the summary block that follows the table
func WriteSummary(w io.Writer, s model.Summary) error {
	rows := [][2]string{
		{"Subnet id", s.SubnetID},
	}
	if s.SubnetName != "" {
		rows = append(rows, [2]string{"Subnet name", s.SubnetName})
	}
	rows = append(rows,
		[2]string{"Subnet CIDR", s.CIDR},
		[2]string{"IPs in this Subnet", strconv.Itoa(s.Total)},
		[2]string{"IPs available in this Subnet", strconv.Itoa(s.Available)},
		[2]string{"IPs free", strconv.Itoa(s.Free)},
		[2]string{"IP/s in use", strconv.Itoa(s.InUse)},
	)

	if _, err := fmt.Fprint(w, "\nSummary:\n\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s: %s\n", dotted(row[0], 29), row[1]); err != nil {
			return err
		}
	}
	return nil
}

// dotted pads label with dots to width
func dotted(label string, width int) string {
	for len(label) < width {
		label += "."
	}
	return label
}
