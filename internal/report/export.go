package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/martinsuchenak/ipusage/pkg/model"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// ErrUnknownFormat is returned for an unsupported export format
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists the supported export formats
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatXLSX}
}

// Export writes the report in the given format
func Export(w io.Writer, rep *model.Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rep)
	case FormatYAML, "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(rep); err != nil {
			return err
		}
		return encoder.Close()
	case FormatXLSX:
		return exportXLSX(w, rep)
	default:
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

const (
	addressSheet = "Addresses"
	summarySheet = "Summary"
)

func exportXLSX(w io.Writer, rep *model.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", addressSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	rows := [][]interface{}{{"Position", "Address", "Usage", "Kind", "Interface"}}
	for _, rec := range rep.Records {
		rows = append(rows, []interface{}{rec.Position, rec.Address, rec.Usage, string(rec.Kind), rec.InterfaceID})
	}
	if err := writeSheetRows(f, addressSheet, rows); err != nil {
		return err
	}

	s := rep.Summary
	summary := [][]interface{}{
		{"Report", rep.ID},
		{"Generated", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Subnet id", s.SubnetID},
		{"Subnet name", s.SubnetName},
		{"Subnet CIDR", s.CIDR},
		{"IPs in this Subnet", s.Total},
		{"IPs available in this Subnet", s.Available},
		{"IPs free", s.Free},
		{"IP/s in use", s.InUse},
	}
	if err := writeSheetRows(f, summarySheet, summary); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheetRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
